// Package mcp provides an MCP (Model Context Protocol) server that lets an
// agent run bandit simulations and inspect stored runs.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/armbench/internal/ratelimit"
	"github.com/nvandessel/armbench/internal/store"
)

// Server wraps the MCP SDK server and provides armbench tools.
type Server struct {
	server       *sdk.Server
	store        *store.SQLiteStore // nil when runs are not persisted
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "armbench")
	Version string // Server version

	// DBPath, when set, stores every armbench_run in this SQLite database
	// and enables the armbench_runs tool.
	DBPath string

	// AuditDir, when set, receives audit.jsonl with one entry per tool call.
	AuditDir string

	// Logger receives engine and server logs. Defaults to discarding them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with armbench tools.
func NewServer(cfg *Config) (*Server, error) {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{})

	s := &Server{
		server:       mcpServer,
		logger:       cfg.Logger,
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run database: %w", err)
		}
		s.store = st
	}

	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server started", "transport", "stdio", "persist", s.store != nil)
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the run database and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			firstErr = err
		}
		s.store = nil
	}
	if err := s.auditLogger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
