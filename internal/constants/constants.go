// Package constants provides named constants used throughout armbench.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Simulation defaults
const (
	// DefaultArmCount is the reference number of arms, used when generating
	// example configurations.
	DefaultArmCount = 10

	// DefaultRounds is the number of rounds used when none is configured.
	DefaultRounds = 1000
)

// Report precision
const (
	// EstimatePrecision is the number of decimals for per-round estimates
	// in the record stream.
	EstimatePrecision = 5

	// SummaryPrecision is the number of decimals for estimated probabilities
	// in the end-of-run summary.
	SummaryPrecision = 3
)

// Output formats
const (
	FormatCSV    = "csv"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
	FormatArrow  = "arrow"
)

// OutputFormats lists every supported record format.
var OutputFormats = []string{FormatCSV, FormatJSONL, FormatSQLite, FormatArrow}

// Paths and batching
const (
	// DirName is the per-user and per-project directory for config and traces.
	DirName = ".armbench"

	// ConfigFileName is the config file inside DirName.
	ConfigFileName = "config.yaml"

	// DBFileName is the default run database inside DirName.
	DBFileName = "runs.db"

	// ArrowBatchSize is the number of rounds buffered per Arrow record batch.
	ArrowBatchSize = 4096

	// SQLiteBatchSize is the number of round rows inserted per transaction.
	SQLiteBatchSize = 2000
)

// MCP tool limits
const (
	// MaxToolRounds caps the rounds of a single MCP tool run.
	MaxToolRounds = 1_000_000

	// MaxToolArms caps the arms of a single MCP tool run. Every round
	// snapshots each arm, so cost grows with arms times rounds.
	MaxToolArms = 100

	// MaxToolRecords caps how many trailing round records one tool call
	// returns.
	MaxToolRecords = 1000

	// AuditFileName is the MCP audit log inside the logging directory.
	AuditFileName = "audit.jsonl"
)
