package strategy

import (
	"math"
	"sort"
	"strings"

	"github.com/nvandessel/armbench/internal/bandit"
)

// Canonical strategy names.
const (
	NameOracle           = "oracle"
	NameEpsilonGreedy    = "epsilon-greedy"
	NameEpsilonDecay     = "epsilon-decay"
	NameThompson         = "thompson"
	NameNaiveRandom      = "naive-random"
	NameConstantFirst    = "constant-first"
	NameAdversarialWorst = "adversarial-worst"
)

// aliases maps the short names accepted on the command line onto canonical
// names.
var aliases = map[string]string{
	"epsilon":  NameEpsilonGreedy,
	"decay":    NameEpsilonDecay,
	"naive":    NameNaiveRandom,
	"constant": NameConstantFirst,
	"worst":    NameAdversarialWorst,
}

// Params carries strategy-specific parameters. A nil field means the
// parameter was not supplied.
type Params struct {
	Epsilon *float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Alpha   *float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
}

// Info describes one strategy for listings.
type Info struct {
	Name        string   `json:"name"`
	Params      []string `json:"params,omitempty"`
	Description string   `json:"description"`
	Baseline    bool     `json:"baseline"`
}

var catalog = []Info{
	{Name: NameOracle, Description: "always plays the arm with the highest true probability", Baseline: true},
	{Name: NameEpsilonGreedy, Params: []string{"epsilon"}, Description: "explores a random arm with probability epsilon, else plays the best estimate"},
	{Name: NameEpsilonDecay, Params: []string{"epsilon", "alpha"}, Description: "epsilon-greedy with epsilon * e^(-alpha * plays)"},
	{Name: NameThompson, Description: "plays the arm with the largest Beta(wins+1, losses+1) sample"},
	{Name: NameNaiveRandom, Description: "plays a uniformly random arm", Baseline: true},
	{Name: NameConstantFirst, Description: "always plays arm 0", Baseline: true},
	{Name: NameAdversarialWorst, Description: "always plays the arm with the lowest true probability", Baseline: true},
}

// Catalog returns every strategy in a stable order.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the canonical names, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, info := range catalog {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// Aliases returns the accepted short names and the canonical names they
// stand for.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

// Canonical resolves an alias to its canonical name. Unknown names are
// returned lower-cased and unchanged.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// Parse builds the strategy called name from params. It reports a
// *bandit.ConfigError for an unknown name, a missing required parameter, or
// a parameter out of range.
func Parse(name string, params Params) (Strategy, error) {
	switch Canonical(name) {
	case NameOracle:
		return Oracle{}, nil
	case NameEpsilonGreedy:
		eps, err := requireUnit("strategy.epsilon", params.Epsilon, NameEpsilonGreedy)
		if err != nil {
			return nil, err
		}
		return EpsilonGreedy{Epsilon: eps}, nil
	case NameEpsilonDecay:
		eps, err := requireUnit("strategy.epsilon", params.Epsilon, NameEpsilonDecay)
		if err != nil {
			return nil, err
		}
		if params.Alpha == nil {
			return nil, bandit.NewConfigError("strategy.alpha", "required by %s", NameEpsilonDecay)
		}
		alpha := *params.Alpha
		if math.IsNaN(alpha) || math.IsInf(alpha, 0) || alpha < 0 {
			return nil, bandit.NewConfigError("strategy.alpha", "must be a finite number >= 0, got %v", alpha)
		}
		return EpsilonDecay{Epsilon: eps, Alpha: alpha}, nil
	case NameThompson:
		return Thompson{}, nil
	case NameNaiveRandom:
		return NaiveRandom{}, nil
	case NameConstantFirst:
		return ConstantFirst{}, nil
	case NameAdversarialWorst:
		return AdversarialWorst{}, nil
	case "":
		return nil, bandit.NewConfigError("strategy.name", "required (one of %s)", strings.Join(Names(), ", "))
	default:
		return nil, bandit.NewConfigError("strategy.name", "unknown strategy %q (one of %s)", name, strings.Join(Names(), ", "))
	}
}

func requireUnit(field string, v *float64, strategy string) (float64, error) {
	if v == nil {
		return 0, bandit.NewConfigError(field, "required by %s", strategy)
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return 0, bandit.NewConfigError(field, "must be within [0,1], got %v", *v)
	}
	return *v, nil
}

// ParamsOf returns the parameters that reproduce s through Parse.
func ParamsOf(s Strategy) Params {
	switch v := s.(type) {
	case EpsilonGreedy:
		return Params{Epsilon: &v.Epsilon}
	case EpsilonDecay:
		return Params{Epsilon: &v.Epsilon, Alpha: &v.Alpha}
	default:
		return Params{}
	}
}
