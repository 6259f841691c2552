package profitability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hetulpatel/crossarb/internal/equilibrium"
	"github.com/hetulpatel/crossarb/internal/logging"
)

// Kind names a filter rule.
type Kind string

const (
	MinimalProfit  Kind = "minimal_profit"
	MinimalPercent Kind = "minimal_percent"
	MaximalPercent Kind = "maximal_percent"
)

var (
	ErrUnknownFilter = errors.New("unknown filter type")
	ErrMissingValue  = errors.New("filter value is required")
)

// ConfigError reports a filter chain that cannot be built. It is a deployment
// mistake, not data noise, and should stop the process.
type ConfigError struct {
	Index int
	Type  string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("filter %d (%q): %v", e.Index, e.Type, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RawFilter is a filter entry as written in configuration.
type RawFilter struct {
	Type  string   `toml:"type" json:"type"`
	Value *float64 `toml:"value" json:"value"`
}

// Spec is a validated filter rule.
type Spec struct {
	Kind  Kind
	Value float64
}

// Chain is an ordered list of rules; a result must pass all of them.
type Chain []Spec

// ParseChain validates raw filter entries in order.
func ParseChain(raw []RawFilter) (Chain, error) {
	chain := make(Chain, 0, len(raw))
	for i, f := range raw {
		kind := Kind(strings.ToLower(strings.TrimSpace(f.Type)))
		switch kind {
		case MinimalProfit, MinimalPercent, MaximalPercent:
		default:
			return nil, &ConfigError{Index: i, Type: f.Type, Err: ErrUnknownFilter}
		}
		if f.Value == nil {
			return nil, &ConfigError{Index: i, Type: f.Type, Err: ErrMissingValue}
		}
		chain = append(chain, Spec{Kind: kind, Value: *f.Value})
	}
	return chain, nil
}

// Accept applies one rule. The lower bounds are inclusive and the upper
// percent bound is exclusive.
func (s Spec) Accept(res equilibrium.Result) bool {
	var observed float64
	var ok bool
	switch s.Kind {
	case MinimalProfit:
		observed = res.ProfitAbsolute
		ok = observed >= s.Value
	case MinimalPercent:
		observed = res.ProfitRate * 100
		ok = observed >= s.Value
	case MaximalPercent:
		observed = res.ProfitRate * 100
		ok = observed < s.Value
	default:
		// ParseChain never produces this; a hand-built bad spec rejects.
		logging.Errorf("[profitability] unknown filter kind %q", s.Kind)
		return false
	}
	if logging.Enabled(logging.LevelDebug) {
		verdict := "satisfied"
		if !ok {
			verdict = "NOT satisfied"
		}
		logging.Debugf("[profitability] filter %s observed=%g bound=%g %s", s.Kind, observed, s.Value, verdict)
	}
	return ok
}

func (s Spec) String() string {
	return fmt.Sprintf("%s=%g", s.Kind, s.Value)
}

// Accepts reports whether res passes every rule of chain. An empty chain
// accepts everything. Every rule is evaluated so debug logs stay complete.
func Accepts(res equilibrium.Result, chain Chain) bool {
	accepted := true
	for _, spec := range chain {
		if !spec.Accept(res) {
			accepted = false
		}
	}
	return accepted
}
