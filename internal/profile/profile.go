// Package profile defines the declarative constraint profiles attached to the
// baseline bot classes, plus the registry that maps a bot kind to its profile.
// Free agents carry no profile and trade unconstrained.
package profile

import "tradearena/internal/domain"

// Profile is a declarative constraint set. Percentage fields are expressed in
// percent (5 means 5%); a zero value means the rule is off.
type Profile struct {
	// MaxPositionPct caps any single post-trade position at this share of the
	// bot's pre-trade total value.
	MaxPositionPct float64 `yaml:"max_position_pct"`
	// MinCashPct requires post-trade cash to stay at or above this share of
	// pre-trade total value.
	MinCashPct float64 `yaml:"min_cash_pct"`
	// MaxCashPct caps post-sale cash at this share of pre-trade total value:
	// the bot must stay invested.
	MaxCashPct float64 `yaml:"max_cash_pct"`
	// IndexOnly restricts buys to the index universe.
	IndexOnly bool `yaml:"index_only"`
	// NoCrypto forbids buying crypto-linked equities.
	NoCrypto bool `yaml:"no_crypto"`
	// NoLeverage forbids buying leveraged ETFs and meme names.
	NoLeverage bool `yaml:"no_leverage"`
	// MaxLongEquityPct caps total non-hedge long exposure after a buy.
	MaxLongEquityPct float64 `yaml:"max_long_equity_pct"`
	// RequiresHedge forbids selling the last remaining hedge position.
	RequiresHedge bool `yaml:"requires_hedge"`
	// RequiresTechnicalCitation requires order commentary to cite a technical
	// indicator.
	RequiresTechnicalCitation bool `yaml:"requires_technical_citation"`
}

// Registry maps bot kinds to their constraint profiles. Kinds with no entry
// are unconstrained.
type Registry map[domain.BotKind]*Profile

// DefaultRegistry returns the baseline class profiles.
func DefaultRegistry() Registry {
	return Registry{
		domain.KindTurtle: {
			MaxPositionPct: 5,
			MinCashPct:     30,
			IndexOnly:      true,
		},
		domain.KindDegen: {
			MaxCashPct: 20,
		},
		domain.KindBoomer: {
			NoCrypto:   true,
			NoLeverage: true,
		},
		domain.KindQuant: {
			RequiresTechnicalCitation: true,
		},
		domain.KindDoomer: {
			MaxLongEquityPct: 30,
			RequiresHedge:    true,
		},
	}
}

// For returns the profile for a kind, or nil when the kind is unconstrained.
func (r Registry) For(kind domain.BotKind) *Profile {
	return r[kind]
}

// Apply overlays profiles from config onto the registry, replacing the
// defaults for any kind present in overrides.
func (r Registry) Apply(overrides map[string]Profile) {
	for kind, p := range overrides {
		p := p
		r[domain.BotKind(kind)] = &p
	}
}
