// Package risk implements the trading risk governor: a four-tier
// circuit breaker over equity, daily P&L and drawdown, plus capped
// fractional-bankroll position sizing.
package risk

import "fmt"

// Tier is the governor's halt level. Severity strictly increases from
// NORMAL to HALT_HARD; automatic transitions only ever move toward more
// severe tiers.
type Tier int

const (
	TierNormal Tier = iota
	TierWarning
	TierHaltSoft
	TierHaltHard
)

var tierNames = map[Tier]string{
	TierNormal:   "NORMAL",
	TierWarning:  "WARNING",
	TierHaltSoft: "HALT_SOFT",
	TierHaltHard: "HALT_HARD",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// MarshalText encodes the tier name for JSON snapshots.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a tier name. Unknown names fail loudly rather
// than defaulting to NORMAL.
func (t *Tier) UnmarshalText(text []byte) error {
	for tier, name := range tierNames {
		if name == string(text) {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("unknown risk tier %q", text)
}

// AllowsEntry reports whether new exposure may be opened at this tier.
func (t Tier) AllowsEntry() bool { return t <= TierWarning }

// AllowsExit reports whether position exits may be submitted. Only
// HALT_HARD blocks all new orders; under HALT_SOFT exits still flow so
// positions can be wound down.
func (t Tier) AllowsExit() bool { return t < TierHaltHard }
