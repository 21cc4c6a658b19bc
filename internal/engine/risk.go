package engine

// DefaultRateCredit is the rate credit granted to a user on first touch when
// no explicit credit has been configured. Effectively unlimited for normal
// use; lower it via NewRiskGate for tests or constrained deployments.
const DefaultRateCredit uint64 = 1_000_000_000

// RiskGate screens every submission before it reaches a book. Limits are
// opt-in per user: a user with no configured position limit is not gated on
// size. Rate credit is a plain countdown with no time-based refill; the
// configurator rewrites it via SetRateCredit.
type RiskGate struct {
	positionLimits map[uint64]uint64
	rateCredits    map[uint64]uint64
	defaultCredit  uint64
}

func NewRiskGate(defaultCredit uint64) *RiskGate {
	return &RiskGate{
		positionLimits: make(map[uint64]uint64),
		rateCredits:    make(map[uint64]uint64),
		defaultCredit:  defaultCredit,
	}
}

func (g *RiskGate) SetPositionLimit(user, maxQty uint64) {
	g.positionLimits[user] = maxQty
}

// SetRateCredit sets or overwrites the remaining rate credit for a user.
func (g *RiskGate) SetRateCredit(user, credit uint64) {
	g.rateCredits[user] = credit
}

// ExceedsPosition reports whether qty breaches the user's configured
// single-order limit. Unconfigured users pass.
func (g *RiskGate) ExceedsPosition(user, qty uint64) bool {
	limit, ok := g.positionLimits[user]
	return ok && qty > limit
}

// ConsumeRate debits one unit of rate credit and reports whether the user is
// out of credit. A user seen for the first time starts at the default credit.
func (g *RiskGate) ConsumeRate(user uint64) bool {
	remaining, ok := g.rateCredits[user]
	if !ok {
		remaining = g.defaultCredit
	}
	if remaining == 0 {
		return true
	}
	g.rateCredits[user] = remaining - 1
	return false
}
