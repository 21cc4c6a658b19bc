package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skoll/internal/common"
	"skoll/internal/engine"
)

func TestRiskGate_PositionLimitIsOptIn(t *testing.T) {
	gate := engine.NewRiskGate(engine.DefaultRateCredit)

	// Unconfigured users are not gated on size.
	assert.False(t, gate.ExceedsPosition(1, 1_000_000*P))

	gate.SetPositionLimit(1, 10*P)
	assert.False(t, gate.ExceedsPosition(1, 10*P))
	assert.True(t, gate.ExceedsPosition(1, 10*P+P))
	assert.False(t, gate.ExceedsPosition(2, 10*P+P))
}

func TestRiskGate_RateCreditCountsDown(t *testing.T) {
	gate := engine.NewRiskGate(2)

	assert.False(t, gate.ConsumeRate(1))
	assert.False(t, gate.ConsumeRate(1))
	assert.True(t, gate.ConsumeRate(1))
	// Exhaustion is sticky until the configurator rewrites the credit.
	assert.True(t, gate.ConsumeRate(1))

	gate.SetRateCredit(1, 1)
	assert.False(t, gate.ConsumeRate(1))
	assert.True(t, gate.ConsumeRate(1))
}

func TestRiskGate_CreditIsPerUser(t *testing.T) {
	gate := engine.NewRiskGate(1)

	assert.False(t, gate.ConsumeRate(1))
	assert.True(t, gate.ConsumeRate(1))
	assert.False(t, gate.ConsumeRate(2))
}

func TestSubmit_PositionLimitRejected(t *testing.T) {
	book := engine.NewOrderBook()
	gate := engine.NewRiskGate(engine.DefaultRateCredit)
	gate.SetPositionLimit(3, 2*P)

	fills, err := book.Submit(limit(1, 3, common.Bid, 100*P, 3*P), gate)
	assert.ErrorIs(t, err, common.ErrPositionLimit)
	assert.Empty(t, fills)

	bids, _ := book.L2Snapshot(10)
	assert.Empty(t, bids)
}

func TestSubmit_PositionCheckRunsBeforeRate(t *testing.T) {
	book := engine.NewOrderBook()
	gate := engine.NewRiskGate(1)
	gate.SetPositionLimit(3, 1*P)

	// An oversized order fails the position check and must not burn the
	// user's only credit.
	_, err := book.Submit(limit(1, 3, common.Bid, 100*P, 2*P), gate)
	assert.ErrorIs(t, err, common.ErrPositionLimit)

	_, err = book.Submit(limit(2, 3, common.Bid, 100*P, 1*P), gate)
	assert.NoError(t, err)

	_, err = book.Submit(limit(3, 3, common.Bid, 100*P, 1*P), gate)
	assert.ErrorIs(t, err, common.ErrRateLimit)
}

func TestSubmit_RateConsumedOnSilentPostOnlyDrop(t *testing.T) {
	book := engine.NewOrderBook()
	gate := engine.NewRiskGate(engine.DefaultRateCredit)
	gate.SetRateCredit(3, 1)

	mustSubmit(t, book, gate, limit(1, 2, common.Ask, 100*P, 1*P))

	// The post-only drop is not an error, but it still spends credit.
	fills, err := book.Submit(order(2, 3, common.PostOnly, common.Bid, 100*P, 1*P), gate)
	assert.NoError(t, err)
	assert.Empty(t, fills)

	_, err = book.Submit(limit(3, 3, common.Bid, 99*P, 1*P), gate)
	assert.ErrorIs(t, err, common.ErrRateLimit)
}

func TestSubmit_RateLimitLeavesBookUntouched(t *testing.T) {
	book := engine.NewOrderBook()
	gate := engine.NewRiskGate(0)

	fills, err := book.Submit(limit(1, 3, common.Bid, 100*P, 1*P), gate)
	assert.ErrorIs(t, err, common.ErrRateLimit)
	assert.Empty(t, fills)

	bids, _ := book.L2Snapshot(10)
	assert.Empty(t, bids)
}
