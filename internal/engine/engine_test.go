package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/common"
	"skoll/internal/engine"
)

func TestEngine_BooksArePerSymbol(t *testing.T) {
	eng := engine.New()

	_, err := eng.Submit("BTCUSDT", limit(1, 2, common.Ask, 100*P, 1*P))
	require.NoError(t, err)
	_, err = eng.Submit("ETHUSDT", limit(2, 3, common.Bid, 100*P, 1*P))
	require.NoError(t, err)

	// The crossing orders are in different books, so nothing trades.
	_, asks, ok := eng.L2Snapshot("BTCUSDT", 10)
	require.True(t, ok)
	assert.Equal(t, []common.Level{{Price: 100 * P, Qty: 1 * P}}, asks)

	bids, _, ok := eng.L2Snapshot("ETHUSDT", 10)
	require.True(t, ok)
	assert.Equal(t, []common.Level{{Price: 100 * P, Qty: 1 * P}}, bids)
}

func TestEngine_SubmitCreatesBookOnDemand(t *testing.T) {
	eng := engine.New()

	_, _, ok := eng.L2Snapshot("BTCUSDT", 10)
	assert.False(t, ok)

	_, err := eng.Submit("BTCUSDT", limit(1, 2, common.Bid, 100*P, 1*P))
	require.NoError(t, err)

	_, _, ok = eng.L2Snapshot("BTCUSDT", 10)
	assert.True(t, ok)
}

func TestEngine_UnknownSymbolOps(t *testing.T) {
	eng := engine.New()

	_, ok := eng.Cancel("NOPE", 1)
	assert.False(t, ok)

	eng.Modify("NOPE", 1, 100*P, 1*P) // no-op

	assert.Empty(t, eng.BatchSubmit("NOPE", []common.Order{
		limit(1, 2, common.Bid, 100*P, 1*P),
	}))

	// None of the above created a book.
	_, _, ok = eng.L2Snapshot("NOPE", 10)
	assert.False(t, ok)
}

func TestEngine_RiskGateSharedAcrossBooks(t *testing.T) {
	eng := engine.New()
	eng.SetRateLimit(7, 2)

	_, err := eng.Submit("BTCUSDT", limit(1, 7, common.Bid, 100*P, 1*P))
	require.NoError(t, err)
	_, err = eng.Submit("ETHUSDT", limit(2, 7, common.Bid, 100*P, 1*P))
	require.NoError(t, err)

	// Credit spent on one symbol is spent everywhere.
	_, err = eng.Submit("SOLUSDT", limit(3, 7, common.Bid, 100*P, 1*P))
	assert.ErrorIs(t, err, common.ErrRateLimit)
}

func TestEngine_PositionLimit(t *testing.T) {
	eng := engine.New()
	eng.SetPositionLimit(7, 5*P)

	_, err := eng.Submit("BTCUSDT", limit(1, 7, common.Bid, 100*P, 6*P))
	assert.ErrorIs(t, err, common.ErrPositionLimit)

	_, err = eng.Submit("BTCUSDT", limit(2, 7, common.Bid, 100*P, 5*P))
	assert.NoError(t, err)
}

func TestEngine_CancelAndModifyRoute(t *testing.T) {
	eng := engine.New()

	_, err := eng.Submit("BTCUSDT", limit(1, 2, common.Bid, 100*P, 2*P))
	require.NoError(t, err)

	eng.Modify("BTCUSDT", 1, 99*P, 0)

	ord, ok := eng.Cancel("BTCUSDT", 1)
	require.True(t, ok)
	assert.Equal(t, 99*P, ord.Price)
	assert.Equal(t, 2*P, ord.Qty)
}

func TestEngine_BatchSubmit(t *testing.T) {
	eng := engine.New()

	// Batch needs an existing book; seed it.
	_, err := eng.Submit("BTCUSDT", limit(1, 2, common.Ask, 100*P, 1*P))
	require.NoError(t, err)

	results := eng.BatchSubmit("BTCUSDT", []common.Order{
		limit(2, 3, common.Bid, 100*P, 1*P),
		limit(3, 4, common.Bid, 0, 1*P),
	})

	require.Len(t, results, 2)
	assert.Equal(t, []common.Fill{
		{MakerID: 1, TakerID: 2, Price: 100 * P, Qty: 1 * P},
	}, results[0].Fills)
	assert.ErrorIs(t, results[1].Err, common.ErrPriceOutOfRange)
}

func TestEngine_DeterministicReplay(t *testing.T) {
	run := func() [][]common.Fill {
		eng := engine.New()
		var out [][]common.Fill
		seq := []common.Order{
			limit(1, 2, common.Ask, 100*P, 5*P),
			limit(2, 3, common.Ask, 100*P, 3*P),
			limit(3, 4, common.Bid, 100*P, 6*P),
			order(4, 5, common.Market, common.Bid, 100*P, 1*P),
			order(5, 2, common.FOK, common.Bid, 100*P, 1*P),
		}
		for _, ord := range seq {
			fills, _ := eng.Submit("BTCUSDT", ord)
			out = append(out, fills)
		}
		return out
	}

	assert.Equal(t, run(), run())
}
