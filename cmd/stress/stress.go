// Stress drives the in-process engine API with the three canonical
// scenarios: pure maker flow, pure taker flow against seeded depth, and a
// 50/50 mix. Reports throughput and latency percentiles per scenario.
package main

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"skoll/internal/common"
	"skoll/internal/engine"
)

const (
	symbol     = "BTCUSDT"
	orderCount = 100_000
	stressUser = 1
)

func main() {
	fmt.Println("Start matching engine latency & throughput stress testing...")

	fmt.Println("\n=== Scenario 1: 100,000 PostOnly orders ===")
	eng := newStressEngine()
	runBenchmark(eng, orderCount, "maker only", func(i int) (common.OrderType, common.Side) {
		return common.PostOnly, common.Bid
	})

	fmt.Println("\n=== Scenario 2: 20,000 resting makers, then 100,000 takers ===")
	eng = newStressEngine()
	seedDepth(eng, 20_000)
	runBenchmark(eng, orderCount, "taker", func(i int) (common.OrderType, common.Side) {
		if i%2 == 0 {
			return common.Limit, common.Ask
		}
		return common.Limit, common.Bid
	})

	fmt.Println("\n=== Scenario 3: 100,000 mixed orders, 50/50 ===")
	eng = newStressEngine()
	runBenchmark(eng, orderCount, "mixed 50/50", func(i int) (common.OrderType, common.Side) {
		otype := common.Limit
		if i%2 == 0 {
			otype = common.PostOnly
		}
		side := common.Bid
		if i%3 == 0 {
			side = common.Ask
		}
		return otype, side
	})

	fmt.Println("\nstress test completed")
}

func newStressEngine() *engine.Engine {
	eng := engine.New()
	eng.SetPositionLimit(stressUser, 1_000_000*common.Precision)
	eng.SetRateLimit(stressUser, 1_000_000_000)
	return eng
}

// seedDepth rests limit orders alternating around the 50000 mark so the
// taker scenario has something to sweep.
func seedDepth(eng *engine.Engine, count int) {
	// Seeds belong to a different user than the takers; self-trade
	// prevention would otherwise skip every one of them.
	const seedUser = stressUser + 1
	for i := 1; i <= count; i++ {
		offset := uint64(i)
		price := (50_000 - offset) * common.Precision
		side := common.Ask
		if i%2 == 0 {
			price = (50_000 + offset) * common.Precision
			side = common.Bid
		}
		_, err := eng.Submit(symbol, common.Order{
			ID:     uint64(i),
			UserID: seedUser,
			Type:   common.Limit,
			Side:   side,
			Price:  price,
			Qty:    10 * common.Precision,
		})
		if err != nil {
			fmt.Printf("seed order %d failed: %v\n", i, err)
		}
	}
}

func runBenchmark(eng *engine.Engine, count int, name string, factory func(i int) (common.OrderType, common.Side)) {
	rng := rand.New(rand.NewSource(1))
	times := make([]time.Duration, 0, count)

	start := time.Now()
	for i := 0; i < count; i++ {
		orderID := uint64(i + 1_000_000) // avoid id collisions with seeds

		basePrice := uint64(50_000 + rng.Intn(401) - 200)
		price := basePrice * common.Precision
		otype, side := factory(i)

		t0 := time.Now()
		_, err := eng.Submit(symbol, common.Order{
			ID:     orderID,
			UserID: stressUser,
			Type:   otype,
			Side:   side,
			Price:  price,
			Qty:    1 * common.Precision,
		})
		times = append(times, time.Since(t0))

		if err != nil {
			fmt.Printf("order %d failed: %v\n", orderID, err)
		}
	}
	total := time.Since(start)

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	var sum time.Duration
	for _, d := range times {
		sum += d
	}
	avg := float64(sum.Nanoseconds()) / float64(count)
	p50 := float64(times[count/2].Nanoseconds())
	p99 := float64(times[count*99/100].Nanoseconds())
	p999 := float64(times[count*999/1000].Nanoseconds())
	qps := float64(count) / total.Seconds()

	fmt.Printf("scenario      : %s\n", name)
	fmt.Printf("orders        : %d\n", count)
	fmt.Printf("total time    : %.3f s\n", total.Seconds())
	fmt.Printf("throughput    : %.0f orders/s\n", qps)
	fmt.Printf("average delay : %.1f us\n", avg/1000.0)
	fmt.Printf("p50 delay     : %.1f us\n", p50/1000.0)
	fmt.Printf("p99 delay     : %.1f us\n", p99/1000.0)
	fmt.Printf("p99.9 delay   : %.1f us\n", p999/1000.0)
}
