// Package demo generates synthetic transaction events for exercising the
// detection pipeline in demos and tests.
package demo

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"phalanx/internal/schema"
)

// Generator produces synthetic transaction events. It is not safe for
// concurrent use; give each goroutine its own Generator.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a Generator seeded from the given source. Seed 0
// selects a time-based seed.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// NormalTransaction generates a typical low-value domestic transaction,
// timestamped at a random point in the last 30 days.
func (g *Generator) NormalTransaction(userID string) *schema.Event {
	amount := 10 + g.rng.Float64()*190
	age := time.Duration(1+g.rng.Intn(30)) * 24 * time.Hour

	ev := &schema.Event{
		UserID:    userID,
		Timestamp: g.now().Add(-age).UTC().Format(time.RFC3339),
		EventType: schema.EventTypeTransaction,
		Data:      schema.NewFields(),
	}
	ev.Data.Set("amount", roundCents(amount))
	ev.Data.Set("currency", "USD")
	ev.Data.Set("recipient", fmt.Sprintf("Merchant_%d", 1+g.rng.Intn(10)))
	ev.Data.Set("country", "USA")
	return ev
}

// AnomalousTransaction generates a transaction that detection should flag:
// an unusually large foreign transfer to an unfamiliar recipient.
func (g *Generator) AnomalousTransaction(userID string) *schema.Event {
	amount := 5000 + g.rng.Float64()*5000

	ev := &schema.Event{
		UserID:    userID,
		Timestamp: g.now().UTC().Format(time.RFC3339),
		EventType: schema.EventTypeTransaction,
		Data:      schema.NewFields(),
	}
	ev.Data.Set("amount", roundCents(amount))
	ev.Data.Set("currency", "EUR")
	ev.Data.Set("recipient", "Offshore_Account_123")
	ev.Data.Set("country", "Cayman Islands")
	return ev
}

// roundCents rounds to two decimals. Amounts stay numeric in the payload so
// downstream numeric checks apply to them.
func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// History generates n normal transactions per user, suitable for seeding
// the event store before running checks.
func (g *Generator) History(n int, userIDs ...string) []*schema.Event {
	events := make([]*schema.Event, 0, n*len(userIDs))
	for _, id := range userIDs {
		for i := 0; i < n; i++ {
			events = append(events, g.NormalTransaction(id))
		}
	}
	return events
}
