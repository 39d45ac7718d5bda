package service

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// queueNumberPrefix is the campus code embedded in every ticket.
const queueNumberPrefix = "CDM"

// maxQueueNumberAttempts bounds the regenerate-and-retry loop on queue number
// collisions. Two submissions on the same day can draw the same 4-digit
// suffix; the unique index catches it and the caller retries with a fresh
// draw.
const maxQueueNumberAttempts = 5

type queueNumberGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newQueueNumberGenerator(seed int64) *queueNumberGenerator {
	return &queueNumberGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Next produces a ticket of the form CDM-YYYYMMDD-NNNN with a random 4-digit
// suffix in [1000, 9999].
func (g *queueNumberGenerator) Next(now time.Time) string {
	g.mu.Lock()
	suffix := 1000 + g.rng.Intn(9000)
	g.mu.Unlock()
	return fmt.Sprintf("%s-%s-%04d", queueNumberPrefix, now.Format("20060102"), suffix)
}
