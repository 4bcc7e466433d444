package usecase

import (
	"sync"

	"github.com/songgrid/goapi/domain/listing"
)

// flightGroup coalesces concurrent crawls of the same key onto one upstream
// fetch. Waiters share the leader's outcome, errors included, and a failed
// flight leaves nothing behind so the next caller starts fresh.
type flightGroup struct {
	mu      sync.Mutex
	flights map[string]*flight
}

type flight struct {
	done     chan struct{}
	listings []listing.Listing
	err      error
}

func newFlightGroup() *flightGroup {
	return &flightGroup{flights: map[string]*flight{}}
}

func (g *flightGroup) do(key string, fn func() ([]listing.Listing, error)) ([]listing.Listing, error) {
	g.mu.Lock()
	if f, ok := g.flights[key]; ok {
		g.mu.Unlock()
		<-f.done
		return f.listings, f.err
	}
	f := &flight{done: make(chan struct{})}
	g.flights[key] = f
	g.mu.Unlock()

	f.listings, f.err = fn()

	g.mu.Lock()
	delete(g.flights, key)
	g.mu.Unlock()
	close(f.done)

	return f.listings, f.err
}
