package usecase

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/songgrid/goapi/domain/listing"
)

func TestFlightGroup_Coalesces(t *testing.T) {
	g := newFlightGroup()

	var calls int32
	var once sync.Once
	release := make(chan struct{})
	started := make(chan struct{})
	fn := func() ([]listing.Listing, error) {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		<-release
		return []listing.Listing{{Source: "only"}}, nil
	}

	var wg, entered sync.WaitGroup
	results := make([][]listing.Listing, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		entered.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Done()
			ls, err := g.do("key", fn)
			require.NoError(t, err)
			results[i] = ls
		}(i)
	}

	<-started
	entered.Wait()
	// give the remaining goroutines a beat to reach the flight before the
	// leader is released
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, ls := range results {
		assert.Len(t, ls, 1)
	}
}

func TestFlightGroup_FailureNotSticky(t *testing.T) {
	g := newFlightGroup()

	boom := xerrors.New("boom")
	_, err := g.do("key", func() ([]listing.Listing, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	// a failed flight leaves nothing behind
	ls, err := g.do("key", func() ([]listing.Listing, error) {
		return []listing.Listing{{Source: "retry"}}, nil
	})
	assert.NoError(t, err)
	assert.Len(t, ls, 1)
}

func TestFlightGroup_DistinctKeys(t *testing.T) {
	g := newFlightGroup()
	var calls int32
	fn := func() ([]listing.Listing, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}
	_, _ = g.do("a", fn)
	_, _ = g.do("b", fn)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
