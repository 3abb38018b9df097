// internal/events/registry_test.go
package events

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/liarspoker/internal/ledger/ledgertest"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRegistry(t *testing.T) (*Registry, *ledgertest.FakeFeed) {
	t.Helper()
	feed := ledgertest.NewFakeFeed()
	r := NewRegistry(feed, 10*time.Millisecond, testLogger())
	t.Cleanup(r.Close)
	return r, feed
}

func TestHandlersShareOneStream(t *testing.T) {
	r, feed := newTestRegistry(t)

	var first, second atomic.Int64
	h1 := r.Subscribe(models.EventBidPlaced, func(models.Event) { first.Add(1) })
	h2 := r.Subscribe(models.EventBidPlaced, func(models.Event) { second.Add(1) })
	defer h1.Release()
	defer h2.Release()

	assert.Equal(t, 1, r.ActiveStreams())
	require.Eventually(t, func() bool { return feed.SubscribeCount(models.EventBidPlaced) == 1 },
		time.Second, time.Millisecond)

	feed.Emit(models.EventBidPlaced, map[string]any{"roomId": 3})

	require.Eventually(t, func() bool {
		return first.Load() == 1 && second.Load() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, feed.SubscribeCount(models.EventBidPlaced),
		"a second handler must not open a second stream")
}

func TestReleaseIsIdempotentAndClosesLastStream(t *testing.T) {
	r, feed := newTestRegistry(t)

	h1 := r.Subscribe(models.EventGameEnded, func(models.Event) {})
	h2 := r.Subscribe(models.EventGameEnded, func(models.Event) {})
	require.Eventually(t, func() bool { return feed.SubscribeCount(models.EventGameEnded) == 1 },
		time.Second, time.Millisecond)

	h1.Release()
	h1.Release() // double release is a no-op
	assert.Equal(t, 1, r.ActiveStreams())

	h2.Release()
	assert.Equal(t, 0, r.ActiveStreams())

	// A fully released stream is gone: emitting now reaches nobody and the
	// feed sees no live subscription to deliver to.
	feed.Emit(models.EventGameEnded, map[string]any{"roomId": 1})
}

func TestResubscribeAfterTransportDrop(t *testing.T) {
	r, feed := newTestRegistry(t)

	var seen atomic.Int64
	h := r.Subscribe(models.EventTurnChanged, func(models.Event) { seen.Add(1) })
	defer h.Release()

	require.Eventually(t, func() bool { return feed.SubscribeCount(models.EventTurnChanged) == 1 },
		time.Second, time.Millisecond)

	feed.Drop(models.EventTurnChanged)

	require.Eventually(t, func() bool { return feed.SubscribeCount(models.EventTurnChanged) == 2 },
		time.Second, time.Millisecond)

	feed.Emit(models.EventTurnChanged, map[string]any{"roomId": 1, "newTurn": "a"})
	require.Eventually(t, func() bool { return seen.Load() == 1 },
		time.Second, time.Millisecond)
}

func TestUndecodableEventIsDropped(t *testing.T) {
	r, feed := newTestRegistry(t)

	var seen atomic.Int64
	h := r.Subscribe(models.EventBidPlaced, func(models.Event) { seen.Add(1) })
	defer h.Release()

	require.Eventually(t, func() bool { return feed.SubscribeCount(models.EventBidPlaced) == 1 },
		time.Second, time.Millisecond)

	feed.Emit(models.EventBidPlaced, "not an object")
	feed.Emit(models.EventBidPlaced, map[string]any{"roomId": 5})

	require.Eventually(t, func() bool { return seen.Load() == 1 },
		time.Second, time.Millisecond)
	assert.Equal(t, int64(1), seen.Load())
}

func TestSubscribeAfterCloseIsInert(t *testing.T) {
	feed := ledgertest.NewFakeFeed()
	r := NewRegistry(feed, 10*time.Millisecond, testLogger())
	r.Close()

	h := r.Subscribe(models.EventBidPlaced, func(models.Event) {})
	assert.Equal(t, 0, r.ActiveStreams(), "a closed registry records no streams")
	assert.Equal(t, 0, feed.SubscribeCount(models.EventBidPlaced))

	h.Release()
	h.Release()
	assert.Equal(t, 0, r.ActiveStreams())
}

func TestCloseStopsEverything(t *testing.T) {
	feed := ledgertest.NewFakeFeed()
	r := NewRegistry(feed, 10*time.Millisecond, testLogger())

	r.Subscribe(models.EventRoomCreated, func(models.Event) {})
	r.Subscribe(models.EventGameStarted, func(models.Event) {})
	assert.Equal(t, 2, r.ActiveStreams())

	r.Close()
	assert.Equal(t, 0, r.ActiveStreams())
}
