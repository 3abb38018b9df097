// internal/mirror/mirror_test.go
package mirror

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/liarspoker/internal/ledger"
	"github.com/jason-s-yu/liarspoker/internal/ledger/ledgertest"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	fake := ledgertest.NewFake()
	fake.SetRoom(models.GameRoom{
		RoomID: 1, Creator: "0xabc", Players: []string{"0xabc"},
		Phase: models.PhaseWaiting, Exists: true,
	})
	m := New(fake, testLogger())

	room, err := m.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseWaiting, room.Phase)

	cached, ok := m.Room(1)
	require.True(t, ok)
	assert.Equal(t, room, cached)

	// A second refresh of unchanged remote state is a no-op replace.
	again, err := m.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, room, again)
	assert.Equal(t, 2, fake.CallCount("getRoomDetails"))
}

func TestRefreshUnknownRoomYieldsNonexistent(t *testing.T) {
	m := New(ledgertest.NewFake(), testLogger())

	room, err := m.Refresh(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, room.Exists)
	assert.Equal(t, uint64(42), room.RoomID)

	cached, ok := m.Room(42)
	require.True(t, ok)
	assert.False(t, cached.Exists)
}

func TestRefreshRejectsInvalidSnapshot(t *testing.T) {
	fake := ledgertest.NewFake()
	good := models.GameRoom{
		RoomID: 1, Players: []string{"a", "b"}, Phase: models.PhaseInProgress,
		CurrentTurn: "a", Exists: true,
	}
	fake.SetRoom(good)
	m := New(fake, testLogger())

	_, err := m.Refresh(context.Background(), 1)
	require.NoError(t, err)

	// Ledger now reports a turn holder who is not seated.
	bad := good
	bad.CurrentTurn = "c"
	fake.SetRoom(bad)

	_, err = m.Refresh(context.Background(), 1)
	require.Error(t, err)

	cached, ok := m.Room(1)
	require.True(t, ok)
	assert.Equal(t, "a", cached.CurrentTurn, "invalid snapshot must not replace cached state")
}

// scriptedReader runs one scripted response per RoomDetails call, letting a
// test hold an early refresh open while a later one completes.
type scriptedReader struct {
	mu        sync.Mutex
	calls     int
	responses []func() (models.GameRoom, error)
}

func (r *scriptedReader) RoomDetails(ctx context.Context, roomID uint64) (models.GameRoom, error) {
	r.mu.Lock()
	n := r.calls
	r.calls++
	r.mu.Unlock()
	return r.responses[n]()
}

func (r *scriptedReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *scriptedReader) PlayerDetails(ctx context.Context, roomID uint64, account string) (models.Player, error) {
	return models.Player{}, ledger.ErrRoomNotFound
}

func (r *scriptedReader) ActiveRoomIDs(ctx context.Context) ([]uint64, error) { return nil, nil }

func (r *scriptedReader) MinimumBid(ctx context.Context) (uint64, error) { return 0, nil }

func TestSlowEarlyRefreshNeverOverwritesLaterOne(t *testing.T) {
	stale := models.GameRoom{RoomID: 1, Players: []string{"a"}, Phase: models.PhaseWaiting, Exists: true}
	fresh := stale
	fresh.Phase = models.PhaseInProgress
	fresh.CurrentTurn = "a"

	release := make(chan struct{})
	reader := &scriptedReader{responses: []func() (models.GameRoom, error){
		func() (models.GameRoom, error) { <-release; return stale, nil },
		func() (models.GameRoom, error) { return fresh, nil },
	}}
	m := New(reader, testLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	var slowResult models.GameRoom
	go func() {
		defer wg.Done()
		slowResult, _ = m.Refresh(context.Background(), 1)
	}()

	// Let the slow refresh take its stamp and park inside the read.
	require.Eventually(t, func() bool { return reader.callCount() == 1 },
		time.Second, time.Millisecond)

	got, err := m.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	close(release)
	wg.Wait()

	cached, ok := m.Room(1)
	require.True(t, ok)
	assert.Equal(t, fresh, cached, "earlier-stamped refresh must be discarded")
	assert.Equal(t, fresh, slowResult, "discarded refresh reports the winning snapshot")
}

func TestRefreshStartedBeforePurgeNeverRepopulates(t *testing.T) {
	snapshot := models.GameRoom{RoomID: 1, Players: []string{"a"}, Phase: models.PhaseWaiting, Exists: true}

	release := make(chan struct{})
	reader := &scriptedReader{responses: []func() (models.GameRoom, error){
		func() (models.GameRoom, error) { return snapshot, nil },
		func() (models.GameRoom, error) { <-release; return snapshot, nil },
	}}
	m := New(reader, testLogger())

	_, err := m.Refresh(context.Background(), 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Refresh(context.Background(), 1)
	}()

	// The second refresh takes its stamp and parks inside the read.
	require.Eventually(t, func() bool { return reader.callCount() == 2 },
		time.Second, time.Millisecond)

	// Disconnect-style purge while the read is still in flight.
	m.PurgeAll()

	close(release)
	wg.Wait()

	_, ok := m.Room(1)
	assert.False(t, ok, "a refresh started before the purge must not repopulate the cache")
	assert.Empty(t, m.List())
}

func TestListExcludesTerminalAndNonexistent(t *testing.T) {
	fake := ledgertest.NewFake()
	fake.SetRoom(models.GameRoom{RoomID: 1, Players: []string{"a"}, Phase: models.PhaseWaiting, Exists: true})
	fake.SetRoom(models.GameRoom{RoomID: 2, Players: []string{"a"}, Phase: models.PhaseCompleted, Winner: "a", Exists: true})
	m := New(fake, testLogger())

	for _, id := range []uint64{1, 2, 3} {
		_, err := m.Refresh(context.Background(), id)
		require.NoError(t, err)
	}

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, uint64(1), list[0].RoomID)

	// Terminal rooms stay queryable by id for result display.
	done, ok := m.Room(2)
	require.True(t, ok)
	assert.Equal(t, "a", done.Winner)
}

func TestBootstrap(t *testing.T) {
	fake := ledgertest.NewFake()
	fake.SetRoom(models.GameRoom{RoomID: 1, Players: []string{"a"}, Phase: models.PhaseWaiting, Exists: true})
	fake.SetRoom(models.GameRoom{RoomID: 2, Players: []string{"b"}, Phase: models.PhaseInProgress, CurrentTurn: "b", Exists: true})
	m := New(fake, testLogger())

	require.NoError(t, m.Bootstrap(context.Background()))
	assert.Len(t, m.List(), 2)
}

func TestBootstrapSkipsBadRooms(t *testing.T) {
	fake := ledgertest.NewFake()
	fake.SetRoom(models.GameRoom{RoomID: 1, Players: []string{"a"}, Phase: models.PhaseWaiting, Exists: true})
	fake.SetRoom(models.GameRoom{
		RoomID: 2, Players: []string{"b"}, Phase: models.PhaseInProgress,
		CurrentTurn: "intruder", Exists: true,
	})
	m := New(fake, testLogger())

	require.NoError(t, m.Bootstrap(context.Background()))

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, uint64(1), list[0].RoomID)
}

func TestPurgeAll(t *testing.T) {
	fake := ledgertest.NewFake()
	fake.SetRoom(models.GameRoom{RoomID: 1, Players: []string{"a"}, Phase: models.PhaseWaiting, Exists: true})
	m := New(fake, testLogger())

	_, err := m.Refresh(context.Background(), 1)
	require.NoError(t, err)

	m.PurgeAll()
	_, ok := m.Room(1)
	assert.False(t, ok)
	assert.Empty(t, m.List())
}
