// internal/mirror/mirror.go
//
// Package mirror holds the locally cached view of ledger-resident game
// rooms. The mirror never applies deltas: every update is a whole-snapshot
// replace driven by a direct read against the ledger.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/ledger"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

// entry pairs a snapshot with the stamp of the refresh that produced it.
type entry struct {
	room    models.GameRoom
	applied uint64
}

// Mirror is the room cache. Refreshes for the same room may run
// concurrently; writes are ordered by a per-room monotonic stamp allocated
// when the refresh starts, so a slower, earlier-started read can never
// overwrite a later one. gen is the purge generation: a refresh started
// under an older generation is discarded on write, so a read in flight
// across PurgeAll cannot repopulate the emptied cache.
type Mirror struct {
	mu      sync.Mutex
	rooms   map[uint64]*entry
	nextSeq map[uint64]uint64
	gen     uint64

	reader ledger.Reader
	log    *logrus.Logger
}

// New creates an empty mirror backed by reader.
func New(reader ledger.Reader, log *logrus.Logger) *Mirror {
	return &Mirror{
		rooms:   make(map[uint64]*entry),
		nextSeq: make(map[uint64]uint64),
		reader:  reader,
		log:     log,
	}
}

// stamp allocates the next refresh sequence number for roomID and captures
// the purge generation the refresh starts under.
func (m *Mirror) stamp(roomID uint64) (seq, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq[roomID]++
	return m.nextSeq[roomID], m.gen
}

// Refresh pulls the authoritative snapshot for roomID and atomically
// replaces the local entry. A room the ledger does not know yields a
// snapshot with Exists=false rather than an error, so callers' flows are
// not failed by a room that is merely not there yet.
func (m *Mirror) Refresh(ctx context.Context, roomID uint64) (models.GameRoom, error) {
	seq, gen := m.stamp(roomID)

	room, err := m.reader.RoomDetails(ctx, roomID)
	switch {
	case errors.Is(err, ledger.ErrRoomNotFound):
		room = models.GameRoom{RoomID: roomID, Exists: false}
	case err != nil:
		return models.GameRoom{}, fmt.Errorf("refresh room %d: %w", roomID, err)
	}

	if err := room.Validate(); err != nil {
		// A malformed snapshot never replaces mirrored state.
		return models.GameRoom{}, fmt.Errorf("refresh room %d: %w", roomID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// A purge ran while this read was in flight. The cache must stay
		// empty, not go stale, so the snapshot is returned without landing.
		m.log.WithFields(logrus.Fields{
			"room":  roomID,
			"stamp": seq,
		}).Debug("discarding refresh from before purge")
		return room, nil
	}

	if cur, ok := m.rooms[roomID]; ok && cur.applied >= seq {
		// A refresh that started later already landed; discard this one.
		m.log.WithFields(logrus.Fields{
			"room":    roomID,
			"stamp":   seq,
			"applied": cur.applied,
		}).Debug("discarding stale refresh")
		return cur.room, nil
	}

	m.rooms[roomID] = &entry{room: room, applied: seq}
	return room, nil
}

// Room returns the cached snapshot for roomID, if any.
func (m *Mirror) Room(roomID uint64) (models.GameRoom, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rooms[roomID]
	if !ok {
		return models.GameRoom{}, false
	}
	return e.room, true
}

// List returns the rooms eligible for discovery: existing rooms in a
// non-terminal phase. Completed/Canceled rooms stay queryable by id via
// Room for result display but are excluded here.
func (m *Mirror) List() []models.GameRoom {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.GameRoom, 0, len(m.rooms))
	for _, e := range m.rooms {
		if !e.room.Exists || e.room.Phase.Terminal() {
			continue
		}
		out = append(out, e.room)
	}
	return out
}

// Bootstrap discovers the active rooms and refreshes each. Rooms that fail
// to load are skipped and logged, matching the discovery flow's tolerance
// for individual bad rooms.
func (m *Mirror) Bootstrap(ctx context.Context) error {
	ids, err := m.reader.ActiveRoomIDs(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	for _, id := range ids {
		if _, err := m.Refresh(ctx, id); err != nil {
			m.log.WithFields(logrus.Fields{
				"room":  id,
				"error": err,
			}).Warn("bootstrap: skipping room")
		}
	}
	return nil
}

// PurgeAll drops every cached room. Called on disconnect and on any
// account/network change: mirrors are identity-scoped and must not survive
// into another session.
func (m *Mirror) PurgeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = make(map[uint64]*entry)
	m.nextSeq = make(map[uint64]uint64)
	m.gen++
}
