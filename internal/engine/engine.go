// internal/engine/engine.go
//
// Package engine is the single injected owner of application state: session,
// room mirror, subscriptions, and the action pipeline. It has an explicit
// lifecycle — Init wires the fixed event subscriptions, Teardown releases
// every one of them — so no scope can leak a subscription, and exactly one
// underlying listener exists per event name.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/alert"
	"github.com/jason-s-yu/liarspoker/internal/events"
	"github.com/jason-s-yu/liarspoker/internal/mirror"
	"github.com/jason-s-yu/liarspoker/internal/models"
	"github.com/jason-s-yu/liarspoker/internal/pipeline"
	"github.com/jason-s-yu/liarspoker/internal/turn"
	"github.com/jason-s-yu/liarspoker/internal/wallet"
)

// Engine owns the synchronization core. The UI collaborator renders from
// Session + Mirror + Alerts and calls the action methods; it never infers
// turn order or legality itself.
type Engine struct {
	Provider *wallet.Provider
	Registry *events.Registry
	Mirror   *mirror.Mirror
	Turns    *turn.Coordinator
	Actions  *pipeline.Pipeline
	Alerts   *alert.Channel

	log *logrus.Logger

	mu      sync.Mutex
	handles []*events.Handle
}

// New assembles an engine from its components.
func New(p *wallet.Provider, r *events.Registry, m *mirror.Mirror,
	tc *turn.Coordinator, pl *pipeline.Pipeline, alerts *alert.Channel,
	log *logrus.Logger) *Engine {
	return &Engine{
		Provider: p,
		Registry: r,
		Mirror:   m,
		Turns:    tc,
		Actions:  pl,
		Alerts:   alerts,
		log:      log,
	}
}

// Init bootstraps the mirror from the ledger and registers one handler per
// named event. Safe to call again after Teardown (e.g. on reconnect).
func (e *Engine) Init(ctx context.Context) error {
	if err := e.Mirror.Bootstrap(ctx); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) > 0 {
		return nil // already wired
	}

	sub := func(name models.EventName, h events.Handler) {
		e.handles = append(e.handles, e.Registry.Subscribe(name, h))
	}

	sub(models.EventPlayerRegistered, e.onPlayerRegistered)
	sub(models.EventRoomCreated, e.onRoomCreated)
	sub(models.EventPlayerJoined, e.refreshRoom)
	sub(models.EventGameStarted, e.refreshRoom)
	sub(models.EventBidPlaced, e.refreshRoom)
	sub(models.EventLiarCalled, e.refreshRoom)
	sub(models.EventGameEnded, e.onGameEnded)
	sub(models.EventTurnChanged, e.onTurnChanged)

	e.log.Info("engine initialized")
	return nil
}

// Teardown releases every subscription. Idempotent; tied to disconnect and
// to the owning scope's exit.
func (e *Engine) Teardown() {
	e.mu.Lock()
	handles := e.handles
	e.handles = nil
	e.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
	if len(handles) > 0 {
		e.log.Info("engine subscriptions released")
	}
}

// Reset is the forced identity-change path: drop subscriptions, then rewire
// if a session survived the reset.
func (e *Engine) Reset(ctx context.Context) {
	e.Teardown()
	if !e.Provider.Session().Connected {
		return
	}
	if err := e.Init(ctx); err != nil {
		e.log.WithField("error", err).Warn("rewire after session reset failed")
	}
}

// isSelf compares a ledger identity against the connected account.
func (e *Engine) isSelf(account string) bool {
	self := e.Provider.Account()
	return self != "" && strings.EqualFold(self, account)
}

// refreshRoom is the handler for every room-scoped event that carries no
// self-targeted notification: the payload only says which room changed, the
// refresh re-derives truth. Duplicate deliveries are harmless for the same
// reason.
func (e *Engine) refreshRoom(ev models.Event) {
	if _, err := e.Mirror.Refresh(context.Background(), ev.RoomID); err != nil {
		e.log.WithFields(logrus.Fields{
			"event": ev.Name,
			"room":  ev.RoomID,
			"error": err,
		}).Warn("event-driven refresh failed")
	}
}

func (e *Engine) onPlayerRegistered(ev models.Event) {
	if e.isSelf(ev.Player) {
		e.Alerts.Success("Successfully registered for Liar's Poker!")
	}
}

func (e *Engine) onRoomCreated(ev models.Event) {
	e.refreshRoom(ev)
	if e.isSelf(ev.Creator) {
		e.Alerts.Success(fmt.Sprintf("Room %d created successfully!", ev.RoomID))
	}
}

// onGameEnded is the single GameEnded listener in the process, so the winner
// notification fires exactly once per game.
func (e *Engine) onGameEnded(ev models.Event) {
	e.refreshRoom(ev)
	if e.isSelf(ev.Winner) {
		e.Alerts.Success(fmt.Sprintf("Congratulations! You won %d!", ev.PrizeAmount))
	}
}

func (e *Engine) onTurnChanged(ev models.Event) {
	e.refreshRoom(ev)
	e.Turns.HandleTurnChanged(ev, e.Provider.Account())
}

// Rooms exposes the discovery listing for the UI collaborator.
func (e *Engine) Rooms() []models.GameRoom {
	return e.Mirror.List()
}

// Room exposes one cached snapshot, terminal rooms included.
func (e *Engine) Room(roomID uint64) (models.GameRoom, bool) {
	return e.Mirror.Room(roomID)
}

// Session exposes the current identity state.
func (e *Engine) Session() wallet.Session {
	return e.Provider.Session()
}
