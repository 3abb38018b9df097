// internal/turn/turn.go
//
// Package turn derives turn ownership from the room mirror and gates
// turn-bound actions before they reach the network.
package turn

import (
	"errors"
	"strings"

	"github.com/jason-s-yu/liarspoker/internal/alert"
	"github.com/jason-s-yu/liarspoker/internal/mirror"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

// ErrNotYourTurn is returned when a turn-bound action is attempted by an
// account that does not hold the current turn.
var ErrNotYourTurn = errors.New("not your turn")

// Coordinator reads the mirror to answer "is it my turn" and raises the
// one-shot your-turn notification on turn changes.
type Coordinator struct {
	mirror *mirror.Mirror
	alerts *alert.Channel
}

// NewCoordinator creates a coordinator over the given mirror.
func NewCoordinator(m *mirror.Mirror, alerts *alert.Channel) *Coordinator {
	return &Coordinator{mirror: m, alerts: alerts}
}

// CurrentTurn returns whose turn it is in roomID, or "" when the room is
// not cached or not in progress.
func (c *Coordinator) CurrentTurn(roomID uint64) string {
	room, ok := c.mirror.Room(roomID)
	if !ok || room.Phase != models.PhaseInProgress {
		return ""
	}
	return room.CurrentTurn
}

// IsMyTurn reports whether account holds the turn in roomID.
func (c *Coordinator) IsMyTurn(roomID uint64, account string) bool {
	t := c.CurrentTurn(roomID)
	return t != "" && strings.EqualFold(t, account)
}

// AssertTurn fails with ErrNotYourTurn unless account holds the turn. It is
// called synchronously before any turn-bound submission, so the pipeline
// never attempts a doomed write.
func (c *Coordinator) AssertTurn(roomID uint64, account string) error {
	if !c.IsMyTurn(roomID, account) {
		return ErrNotYourTurn
	}
	return nil
}

// HandleTurnChanged raises a one-shot "your turn" notification when a
// TurnChanged event hands the turn to account in a room account has joined.
// No-ops silently for rooms the account is not part of.
func (c *Coordinator) HandleTurnChanged(ev models.Event, account string) {
	if account == "" || !strings.EqualFold(ev.NewTurn, account) {
		return
	}
	room, ok := c.mirror.Room(ev.RoomID)
	if !ok || !room.HasPlayer(account) {
		return
	}
	c.alerts.Info("It's your turn!")
}
