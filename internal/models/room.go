// internal/models/room.go
package models

import (
	"fmt"
	"strings"
)

// Phase is the lifecycle stage of a game room. The ledger transmits it as a
// small integer; the client decodes it into this closed enum and never
// invents a transition on its own.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseWaiting
	PhaseReady
	PhaseInProgress
	PhaseRevealing
	PhaseChallengePhase
	PhaseCompleted
	PhaseCanceled
)

// ErrUnknownPhase is returned when the ledger reports a phase value outside
// the known enumeration. An unrecognized phase is a detectable error, not a
// silent fallthrough.
type ErrUnknownPhase struct {
	Value int
}

func (e ErrUnknownPhase) Error() string {
	return fmt.Sprintf("unknown room phase %d", e.Value)
}

// ParsePhase decodes the ledger's integer phase encoding.
func ParsePhase(v int) (Phase, error) {
	if v < int(PhaseCreated) || v > int(PhaseCanceled) {
		return 0, ErrUnknownPhase{Value: v}
	}
	return Phase(v), nil
}

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseWaiting:
		return "waiting"
	case PhaseReady:
		return "ready"
	case PhaseInProgress:
		return "in_progress"
	case PhaseRevealing:
		return "revealing"
	case PhaseChallengePhase:
		return "challenge_phase"
	case PhaseCompleted:
		return "completed"
	case PhaseCanceled:
		return "canceled"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether the room has reached an end state. Terminal rooms
// are excluded from discovery listings but stay queryable by id.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCanceled
}

// Bid is the current highest bid in a room.
type Bid struct {
	Bidder    string `json:"bidder"`
	Digit     int    `json:"digit"`    // 0..9
	Quantity  int    `json:"quantity"` // >= 1
	Amount    uint64 `json:"amount"`   // wager in base units
	Timestamp int64  `json:"timestamp"`
}

// GameRoom is the client's snapshot of one ledger-resident room. A mirror
// entry is always a whole snapshot; fields are never patched individually
// across an async boundary.
type GameRoom struct {
	RoomID      uint64   `json:"roomId"`
	Creator     string   `json:"creator"`
	Players     []string `json:"players"` // order is turn order
	Phase       Phase    `json:"phase"`
	CurrentTurn string   `json:"currentTurn"` // valid only when Phase == PhaseInProgress
	CurrentBid  *Bid     `json:"currentBid,omitempty"`
	MinBid      uint64   `json:"minBid"`
	MaxPlayers  int      `json:"maxPlayers"`
	PrizePool   uint64   `json:"prizePool"`
	Winner      string   `json:"winner,omitempty"`
	Exists      bool     `json:"exists"`
}

// HasPlayer reports whether account is seated in the room. Account identity
// comparison is case-insensitive, matching the ledger's address encoding.
func (r *GameRoom) HasPlayer(account string) bool {
	for _, p := range r.Players {
		if strings.EqualFold(p, account) {
			return true
		}
	}
	return false
}

// Validate checks the snapshot invariants the ledger guarantees. A snapshot
// that fails validation must not replace mirrored state.
func (r *GameRoom) Validate() error {
	if !r.Exists {
		return nil
	}
	if r.Phase == PhaseInProgress && r.CurrentTurn != "" && !r.HasPlayer(r.CurrentTurn) {
		return fmt.Errorf("room %d: current turn %q is not a seated player", r.RoomID, r.CurrentTurn)
	}
	if r.CurrentBid != nil {
		if r.CurrentBid.Digit < 0 || r.CurrentBid.Digit > 9 {
			return fmt.Errorf("room %d: bid digit %d out of range", r.RoomID, r.CurrentBid.Digit)
		}
		if r.CurrentBid.Quantity < 1 {
			return fmt.Errorf("room %d: bid quantity %d out of range", r.RoomID, r.CurrentBid.Quantity)
		}
	}
	return nil
}

// Player is the per-room player record held by the ledger. SerialNumber is
// the player's private game piece and is only returned for the requesting
// account.
type Player struct {
	Account               string `json:"account"`
	SerialNumber          uint64 `json:"serialNumber"`
	RegistrationTimestamp int64  `json:"registrationTimestamp"`
	PerformanceScore      int64  `json:"performanceScore"`
	Registered            bool   `json:"registered"`
}
