// internal/ledger/ledger.go
//
// Package ledger defines the client's contract with the remote system of
// record. The ledger is reached through two independent channels: a
// request/response surface (Reader/Writer) and an event feed (Feed). The two
// can disagree transiently; callers must treat the read surface as truth and
// the feed as an invalidation signal.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/liarspoker/internal/models"
)

// ErrTransport indicates the channel to the ledger dropped or misbehaved.
// It is retryable; for the event feed it triggers automatic resubscription.
var ErrTransport = errors.New("ledger transport error")

// ErrRoomNotFound is returned by reads for a room id the ledger does not
// (yet, or no longer) know about.
var ErrRoomNotFound = errors.New("room not found")

// RemoteError is a rejection by the ledger itself: the write was delivered
// and refused. The reason is surfaced verbatim to the user when known.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	if e.Reason == "" {
		return "rejected by ledger"
	}
	return fmt.Sprintf("rejected by ledger: %s", e.Reason)
}

// TxID identifies a submitted write while it awaits finality.
type TxID string

// Reader is the ledger's direct-read surface.
type Reader interface {
	// RoomDetails returns the authoritative snapshot of one room.
	// Returns ErrRoomNotFound if the id is unknown.
	RoomDetails(ctx context.Context, roomID uint64) (models.GameRoom, error)

	// PlayerDetails returns the per-room player record for account,
	// including the private serial number when account is the caller.
	PlayerDetails(ctx context.Context, roomID uint64, account string) (models.Player, error)

	// ActiveRoomIDs lists rooms currently open for discovery.
	ActiveRoomIDs(ctx context.Context) ([]uint64, error)

	// MinimumBid returns the ledger-enforced lower bound for createRoom.
	MinimumBid(ctx context.Context) (uint64, error)
}

// Writer is the ledger's state-mutating surface. All writes are two-phase:
// a Submit-style call hands the write to the transport and returns a TxID,
// WaitFinal blocks until the ledger reports finality or failure. Once
// submitted a write runs to completion or failure; abandoning the wait does
// not cancel it.
type Writer interface {
	RegisterPlayer(ctx context.Context) (TxID, error)
	CreateRoom(ctx context.Context, minBid uint64, playerCount int) (TxID, error)
	JoinRoom(ctx context.Context, roomID uint64, fee uint64) (TxID, error)
	PlaceBid(ctx context.Context, roomID uint64, digit, quantity int, amount uint64) (TxID, error)
	CallLiar(ctx context.Context, roomID uint64) (TxID, error)
	RevealNumber(ctx context.Context, roomID uint64) (TxID, error)
	StartGame(ctx context.Context, roomID uint64, serialNumbers []uint64) (TxID, error)

	WaitFinal(ctx context.Context, tx TxID) error
}

// Feed is the ledger's event-subscription channel. Subscribe opens one
// stream for the named event; the returned channel closes when the stream
// drops (the caller resubscribes) or when stop is called.
type Feed interface {
	Subscribe(ctx context.Context, name models.EventName) (<-chan models.RawEvent, func(), error)
}
