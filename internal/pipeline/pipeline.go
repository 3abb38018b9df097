// internal/pipeline/pipeline.go
//
// Package pipeline wraps every state-mutating action in the same sequence:
// validate locally, submit, await finality, refresh the mirror, notify.
// Optimistic UI state lives in a PendingAction overlay that is discarded —
// never merged — once a refresh lands or the action fails.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/alert"
	"github.com/jason-s-yu/liarspoker/internal/history"
	"github.com/jason-s-yu/liarspoker/internal/ledger"
	"github.com/jason-s-yu/liarspoker/internal/mirror"
	"github.com/jason-s-yu/liarspoker/internal/models"
	"github.com/jason-s-yu/liarspoker/internal/turn"
	"github.com/jason-s-yu/liarspoker/internal/wallet"
)

// ErrTimeout means no confirmation arrived within the configured window.
// The write may still land; the user retries explicitly.
var ErrTimeout = errors.New("confirmation timed out")

// ErrActionPending means a submission of the same kind for the same room is
// still awaiting confirmation.
var ErrActionPending = errors.New("action already pending for this room")

// ValidationError is a local pre-flight failure. It never reaches the
// network.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Kind identifies an action for the reentrancy guard.
type Kind string

const (
	KindRegister  Kind = "register"
	KindCreate    Kind = "create_room"
	KindJoin      Kind = "join_room"
	KindBid       Kind = "place_bid"
	KindCallLiar  Kind = "call_liar"
	KindStartGame Kind = "start_game"
)

// State tracks an action through submit and confirmation.
type State string

const (
	StateSubmitting State = "submitting"
	StateConfirming State = "confirming"
)

// PendingAction is the ephemeral record of one in-flight submission. At most
// one exists per (roomID, kind).
type PendingAction struct {
	ID            uuid.UUID
	Kind          Kind
	RoomID        uint64
	State         State
	SubmittedAt   time.Time
	OptimisticBid *models.Bid // provisional overlay, display-merge only
}

type pendingKey struct {
	roomID uint64
	kind   Kind
}

const (
	minPlayerCount = 2
	maxPlayerCount = 8

	// serialDigits is the fixed length of a player's private game piece.
	serialDigits = 10
)

// Pipeline coordinates submissions against the ledger writer.
type Pipeline struct {
	writer   ledger.Writer
	reader   ledger.Reader
	mirror   *mirror.Mirror
	turns    *turn.Coordinator
	provider *wallet.Provider
	alerts   *alert.Channel
	recorder *history.Recorder // nil-safe
	log      *logrus.Logger

	confirmWindow time.Duration

	mu      sync.Mutex
	pending map[pendingKey]*PendingAction
}

// New wires a pipeline. confirmWindow bounds how long a submission may sit
// unconfirmed before it fails with ErrTimeout.
func New(w ledger.Writer, r ledger.Reader, m *mirror.Mirror, tc *turn.Coordinator,
	p *wallet.Provider, alerts *alert.Channel, rec *history.Recorder,
	confirmWindow time.Duration, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		writer:        w,
		reader:        r,
		mirror:        m,
		turns:         tc,
		provider:      p,
		alerts:        alerts,
		recorder:      rec,
		log:           log,
		confirmWindow: confirmWindow,
		pending:       make(map[pendingKey]*PendingAction),
	}
}

// PendingBid returns the optimistic bid overlay for roomID, if a bid is in
// flight. The UI merges it for display only; it is never written to the
// mirror.
func (p *Pipeline) PendingBid(roomID uint64) *models.Bid {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pa, ok := p.pending[pendingKey{roomID: roomID, kind: KindBid}]; ok {
		return pa.OptimisticBid
	}
	return nil
}

// acquire installs the pending record, enforcing one in-flight action per
// (roomID, kind).
func (p *Pipeline) acquire(kind Kind, roomID uint64, optimistic *models.Bid) (*PendingAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := pendingKey{roomID: roomID, kind: kind}
	if _, exists := p.pending[key]; exists {
		return nil, ErrActionPending
	}

	pa := &PendingAction{
		ID:            uuid.New(),
		Kind:          kind,
		RoomID:        roomID,
		State:         StateSubmitting,
		SubmittedAt:   time.Now(),
		OptimisticBid: optimistic,
	}
	p.pending[key] = pa
	return pa, nil
}

// release destroys the pending record on every terminal path, including
// timeout, so the user can retry.
func (p *Pipeline) release(pa *PendingAction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, pendingKey{roomID: pa.RoomID, kind: pa.Kind})
}

// account returns the connected identity or a validation error.
func (p *Pipeline) account() (string, error) {
	acct := p.provider.Account()
	if acct == "" {
		return "", validationf("Please connect your wallet first!")
	}
	return acct, nil
}

// execute runs one submission end to end: submit, await finality within the
// confirmation window, refresh the mirror, record and alert. refreshRoom is
// skipped for actions that are not room-scoped (register).
func (p *Pipeline) execute(ctx context.Context, pa *PendingAction, account, successMsg string,
	refreshRoom bool, submit func(context.Context) (ledger.TxID, error)) error {
	defer p.release(pa)

	ctx, cancel := context.WithTimeout(ctx, p.confirmWindow)
	defer cancel()

	tx, err := submit(ctx)
	if err != nil {
		return p.fail(pa, err)
	}

	pa.State = StateConfirming
	if err := p.writer.WaitFinal(ctx, tx); err != nil {
		return p.fail(pa, err)
	}

	if refreshRoom {
		// Never trust the optimistic patch as final truth.
		if _, err := p.mirror.Refresh(context.WithoutCancel(ctx), pa.RoomID); err != nil {
			p.log.WithFields(logrus.Fields{
				"room":  pa.RoomID,
				"error": err,
			}).Warn("post-action refresh failed")
		}
	}

	p.recorder.Record(context.WithoutCancel(ctx), history.ActionRecord{
		ID:        pa.ID,
		Account:   account,
		RoomID:    pa.RoomID,
		Kind:      string(pa.Kind),
		TxID:      string(tx),
		Timestamp: time.Now().Unix(),
	})

	if successMsg != "" {
		p.alerts.Success(successMsg)
	}
	return nil
}

// fail converts the error to the user-facing taxonomy, surfaces it, and
// returns it. The optimistic patch dies with the pending record.
func (p *Pipeline) fail(pa *PendingAction, err error) error {
	var remote *ledger.RemoteError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = ErrTimeout
		p.alerts.Error("The ledger did not confirm in time. Please try again.")
	case errors.As(err, &remote):
		p.alerts.Error(remote.Error())
	case errors.Is(err, ledger.ErrTransport):
		p.alerts.Error("Connection to the ledger failed. Please try again.")
	default:
		p.alerts.Error("Something went wrong. Please try again.")
	}

	p.log.WithFields(logrus.Fields{
		"kind":  pa.Kind,
		"room":  pa.RoomID,
		"error": err,
	}).Warn("action failed")
	return err
}

// reject surfaces a pre-flight error without touching the network.
func (p *Pipeline) reject(err error) error {
	p.alerts.Error(err.Error())
	return err
}

// Register submits the one-time player registration.
func (p *Pipeline) Register(ctx context.Context) error {
	acct, err := p.account()
	if err != nil {
		return p.reject(err)
	}

	pa, err := p.acquire(KindRegister, 0, nil)
	if err != nil {
		return err
	}
	return p.execute(ctx, pa, acct, "", false, func(ctx context.Context) (ledger.TxID, error) {
		return p.writer.RegisterPlayer(ctx)
	})
}

// CreateRoom validates bounds locally and submits the room creation. The
// remote stays the final arbiter; its rejection surfaces as a RemoteError,
// not a crash.
func (p *Pipeline) CreateRoom(ctx context.Context, minBid uint64, playerCount int) error {
	acct, err := p.account()
	if err != nil {
		return p.reject(err)
	}
	if playerCount < minPlayerCount || playerCount > maxPlayerCount {
		return p.reject(validationf("player count must be between %d and %d", minPlayerCount, maxPlayerCount))
	}

	floor, err := p.reader.MinimumBid(ctx)
	if err != nil {
		return p.fail(&PendingAction{Kind: KindCreate}, err)
	}
	if minBid <= floor {
		return p.reject(validationf("minimum bid must exceed %d", floor))
	}

	pa, err := p.acquire(KindCreate, 0, nil)
	if err != nil {
		return err
	}
	return p.execute(ctx, pa, acct, "Room created successfully!", false, func(ctx context.Context) (ledger.TxID, error) {
		return p.writer.CreateRoom(ctx, minBid, playerCount)
	})
}

// JoinRoom checks capacity and entry fee against the mirrored room, then
// submits the join.
func (p *Pipeline) JoinRoom(ctx context.Context, roomID uint64, fee uint64) error {
	acct, err := p.account()
	if err != nil {
		return p.reject(err)
	}

	room, err := p.mirror.Refresh(ctx, roomID)
	if err != nil {
		return p.fail(&PendingAction{Kind: KindJoin, RoomID: roomID}, err)
	}
	if !room.Exists {
		return p.reject(validationf("room %d does not exist", roomID))
	}
	if room.Phase != models.PhaseCreated && room.Phase != models.PhaseWaiting {
		return p.reject(validationf("room %d is not open for joining", roomID))
	}
	if room.MaxPlayers > 0 && len(room.Players) >= room.MaxPlayers {
		return p.reject(validationf("room %d is full", roomID))
	}
	if fee < room.MinBid {
		return p.reject(validationf("entry fee must be at least %d", room.MinBid))
	}
	if room.HasPlayer(acct) {
		return p.reject(validationf("you have already joined room %d", roomID))
	}

	pa, err := p.acquire(KindJoin, roomID, nil)
	if err != nil {
		return err
	}
	return p.execute(ctx, pa, acct, fmt.Sprintf("Joined room %d!", roomID), true, func(ctx context.Context) (ledger.TxID, error) {
		return p.writer.JoinRoom(ctx, roomID, fee)
	})
}

// PlaceBid is turn-bound: AssertTurn runs before anything touches the
// network. While in flight the bid is visible through PendingBid as a
// provisional overlay.
func (p *Pipeline) PlaceBid(ctx context.Context, roomID uint64, digit, quantity int, amount uint64) error {
	acct, err := p.account()
	if err != nil {
		return p.reject(err)
	}
	if digit < 0 || digit > 9 {
		return p.reject(validationf("digit must be between 0 and 9"))
	}
	if quantity < 1 {
		return p.reject(validationf("quantity must be at least 1"))
	}
	if err := p.turns.AssertTurn(roomID, acct); err != nil {
		p.alerts.Error("It's not your turn!")
		return err
	}

	optimistic := &models.Bid{
		Bidder:    acct,
		Digit:     digit,
		Quantity:  quantity,
		Amount:    amount,
		Timestamp: time.Now().Unix(),
	}
	pa, err := p.acquire(KindBid, roomID, optimistic)
	if err != nil {
		return err
	}
	return p.execute(ctx, pa, acct, "Bid placed!", true, func(ctx context.Context) (ledger.TxID, error) {
		return p.writer.PlaceBid(ctx, roomID, digit, quantity, amount)
	})
}

// CallLiar challenges the current bid and, on confirmation, chains the
// automatic reveal: calling liar and revealing are one indivisible play from
// the player's perspective even though they are two ledger writes.
func (p *Pipeline) CallLiar(ctx context.Context, roomID uint64) error {
	acct, err := p.account()
	if err != nil {
		return p.reject(err)
	}

	room, ok := p.mirror.Room(roomID)
	if !ok || room.Phase != models.PhaseInProgress {
		return p.reject(validationf("room %d has no game in progress", roomID))
	}

	pa, err := p.acquire(KindCallLiar, roomID, nil)
	if err != nil {
		return err
	}
	if err := p.execute(ctx, pa, acct, "", true, func(ctx context.Context) (ledger.TxID, error) {
		return p.writer.CallLiar(ctx, roomID)
	}); err != nil {
		return err
	}

	// Follow-on reveal; runs under its own pending record and window.
	rpa, err := p.acquire(KindCallLiar, roomID, nil)
	if err != nil {
		return err
	}
	return p.execute(ctx, rpa, acct, "Liar called!", true, func(ctx context.Context) (ledger.TxID, error) {
		return p.writer.RevealNumber(ctx, roomID)
	})
}

// StartGame generates one private serial number per player and submits the
// start. Serials come from crypto/rand and never repeat within a batch.
func (p *Pipeline) StartGame(ctx context.Context, roomID uint64, playerCount int) error {
	acct, err := p.account()
	if err != nil {
		return p.reject(err)
	}
	if playerCount < minPlayerCount || playerCount > maxPlayerCount {
		return p.reject(validationf("player count must be between %d and %d", minPlayerCount, maxPlayerCount))
	}

	serials, err := generateSerials(playerCount)
	if err != nil {
		return p.fail(&PendingAction{Kind: KindStartGame, RoomID: roomID}, err)
	}

	pa, err := p.acquire(KindStartGame, roomID, nil)
	if err != nil {
		return err
	}
	return p.execute(ctx, pa, acct, "Game started!", true, func(ctx context.Context) (ledger.TxID, error) {
		return p.writer.StartGame(ctx, roomID, serials)
	})
}

// generateSerials draws n distinct fixed-length numeric tokens from
// crypto/rand. Tokens are each player's private game piece and must be
// unpredictable to other participants.
func generateSerials(n int) ([]uint64, error) {
	const (
		low  = 1_000_000_000 // smallest 10-digit number
		span = 9_000_000_000
	)

	out := make([]uint64, 0, n)
	seen := make(map[uint64]bool, n)
	for len(out) < n {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, fmt.Errorf("generate serial: %w", err)
		}
		serial := low + binary.BigEndian.Uint64(buf[:])%span
		if seen[serial] {
			continue
		}
		seen[serial] = true
		out = append(out, serial)
	}
	return out, nil
}
