// internal/ledger/ledgertest/ledgertest.go
//
// Package ledgertest provides in-memory fakes of the ledger surfaces for
// tests: a Fake that answers reads from scripted room state and applies the
// remote game rules to writes, and a FakeFeed whose streams tests can emit
// into or drop.
package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jason-s-yu/liarspoker/internal/ledger"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

// Fake implements ledger.Reader and ledger.Writer. Account is the identity
// writes act as; tests flip it to simulate different participants. Every
// method bumps Calls[name] so tests can assert network-call counts.
type Fake struct {
	mu sync.Mutex

	Account string
	MinBid  uint64

	rooms      map[uint64]*models.GameRoom
	serials    map[uint64][]uint64
	nextRoomID uint64

	Calls    map[string]int
	FailWith map[string]error // scripted one-shot error per method

	// WaitGate, when non-nil, blocks WaitFinal until the test sends or
	// closes it. Used to hold an action in Confirming.
	WaitGate chan struct{}
}

// NewFake returns an empty ledger with a 100-unit bid floor.
func NewFake() *Fake {
	return &Fake{
		MinBid:   100,
		rooms:    make(map[uint64]*models.GameRoom),
		serials:  make(map[uint64][]uint64),
		Calls:    make(map[string]int),
		FailWith: make(map[string]error),
	}
}

func (f *Fake) bump(method string) error {
	f.Calls[method]++
	if err, ok := f.FailWith[method]; ok {
		delete(f.FailWith, method)
		return err
	}
	return nil
}

// CallCount returns how many times method was invoked.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

// SetRoom installs or replaces a room snapshot.
func (f *Fake) SetRoom(room models.GameRoom) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := room
	f.rooms[room.RoomID] = &r
	if room.RoomID >= f.nextRoomID {
		f.nextRoomID = room.RoomID + 1
	}
}

// MustRoom returns the current snapshot of roomID, panicking if absent.
func (f *Fake) MustRoom(roomID uint64) models.GameRoom {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		panic(fmt.Sprintf("ledgertest: no room %d", roomID))
	}
	return *r
}

// RoomDetails implements ledger.Reader.
func (f *Fake) RoomDetails(ctx context.Context, roomID uint64) (models.GameRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("getRoomDetails"); err != nil {
		return models.GameRoom{}, err
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return models.GameRoom{}, ledger.ErrRoomNotFound
	}
	out := *r
	out.Players = append([]string(nil), r.Players...)
	return out, nil
}

// PlayerDetails implements ledger.Reader.
func (f *Fake) PlayerDetails(ctx context.Context, roomID uint64, account string) (models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("getPlayerDetails"); err != nil {
		return models.Player{}, err
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return models.Player{}, ledger.ErrRoomNotFound
	}
	for i, p := range r.Players {
		if strings.EqualFold(p, account) {
			pl := models.Player{Account: p, Registered: true}
			if s := f.serials[roomID]; i < len(s) {
				pl.SerialNumber = s[i]
			}
			return pl, nil
		}
	}
	return models.Player{}, &ledger.RemoteError{Reason: "player not in room"}
}

// ActiveRoomIDs implements ledger.Reader.
func (f *Fake) ActiveRoomIDs(ctx context.Context) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("getActiveRoomIds"); err != nil {
		return nil, err
	}
	var ids []uint64
	for id, r := range f.rooms {
		if !r.Phase.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// MinimumBid implements ledger.Reader.
func (f *Fake) MinimumBid(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("minimumBid"); err != nil {
		return 0, err
	}
	return f.MinBid, nil
}

// RegisterPlayer implements ledger.Writer.
func (f *Fake) RegisterPlayer(ctx context.Context) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("registerPlayer"); err != nil {
		return "", err
	}
	return "tx-register", nil
}

// CreateRoom implements ledger.Writer: a new room opens in Waiting with the
// creator seated.
func (f *Fake) CreateRoom(ctx context.Context, minBid uint64, playerCount int) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("createRoom"); err != nil {
		return "", err
	}
	id := f.nextRoomID
	f.nextRoomID++
	f.rooms[id] = &models.GameRoom{
		RoomID:     id,
		Creator:    f.Account,
		Players:    []string{f.Account},
		Phase:      models.PhaseWaiting,
		MinBid:     minBid,
		MaxPlayers: playerCount,
		Exists:     true,
	}
	return ledger.TxID(fmt.Sprintf("tx-create-%d", id)), nil
}

// JoinRoom implements ledger.Writer: the room flips to Ready once full.
func (f *Fake) JoinRoom(ctx context.Context, roomID uint64, fee uint64) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("joinRoom"); err != nil {
		return "", err
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return "", ledger.ErrRoomNotFound
	}
	r.Players = append(r.Players, f.Account)
	r.PrizePool += fee
	if r.MaxPlayers > 0 && len(r.Players) >= r.MaxPlayers {
		r.Phase = models.PhaseReady
	}
	return "tx-join", nil
}

// PlaceBid implements ledger.Writer: the bid is recorded and the turn
// advances to the next seated player.
func (f *Fake) PlaceBid(ctx context.Context, roomID uint64, digit, quantity int, amount uint64) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("placeBid"); err != nil {
		return "", err
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return "", ledger.ErrRoomNotFound
	}
	r.CurrentBid = &models.Bid{Bidder: f.Account, Digit: digit, Quantity: quantity, Amount: amount}
	r.PrizePool += amount
	for i, p := range r.Players {
		if strings.EqualFold(p, f.Account) {
			r.CurrentTurn = r.Players[(i+1)%len(r.Players)]
			break
		}
	}
	return "tx-bid", nil
}

// CallLiar implements ledger.Writer.
func (f *Fake) CallLiar(ctx context.Context, roomID uint64) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("callLiar"); err != nil {
		return "", err
	}
	if r, ok := f.rooms[roomID]; ok {
		r.Phase = models.PhaseRevealing
		r.CurrentTurn = ""
	}
	return "tx-liar", nil
}

// RevealNumber implements ledger.Writer: the game completes and the caller
// takes the pool.
func (f *Fake) RevealNumber(ctx context.Context, roomID uint64) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("revealNumber"); err != nil {
		return "", err
	}
	if r, ok := f.rooms[roomID]; ok {
		r.Phase = models.PhaseCompleted
		r.Winner = f.Account
	}
	return "tx-reveal", nil
}

// StartGame implements ledger.Writer.
func (f *Fake) StartGame(ctx context.Context, roomID uint64, serialNumbers []uint64) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bump("startGame"); err != nil {
		return "", err
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return "", ledger.ErrRoomNotFound
	}
	r.Phase = models.PhaseInProgress
	r.CurrentTurn = r.Players[0]
	f.serials[roomID] = append([]uint64(nil), serialNumbers...)
	return "tx-start", nil
}

// WaitFinal implements ledger.Writer. With WaitGate set, it blocks until
// the test releases it.
func (f *Fake) WaitFinal(ctx context.Context, tx ledger.TxID) error {
	f.mu.Lock()
	err := f.bump("waitFinal")
	gate := f.WaitGate
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// WriteCalls sums the write-method invocations, for zero-network-call
// assertions.
func (f *Fake) WriteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, m := range []string{"registerPlayer", "createRoom", "joinRoom", "placeBid", "callLiar", "revealNumber", "startGame"} {
		total += f.Calls[m]
	}
	return total
}

// stream is one live FakeFeed subscription.
type stream struct {
	ch   chan models.RawEvent
	once sync.Once
}

func (s *stream) close() {
	s.once.Do(func() { close(s.ch) })
}

// FakeFeed implements ledger.Feed with test-driven delivery.
type FakeFeed struct {
	mu      sync.Mutex
	streams map[models.EventName][]*stream
	subs    map[models.EventName]int
	seq     uint64
}

// NewFakeFeed returns an empty feed.
func NewFakeFeed() *FakeFeed {
	return &FakeFeed{
		streams: make(map[models.EventName][]*stream),
		subs:    make(map[models.EventName]int),
	}
}

// Subscribe implements ledger.Feed. The returned stop detaches the stream
// from delivery before closing it.
func (f *FakeFeed) Subscribe(ctx context.Context, name models.EventName) (<-chan models.RawEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[name]++
	s := &stream{ch: make(chan models.RawEvent, 16)}
	f.streams[name] = append(f.streams[name], s)
	return s.ch, func() {
		f.detach(name, s)
		s.close()
	}, nil
}

func (f *FakeFeed) detach(name models.EventName, target *stream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := f.streams[name][:0]
	for _, s := range f.streams[name] {
		if s != target {
			live = append(live, s)
		}
	}
	f.streams[name] = live
}

// SubscribeCount reports how many streams were ever opened for name.
func (f *FakeFeed) SubscribeCount(name models.EventName) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[name]
}

// Emit marshals payload and delivers it to every live stream for name.
func (f *FakeFeed) Emit(name models.EventName, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("ledgertest: emit %s: %v", name, err))
	}

	f.mu.Lock()
	f.seq++
	raw := models.RawEvent{Name: name, Seq: f.seq, Payload: data}
	targets := append([]*stream(nil), f.streams[name]...)
	f.mu.Unlock()

	for _, s := range targets {
		s.ch <- raw
	}
}

// Drop closes every live stream for name without unsubscribing, simulating
// a transport drop the registry must recover from.
func (f *FakeFeed) Drop(name models.EventName) {
	f.mu.Lock()
	targets := f.streams[name]
	f.streams[name] = nil
	f.mu.Unlock()

	for _, s := range targets {
		s.close()
	}
}
