// internal/ledger/httprpc/client.go
//
// Package httprpc implements the ledger read/write surface over a JSON-RPC
// style HTTP endpoint exposed by the ledger gateway node.
package httprpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/ledger"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

// Client talks to a single ledger gateway. It implements ledger.Reader and
// ledger.Writer.
type Client struct {
	url  string
	http *http.Client
	log  *logrus.Logger
}

// New creates a client for the gateway at url.
func New(url string, log *logrus.Logger) *Client {
	return &Client{
		url: url,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

// call performs one request/response round trip. Transport failures map to
// ledger.ErrTransport; gateway-reported errors map to the ledger taxonomy.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ledger.ErrTransport, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: http %d", ledger.ErrTransport, method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ledger.ErrTransport, method, err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"duration": time.Since(start),
	}).Debug("ledger call")

	if envelope.Error != nil {
		switch envelope.Error.Code {
		case "not_found":
			return ledger.ErrRoomNotFound
		default:
			return &ledger.RemoteError{Reason: envelope.Error.Message}
		}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%w: %s: decode result: %v", ledger.ErrTransport, method, err)
		}
	}
	return nil
}

// roomWire is the gateway's room encoding; phase arrives as a small integer.
type roomWire struct {
	RoomID      uint64      `json:"roomId"`
	Creator     string      `json:"creator"`
	Players     []string    `json:"players"`
	Phase       int         `json:"currentState"`
	CurrentTurn string      `json:"currentTurn"`
	CurrentBid  *models.Bid `json:"currentBid,omitempty"`
	MinBid      uint64      `json:"minBid"`
	MaxPlayers  int         `json:"playerCount"`
	PrizePool   uint64      `json:"totalPrizePool"`
	Winner      string      `json:"winner,omitempty"`
}

// RoomDetails implements ledger.Reader.
func (c *Client) RoomDetails(ctx context.Context, roomID uint64) (models.GameRoom, error) {
	var wire roomWire
	if err := c.call(ctx, "getRoomDetails", []any{roomID}, &wire); err != nil {
		return models.GameRoom{}, err
	}

	phase, err := models.ParsePhase(wire.Phase)
	if err != nil {
		return models.GameRoom{}, fmt.Errorf("room %d: %w", roomID, err)
	}

	return models.GameRoom{
		RoomID:      wire.RoomID,
		Creator:     wire.Creator,
		Players:     wire.Players,
		Phase:       phase,
		CurrentTurn: wire.CurrentTurn,
		CurrentBid:  wire.CurrentBid,
		MinBid:      wire.MinBid,
		MaxPlayers:  wire.MaxPlayers,
		PrizePool:   wire.PrizePool,
		Winner:      wire.Winner,
		Exists:      true,
	}, nil
}

// PlayerDetails implements ledger.Reader.
func (c *Client) PlayerDetails(ctx context.Context, roomID uint64, account string) (models.Player, error) {
	var p models.Player
	if err := c.call(ctx, "getPlayerDetails", []any{roomID, account}, &p); err != nil {
		return models.Player{}, err
	}
	return p, nil
}

// ActiveRoomIDs implements ledger.Reader.
func (c *Client) ActiveRoomIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	if err := c.call(ctx, "getActiveRoomIds", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// MinimumBid implements ledger.Reader.
func (c *Client) MinimumBid(ctx context.Context) (uint64, error) {
	var min uint64
	if err := c.call(ctx, "minimumBid", nil, &min); err != nil {
		return 0, err
	}
	return min, nil
}

// submit sends a write and returns its transaction id.
func (c *Client) submit(ctx context.Context, method string, params []any) (ledger.TxID, error) {
	var tx struct {
		TxID string `json:"txId"`
	}
	if err := c.call(ctx, method, params, &tx); err != nil {
		return "", err
	}
	return ledger.TxID(tx.TxID), nil
}

// RegisterPlayer implements ledger.Writer.
func (c *Client) RegisterPlayer(ctx context.Context) (ledger.TxID, error) {
	return c.submit(ctx, "registerPlayer", nil)
}

// CreateRoom implements ledger.Writer.
func (c *Client) CreateRoom(ctx context.Context, minBid uint64, playerCount int) (ledger.TxID, error) {
	return c.submit(ctx, "createRoom", []any{minBid, playerCount})
}

// JoinRoom implements ledger.Writer.
func (c *Client) JoinRoom(ctx context.Context, roomID uint64, fee uint64) (ledger.TxID, error) {
	return c.submit(ctx, "joinRoom", []any{roomID, fee})
}

// PlaceBid implements ledger.Writer.
func (c *Client) PlaceBid(ctx context.Context, roomID uint64, digit, quantity int, amount uint64) (ledger.TxID, error) {
	return c.submit(ctx, "placeBid", []any{roomID, digit, quantity, amount})
}

// CallLiar implements ledger.Writer.
func (c *Client) CallLiar(ctx context.Context, roomID uint64) (ledger.TxID, error) {
	return c.submit(ctx, "callLiar", []any{roomID})
}

// RevealNumber implements ledger.Writer.
func (c *Client) RevealNumber(ctx context.Context, roomID uint64) (ledger.TxID, error) {
	return c.submit(ctx, "revealNumber", []any{roomID})
}

// StartGame implements ledger.Writer.
func (c *Client) StartGame(ctx context.Context, roomID uint64, serialNumbers []uint64) (ledger.TxID, error) {
	return c.submit(ctx, "startGame", []any{roomID, serialNumbers})
}

// WaitFinal blocks until the ledger reports the transaction final or failed.
func (c *Client) WaitFinal(ctx context.Context, tx ledger.TxID) error {
	return c.call(ctx, "waitFinal", []any{string(tx)}, nil)
}
