// internal/models/events.go
package models

import (
	"encoding/json"
	"fmt"
)

// EventName identifies one of the ledger's named event streams.
type EventName string

const (
	EventPlayerRegistered EventName = "PlayerRegistered"
	EventRoomCreated      EventName = "RoomCreated"
	EventPlayerJoined     EventName = "PlayerJoined"
	EventGameStarted      EventName = "GameStarted"
	EventBidPlaced        EventName = "BidPlaced"
	EventLiarCalled       EventName = "LiarCalled"
	EventGameEnded        EventName = "GameEnded"
	EventTurnChanged      EventName = "TurnChanged"
)

// AllEventNames is the fixed set of streams the engine subscribes to.
var AllEventNames = []EventName{
	EventPlayerRegistered,
	EventRoomCreated,
	EventPlayerJoined,
	EventGameStarted,
	EventBidPlaced,
	EventLiarCalled,
	EventGameEnded,
	EventTurnChanged,
}

// RawEvent is one frame off the ledger's event feed. Seq is the ledger's
// per-room sequence; events for a single room arrive in non-decreasing Seq
// order, events across rooms carry no relative ordering.
type RawEvent struct {
	Name    EventName       `json:"event"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Event is a decoded domain event. Payloads carry only what is needed to
// know which room/account is affected; handlers re-derive truth via a
// refresh because the payload may be stale by the time it is processed.
type Event struct {
	Name        EventName
	Seq         uint64
	RoomID      uint64
	Player      string // PlayerRegistered
	Creator     string // RoomCreated
	Winner      string // GameEnded
	PrizeAmount uint64 // GameEnded
	NewTurn     string // TurnChanged
}

type playerRegisteredPayload struct {
	Player string `json:"player"`
}

type roomCreatedPayload struct {
	Creator string `json:"creator"`
	RoomID  uint64 `json:"roomId"`
}

type roomScopedPayload struct {
	RoomID uint64 `json:"roomId"`
}

type gameEndedPayload struct {
	RoomID      uint64 `json:"roomId"`
	Winner      string `json:"winner"`
	PrizeAmount uint64 `json:"prizeAmount"`
}

type turnChangedPayload struct {
	RoomID  uint64 `json:"roomId"`
	NewTurn string `json:"newTurn"`
}

// DecodeEvent parses a raw feed frame into a typed domain event.
func DecodeEvent(raw RawEvent) (Event, error) {
	ev := Event{Name: raw.Name, Seq: raw.Seq}

	switch raw.Name {
	case EventPlayerRegistered:
		var p playerRegisteredPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", raw.Name, err)
		}
		ev.Player = p.Player

	case EventRoomCreated:
		var p roomCreatedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", raw.Name, err)
		}
		ev.Creator = p.Creator
		ev.RoomID = p.RoomID

	case EventPlayerJoined, EventGameStarted, EventBidPlaced, EventLiarCalled:
		var p roomScopedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", raw.Name, err)
		}
		ev.RoomID = p.RoomID

	case EventGameEnded:
		var p gameEndedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", raw.Name, err)
		}
		ev.RoomID = p.RoomID
		ev.Winner = p.Winner
		ev.PrizeAmount = p.PrizeAmount

	case EventTurnChanged:
		var p turnChangedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", raw.Name, err)
		}
		ev.RoomID = p.RoomID
		ev.NewTurn = p.NewTurn

	default:
		return ev, fmt.Errorf("unknown event name %q", raw.Name)
	}

	return ev, nil
}
