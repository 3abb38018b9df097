// internal/models/room_test.go
package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	for v := int(PhaseCreated); v <= int(PhaseCanceled); v++ {
		p, err := ParsePhase(v)
		require.NoError(t, err)
		assert.Equal(t, Phase(v), p)
	}

	_, err := ParsePhase(8)
	var unknown ErrUnknownPhase
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 8, unknown.Value)

	_, err = ParsePhase(-1)
	assert.Error(t, err)
}

func TestPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseCompleted.Terminal())
	assert.True(t, PhaseCanceled.Terminal())
	assert.False(t, PhaseInProgress.Terminal())
	assert.False(t, PhaseWaiting.Terminal())
}

func TestHasPlayerCaseInsensitive(t *testing.T) {
	room := GameRoom{Players: []string{"0xAbC", "0xDEF"}}
	assert.True(t, room.HasPlayer("0xabc"))
	assert.True(t, room.HasPlayer("0xDEF"))
	assert.False(t, room.HasPlayer("0x123"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		room    GameRoom
		wantErr bool
	}{
		{
			name: "in progress with seated turn holder",
			room: GameRoom{
				RoomID: 1, Exists: true, Phase: PhaseInProgress,
				Players: []string{"a", "b"}, CurrentTurn: "b",
			},
		},
		{
			name: "turn holder not seated",
			room: GameRoom{
				RoomID: 1, Exists: true, Phase: PhaseInProgress,
				Players: []string{"a", "b"}, CurrentTurn: "c",
			},
			wantErr: true,
		},
		{
			name: "bid digit out of range",
			room: GameRoom{
				RoomID: 1, Exists: true, Phase: PhaseInProgress,
				Players: []string{"a"}, CurrentTurn: "a",
				CurrentBid: &Bid{Digit: 12, Quantity: 1},
			},
			wantErr: true,
		},
		{
			name: "bid quantity out of range",
			room: GameRoom{
				RoomID: 1, Exists: true, Phase: PhaseInProgress,
				Players: []string{"a"}, CurrentTurn: "a",
				CurrentBid: &Bid{Digit: 5, Quantity: 0},
			},
			wantErr: true,
		},
		{
			name: "nonexistent room is always valid",
			room: GameRoom{RoomID: 9, Exists: false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.room.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
