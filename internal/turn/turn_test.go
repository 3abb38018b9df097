// internal/turn/turn_test.go
package turn

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/liarspoker/internal/alert"
	"github.com/jason-s-yu/liarspoker/internal/ledger/ledgertest"
	"github.com/jason-s-yu/liarspoker/internal/mirror"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setup(t *testing.T, room models.GameRoom) (*Coordinator, *alert.Channel) {
	t.Helper()
	fake := ledgertest.NewFake()
	fake.SetRoom(room)
	m := mirror.New(fake, testLogger())
	_, err := m.Refresh(context.Background(), room.RoomID)
	require.NoError(t, err)

	alerts := alert.NewChannel()
	return NewCoordinator(m, alerts), alerts
}

func TestCurrentTurn(t *testing.T) {
	c, _ := setup(t, models.GameRoom{
		RoomID: 1, Players: []string{"0xAbc", "0xDef"}, Phase: models.PhaseInProgress,
		CurrentTurn: "0xDef", Exists: true,
	})

	assert.Equal(t, "0xDef", c.CurrentTurn(1))
	assert.Equal(t, "", c.CurrentTurn(99), "uncached room has no turn")
}

func TestCurrentTurnOnlyWhileInProgress(t *testing.T) {
	c, _ := setup(t, models.GameRoom{
		RoomID: 1, Players: []string{"a", "b"}, Phase: models.PhaseWaiting,
		CurrentTurn: "a", Exists: true,
	})
	assert.Equal(t, "", c.CurrentTurn(1))
}

func TestIsMyTurnCaseInsensitive(t *testing.T) {
	c, _ := setup(t, models.GameRoom{
		RoomID: 1, Players: []string{"0xAbc", "0xDef"}, Phase: models.PhaseInProgress,
		CurrentTurn: "0xDef", Exists: true,
	})

	assert.True(t, c.IsMyTurn(1, "0xdef"))
	assert.False(t, c.IsMyTurn(1, "0xabc"))
	assert.NoError(t, c.AssertTurn(1, "0xDEF"))
	assert.ErrorIs(t, c.AssertTurn(1, "0xabc"), ErrNotYourTurn)
}

func TestHandleTurnChangedNotifiesSelf(t *testing.T) {
	c, alerts := setup(t, models.GameRoom{
		RoomID: 1, Players: []string{"me", "them"}, Phase: models.PhaseInProgress,
		CurrentTurn: "me", Exists: true,
	})

	c.HandleTurnChanged(models.Event{Name: models.EventTurnChanged, RoomID: 1, NewTurn: "ME"}, "me")

	got := alerts.Current()
	assert.True(t, got.Active)
	assert.Equal(t, alert.KindInfo, got.Kind)
	assert.Equal(t, "It's your turn!", got.Message)
}

func TestHandleTurnChangedIgnoresOthers(t *testing.T) {
	c, alerts := setup(t, models.GameRoom{
		RoomID: 1, Players: []string{"me", "them"}, Phase: models.PhaseInProgress,
		CurrentTurn: "them", Exists: true,
	})

	c.HandleTurnChanged(models.Event{Name: models.EventTurnChanged, RoomID: 1, NewTurn: "them"}, "me")
	assert.False(t, alerts.Current().Active)
}

func TestHandleTurnChangedIgnoresUnjoinedRoom(t *testing.T) {
	c, alerts := setup(t, models.GameRoom{
		RoomID: 1, Players: []string{"alice", "bob"}, Phase: models.PhaseInProgress,
		CurrentTurn: "alice", Exists: true,
	})

	// The turn matches but the observer is not seated in the room.
	c.HandleTurnChanged(models.Event{Name: models.EventTurnChanged, RoomID: 1, NewTurn: "carol"}, "carol")
	assert.False(t, alerts.Current().Active)
}
