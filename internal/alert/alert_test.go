// internal/alert/alert_test.go
package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReplaces(t *testing.T) {
	c := NewChannel()
	assert.False(t, c.Current().Active)

	c.Success("first")
	c.Error("second")

	got := c.Current()
	assert.True(t, got.Active)
	assert.Equal(t, KindError, got.Kind)
	assert.Equal(t, "second", got.Message)
}

func TestClear(t *testing.T) {
	c := NewChannel()
	c.Info("hello")
	c.Clear()
	assert.Equal(t, Alert{}, c.Current())
}

func TestChangesCoalesce(t *testing.T) {
	c := NewChannel()

	// Many rapid publishes never block and collapse into one pending nudge.
	for i := 0; i < 10; i++ {
		c.Success("msg")
	}

	select {
	case <-c.Changes():
	default:
		t.Fatal("expected a pending change notification")
	}

	select {
	case <-c.Changes():
		t.Fatal("notifications should have coalesced")
	default:
	}
}
