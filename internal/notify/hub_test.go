package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
)

func TestPublishReachesOnlyThatGame(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	h.Publish(Event{GameID: "a", Version: 2, Status: game.StatusPlaying})

	select {
	case ev := <-a:
		assert.Equal(t, int64(2), ev.Version)
	default:
		t.Fatal("expected event on a")
	}
	select {
	case ev := <-b:
		t.Fatalf("unexpected event on b: %+v", ev)
	default:
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("g")
	defer cancel()
	for i := 0; i < bufferSize*3; i++ {
		h.Publish(Event{GameID: "g", Version: int64(i)})
	}
	assert.Len(t, ch, bufferSize)
}

func TestPublishDropsOlderVersions(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("g")
	defer cancel()

	h.Publish(Event{GameID: "g", Version: 4})
	h.Publish(Event{GameID: "g", Version: 3})
	h.Publish(Event{GameID: "g", Version: 4})
	h.Publish(Event{GameID: "g", Version: 5})

	require.Len(t, ch, 2)
	assert.Equal(t, int64(4), (<-ch).Version)
	assert.Equal(t, int64(5), (<-ch).Version)
}

func TestCancelClosesAndUnregisters(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("g")
	require.Equal(t, 1, h.Subscribers("g"))
	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers("g"))
	_, ok := <-ch
	assert.False(t, ok)

	// publishing after everyone left is a no-op
	h.Publish(Event{GameID: "g"})
}
