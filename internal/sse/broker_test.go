package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_Local(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to subscribers of the same session only", func(t *testing.T) {
		b := NewBroker(nil)
		defer b.Close()

		a := b.Subscribe("a")
		other := b.Subscribe("b")

		require.NoError(t, b.Publish(ctx, "a", Event{Type: "session.paired", Data: json.RawMessage(`{}`)}))

		select {
		case ev := <-a.Events:
			assert.Equal(t, "session.paired", ev.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}

		select {
		case ev := <-other.Events:
			t.Fatalf("unexpected event for other session: %v", ev)
		default:
		}
	})

	t.Run("drops events when client buffer is full", func(t *testing.T) {
		b := NewBroker(nil)
		defer b.Close()

		c := b.Subscribe("a")
		for i := 0; i < clientBufferSize+5; i++ {
			require.NoError(t, b.Publish(ctx, "a", Event{Type: "tick"}))
		}
		assert.Len(t, c.Events, clientBufferSize)
	})

	t.Run("unsubscribe closes done and is idempotent", func(t *testing.T) {
		b := NewBroker(nil)
		defer b.Close()

		c := b.Subscribe("a")
		assert.Equal(t, 1, b.ClientCount("a"))

		b.Unsubscribe(c)
		b.Unsubscribe(c)

		assert.Equal(t, 0, b.ClientCount("a"))
		assert.Equal(t, 0, b.TotalClients())
		_, open := <-c.Done
		assert.False(t, open)
	})

	t.Run("close releases every client", func(t *testing.T) {
		b := NewBroker(nil)
		c1 := b.Subscribe("a")
		c2 := b.Subscribe("b")
		assert.Equal(t, 2, b.TotalClients())

		b.Close()

		_, open := <-c1.Done
		assert.False(t, open)
		_, open = <-c2.Done
		assert.False(t, open)
		assert.Equal(t, 0, b.TotalClients())
	})
}
