package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/arbor/internal/editor"
	"github.com/starford/arbor/internal/models"
)

// drain collects whatever is buffered on ch after a short settle period.
func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func count(msgs []string, eventType string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+eventType+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	require.Equal(t, 0, b.ClientCount())
	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.ClientCount())
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "persist.failed", Data: map[string]string{"error": "disk full"}})

	select {
	case msg := <-ch:
		assert.Contains(t, string(msg), "event: persist.failed")
		assert.Contains(t, string(msg), `"error":"disk full"`)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_TreeThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(editor.Change{Kind: editor.ChangeCreated, NodeID: "1", Revision: 1})
	b.PublishChange(editor.Change{Kind: editor.ChangeRenamed, NodeID: "1", Revision: 2})

	msgs := drain(ch)
	assert.Equal(t, 2, count(msgs, "node.created")+count(msgs, "node.renamed"), "node events in %q", msgs)
	assert.Equal(t, 1, count(msgs, "tree.updated"), "tree events should be throttled")
}

func TestPublishChange_Selection(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	file := models.NewFile("7", "a.md", "")
	b.PublishChange(editor.Change{Kind: editor.ChangeSelection, Revision: 3, Selected: file, SelectionChanged: true})
	b.PublishChange(editor.Change{Kind: editor.ChangeDeleted, NodeID: "7", Revision: 4, SelectionChanged: true})

	msgs := drain(ch)
	require.Equal(t, 2, count(msgs, "selection.changed"), "selection events in %q", msgs)
	all := strings.Join(msgs, "")
	assert.Contains(t, all, `{"id":"7"}`, "open event should carry the id")
	assert.Contains(t, all, `{"id":null}`, "clear event should carry null")
	assert.Equal(t, 1, count(msgs, "node.deleted"))
}

func TestPublishChange_Replaced(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(editor.Change{Kind: editor.ChangeReplaced, Revision: 9})
	assert.Equal(t, 1, count(drain(ch), "tree.replaced"))
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, b.ClientCount(), "expected 1 client from handler")

	b.PublishChange(editor.Change{Kind: editor.ChangeUpdated, NodeID: "x", Revision: 1})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: node.updated")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, b.ClientCount(), "client not cleaned up after disconnect")
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	assert.NotPanics(t, func() {
		for i := 0; i < 70; i++ {
			b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
		}
	})
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Close()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected subscriber channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	assert.Equal(t, 0, b.ClientCount())

	// Should be safe no-op after close.
	assert.NotPanics(t, func() {
		b.Publish(Event{Type: "persist.failed", Data: map[string]string{}})
		b.PublishChange(editor.Change{Kind: editor.ChangeUpdated, NodeID: "x"})
	})
}
