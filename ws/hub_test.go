package ws

import (
	"testing"
	"time"
)

func receiveOrTimeout(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	defer hub.Stop()

	chA := make(chan Message, 10)
	chB := make(chan Message, 10)
	hub.Register("a", chA)
	hub.Register("b", chB)

	hub.Broadcast(Message{Type: MessageTypeCloneAssigned})

	if got := receiveOrTimeout(t, chA); got.Type != MessageTypeCloneAssigned {
		t.Errorf("client a got %q", got.Type)
	}
	if got := receiveOrTimeout(t, chB); got.Type != MessageTypeCloneAssigned {
		t.Errorf("client b got %q", got.Type)
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	defer hub.Stop()

	ch := make(chan Message, 10)
	hub.Register("gone", ch)
	hub.Unregister("gone")

	select {
	case _, open := <-ch:
		if open {
			t.Error("received message instead of close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unregister")
	}

	// Broadcasts after unregister must not panic or block.
	hub.Broadcast(Message{Type: MessageTypeHeartbeat})
}

func TestHub_SlowClientDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	defer hub.Stop()

	slow := make(chan Message) // unbuffered and never read
	fast := make(chan Message, 10)
	hub.Register("slow", slow)
	hub.Register("fast", fast)

	hub.Broadcast(Message{Type: MessageTypeAutoAssign})

	if got := receiveOrTimeout(t, fast); got.Type != MessageTypeAutoAssign {
		t.Errorf("fast client got %q", got.Type)
	}
}

func TestHub_StopClosesAllClients(t *testing.T) {
	t.Parallel()
	hub := NewHub()

	chA := make(chan Message, 10)
	chB := make(chan Message, 10)
	hub.Register("a", chA)
	hub.Register("b", chB)

	hub.Stop()

	for name, ch := range map[string]chan Message{"a": chA, "b": chB} {
		select {
		case _, open := <-ch:
			if open {
				t.Errorf("client %s received message instead of close", name)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client %s channel not closed after Stop", name)
		}
	}
}
