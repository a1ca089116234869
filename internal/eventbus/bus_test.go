package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeOrdering(t *testing.T) {
	bus := New()
	events, unsubscribe := bus.Subscribe("session-1")
	defer unsubscribe()

	bus.Publish("session-1", AgentStart, map[string]any{"n": 1})
	bus.Publish("session-1", ToolExecuted, map[string]any{"n": 2})
	bus.Publish("session-1", AgentDone, map[string]any{"n": 3})

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case e := <-events:
			got = append(got, e.Name)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []string{AgentStart, ToolExecuted, AgentDone}, got)
}

func TestPublishScopedToSession(t *testing.T) {
	bus := New()
	events, unsubscribe := bus.Subscribe("session-a")
	defer unsubscribe()

	bus.Publish("session-b", AgentStart, nil)

	select {
	case e := <-events:
		t.Fatalf("unexpected event delivered to wrong session: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	events, unsubscribe := bus.Subscribe("session-1")
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok, "expected channel to be closed after unsubscribe")
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := New()
	_, unsubscribe := bus.Subscribe("session-1")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish("session-1", ToolExecuted, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestMultipleSubscribersReceiveIndependently(t *testing.T) {
	bus := New()
	a, unsubA := bus.Subscribe("session-1")
	defer unsubA()
	b, unsubB := bus.Subscribe("session-1")
	defer unsubB()

	bus.Publish("session-1", AgentStart, "payload")

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			require.Equal(t, AgentStart, e.Name)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}
