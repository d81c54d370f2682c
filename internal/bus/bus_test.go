package bus

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(nil)
	var got []Event
	unsub := b.Subscribe("session.", func(evt Event) { got = append(got, evt) })
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged, Timestamp: time.Now(), Payload: "test"})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Kind != KindStatusChanged {
		t.Errorf("got kind %q, want %q", got[0].Kind, KindStatusChanged)
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New(nil)
	var got []Event
	unsub := b.Subscribe("conn.", func(evt Event) { got = append(got, evt) })
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged})
	b.Publish(Event{Kind: KindConnReady})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Kind != KindConnReady {
		t.Errorf("got kind %q, want %q", got[0].Kind, KindConnReady)
	}
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	b := New(nil)
	var order []int
	unsub1 := b.Subscribe("message.", func(Event) { order = append(order, 1) })
	defer unsub1()
	unsub2 := b.Subscribe("message.", func(Event) { order = append(order, 2) })
	defer unsub2()
	unsub3 := b.Subscribe("message.", func(Event) { order = append(order, 3) })
	defer unsub3()

	b.Publish(Event{Kind: KindMessageAdded})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("handler order = %v, want [1 2 3]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)
	calls := 0
	unsub := b.Subscribe("session.", func(Event) { calls++ })
	unsub()
	unsub() // second call is a no-op

	b.Publish(Event{Kind: KindStatusChanged})

	if calls != 0 {
		t.Errorf("got %d calls after unsubscribe, want 0", calls)
	}
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	b := New(nil)
	unsub1 := b.Subscribe("message.", func(Event) { panic("boom") })
	defer unsub1()
	calls := 0
	unsub2 := b.Subscribe("message.", func(Event) { calls++ })
	defer unsub2()

	b.Publish(Event{Kind: KindMessageAdded})

	if calls != 1 {
		t.Errorf("got %d calls after panicking sibling, want 1", calls)
	}
}

func TestPanickingHandlerIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	b := New(zap.New(core))
	unsub := b.Subscribe("message.", func(Event) { panic("boom") })
	defer unsub()

	b.Publish(Event{Kind: KindMessageAdded})

	entries := logs.FilterMessage("event handler panicked").All()
	if len(entries) != 1 {
		t.Fatalf("got %d panic log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["kind"] != KindMessageAdded {
		t.Errorf("logged kind = %v, want %q", fields["kind"], KindMessageAdded)
	}
	if fields["panic"] != "boom" {
		t.Errorf("logged panic = %v, want %q", fields["panic"], "boom")
	}
}

func TestReentrantPublish(t *testing.T) {
	b := New(nil)
	var kinds []string
	var unsub func()
	unsub = b.Subscribe("message.", func(evt Event) {
		kinds = append(kinds, evt.Kind)
		if evt.Kind == KindMessageAdded {
			b.Publish(Event{Kind: KindMessageUpdated})
		}
	})
	defer unsub()

	b.Publish(Event{Kind: KindMessageAdded})

	if len(kinds) != 2 || kinds[1] != KindMessageUpdated {
		t.Errorf("kinds = %v, want [message.added message.updated]", kinds)
	}
}
