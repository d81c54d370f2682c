package status

import (
	"testing"

	"chatlink/internal/bus"
)

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Idle:         {},
		Connecting:   {Connecting},
		AwaitingAuth: {Connecting, AwaitingAuth},
		Ready:        {Connecting, AwaitingAuth, Ready},
		Reconnecting: {Connecting, Reconnecting},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Connecting},
		{Connecting, AwaitingAuth},
		{Connecting, Reconnecting},
		{AwaitingAuth, Ready},
		{AwaitingAuth, Idle},
		{Ready, Reconnecting},
		{Ready, Idle},
		{Reconnecting, Connecting},
		{Reconnecting, Idle},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(IDLE -> READY) should fail")
	}
	if m.Current() != Idle {
		t.Errorf("state after failed transition = %s, want IDLE", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New(nil)
	var got []bus.Event
	unsub := b.Subscribe("session.", func(evt bus.Event) { got = append(got, evt) })
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	change, ok := got[0].Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", got[0].Payload)
	}
	if change.From != Idle || change.To != Connecting {
		t.Errorf("change = %+v, want Idle -> Connecting", change)
	}
}

func TestHandlerCanReadCurrentState(t *testing.T) {
	b := bus.New(nil)
	m := NewMachine(b)

	var observed State
	unsub := b.Subscribe("session.", func(bus.Event) { observed = m.Current() })
	defer unsub()

	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}
	if observed != Connecting {
		t.Errorf("observed state inside handler = %s, want CONNECTING", observed)
	}
}
