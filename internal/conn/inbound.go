package conn

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"chatlink/internal/bus"
	"chatlink/internal/status"
	"chatlink/internal/wire"
)

// readLoop decodes inbound envelopes and republishes them on the bus until
// the transport fails. Subscribers run synchronously on this goroutine, so
// events reach them in delivery order.
func (m *Manager) readLoop(ws wsReader, bo backoff.BackOff) error {
	for {
		var env wire.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return err
		}

		payload, err := wire.Decode(&env)
		if err != nil {
			// Unknown or malformed frames never reach subscribers.
			m.logger.Warn("discarding transport frame", zap.String("event", env.Event), zap.Error(err))
			continue
		}

		switch env.Event {
		case wire.EventAuthenticated:
			_ = m.machine.Transition(status.Ready)
			// A fresh authenticated session restores the reconnect budget.
			bo.Reset()
			m.logger.Info("transport authenticated")
			m.publish(bus.KindConnReady, nil)
		case wire.EventAuthError:
			p := payload.(*wire.AuthErrorPayload)
			m.logger.Warn("authentication rejected", zap.String("reason", p.Message))
			m.publish(bus.KindConnAuthError, p.Message)
			return errAuthRejected
		default:
			m.dispatch(env.Event, payload)
		}
	}
}

// wsReader is the part of the websocket the read loop needs; narrowed for
// tests.
type wsReader interface {
	ReadJSON(v any) error
}

// dispatch maps a decoded inbound event to its bus kind.
func (m *Manager) dispatch(event string, payload any) {
	switch p := payload.(type) {
	case *wire.Message:
		m.publish(bus.KindTransportNewMessage, p.ToStore())
	case *wire.MessageDeliveredPayload:
		m.publish(bus.KindTransportMessageDelivered, *p)
	case *wire.MessageErrorPayload:
		m.publish(bus.KindTransportMessageError, *p)
	case *wire.MessagesReadPayload:
		m.publish(bus.KindTransportMessagesRead, *p)
	case *wire.UserTypingPayload:
		m.publish(bus.KindTransportUserTyping, *p)
	case *wire.PresencePayload:
		m.publish(bus.KindTransportPresence, *p)
	case *wire.ErrorPayload:
		m.logger.Warn("server error", zap.String("message", p.Message))
		m.publish(bus.KindTransportError, p.Message)
	case *wire.CallPayload:
		m.publish(callKind(event), *p)
	default:
		m.logger.Warn("unhandled transport event", zap.String("event", event))
	}
}

func callKind(event string) string {
	switch event {
	case wire.EventIncomingCall:
		return bus.KindCallIncoming
	case wire.EventCallAnswered:
		return bus.KindCallAnswered
	case wire.EventCallDeclined:
		return bus.KindCallDeclined
	case wire.EventCallEnded:
		return bus.KindCallEnded
	default:
		return bus.KindCallSignaling
	}
}

func (m *Manager) publish(kind string, payload any) {
	m.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
