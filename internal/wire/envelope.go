package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope frames every transport message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an envelope for an outbound event.
func Encode(event string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return &Envelope{Event: event, Data: data}, nil
}

// Decode unmarshals an inbound envelope's data into the typed payload for
// its event name. Unknown event names are rejected so malformed or
// unexpected frames never leak untyped data past the transport boundary.
func Decode(env *Envelope) (any, error) {
	var payload any
	switch env.Event {
	case EventAuthenticated:
		payload = &AuthPayload{}
	case EventAuthError:
		payload = &AuthErrorPayload{}
	case EventNewMessage:
		payload = &Message{}
	case EventMessageDelivered:
		payload = &MessageDeliveredPayload{}
	case EventMessageError:
		payload = &MessageErrorPayload{}
	case EventMessagesRead:
		payload = &MessagesReadPayload{}
	case EventUserTyping:
		payload = &UserTypingPayload{}
	case EventPresenceUpdate:
		payload = &PresencePayload{}
	case EventError:
		payload = &ErrorPayload{}
	case EventIncomingCall, EventCallAnswered, EventCallDeclined, EventCallEnded,
		EventIceCandidate, EventOffer, EventAnswer:
		payload = &CallPayload{}
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
	}
	return payload, nil
}
