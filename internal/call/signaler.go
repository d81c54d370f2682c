// Package call forwards call signaling frames between the local session and
// the transport. There is no media pipeline here; offers, answers, and ICE
// candidates pass through opaquely, and inbound call events arrive on the
// bus as call.* kinds straight from the transport dispatch.
package call

import (
	"go.uber.org/zap"

	"chatlink/internal/wire"
)

// Transport is the realtime send surface.
type Transport interface {
	Send(event string, payload any) error
}

// Signaler sends outbound call signaling frames.
type Signaler struct {
	conn   Transport
	logger *zap.Logger
}

// NewSignaler creates a call signaler.
func NewSignaler(tp Transport, logger *zap.Logger) *Signaler {
	return &Signaler{conn: tp, logger: logger}
}

// Initiate starts a call in a chat.
func (s *Signaler) Initiate(chatID string) error {
	return s.send(wire.EventInitiateCall, wire.CallPayload{ChatID: chatID})
}

// Answer accepts an incoming call.
func (s *Signaler) Answer(callID string) error {
	return s.send(wire.EventAnswerCall, wire.CallPayload{CallID: callID})
}

// Decline rejects an incoming call.
func (s *Signaler) Decline(callID string) error {
	return s.send(wire.EventDeclineCall, wire.CallPayload{CallID: callID})
}

// End hangs up an established call.
func (s *Signaler) End(callID string) error {
	return s.send(wire.EventEndCall, wire.CallPayload{CallID: callID})
}

// Offer relays a session description offer to a participant.
func (s *Signaler) Offer(callID, participantID string, sdp any) error {
	return s.send(wire.EventOffer, wire.CallPayload{CallID: callID, ParticipantID: participantID, Signal: sdp})
}

// AnswerOffer relays a session description answer to a participant.
func (s *Signaler) AnswerOffer(callID, participantID string, sdp any) error {
	return s.send(wire.EventAnswer, wire.CallPayload{CallID: callID, ParticipantID: participantID, Signal: sdp})
}

// Candidate relays an ICE candidate to a participant.
func (s *Signaler) Candidate(callID, participantID string, candidate any) error {
	return s.send(wire.EventIceCandidate, wire.CallPayload{CallID: callID, ParticipantID: participantID, Signal: candidate})
}

func (s *Signaler) send(event string, payload wire.CallPayload) error {
	if err := s.conn.Send(event, payload); err != nil {
		s.logger.Warn("call signaling frame dropped", zap.String("event", event), zap.Error(err))
		return err
	}
	return nil
}
