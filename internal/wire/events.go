// Package wire defines the transport protocol: a closed set of named events
// with typed JSON payloads, framed as {"event": name, "data": payload}
// envelopes over the websocket.
package wire

// Outbound event names.
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "sendMessage"
	EventMarkAsRead   = "markAsRead"
	EventTyping       = "typing"
	EventJoinChat     = "joinChat"
	EventLeaveChat    = "leaveChat"
	EventInitiateCall = "initiateCall"
	EventAnswerCall   = "answerCall"
	EventDeclineCall  = "declineCall"
	EventEndCall      = "endCall"
	EventIceCandidate = "iceCandidate"
	EventOffer        = "offer"
	EventAnswer       = "answer"
)

// Inbound event names.
const (
	EventAuthenticated    = "authenticated"
	EventAuthError        = "authError"
	EventNewMessage       = "newMessage"
	EventMessageDelivered = "messageDelivered"
	EventMessageError     = "messageError"
	EventMessagesRead     = "messagesRead"
	EventUserTyping       = "userTyping"
	EventPresenceUpdate   = "presenceUpdate"
	EventError            = "error"
	EventIncomingCall     = "incomingCall"
	EventCallAnswered     = "callAnswered"
	EventCallDeclined     = "callDeclined"
	EventCallEnded        = "callEnded"
)

// AuthPayload carries the bearer token for the authenticate request.
type AuthPayload struct {
	Token string `json:"token"`
}

// AuthErrorPayload reports a rejected token.
type AuthErrorPayload struct {
	Message string `json:"message"`
}

// SendMessagePayload is the outbound message frame. TempID is the
// client-assigned placeholder the server echoes back in the delivery ack.
type SendMessagePayload struct {
	ChatID      string `json:"chatId"`
	Content     string `json:"content,omitempty"`
	MessageType string `json:"messageType"`
	ReplyTo     string `json:"replyTo,omitempty"`
	TempID      string `json:"tempId"`
}

// MarkAsReadPayload reports locally read messages.
type MarkAsReadPayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
}

// TypingPayload signals local typing activity.
type TypingPayload struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

// ChatRefPayload carries a bare chat id (joinChat / leaveChat).
type ChatRefPayload struct {
	ChatID string `json:"chatId"`
}

// MessageDeliveredPayload acknowledges an optimistic send.
type MessageDeliveredPayload struct {
	TempID    string `json:"tempId"`
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

// MessageErrorPayload rejects an optimistic send.
type MessageErrorPayload struct {
	TempID  string `json:"tempId"`
	Message string `json:"message"`
}

// MessagesReadPayload reports messages read by a remote user.
type MessagesReadPayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
	UserID     string   `json:"userId"`
}

// UserTypingPayload reports remote typing activity.
type UserTypingPayload struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// PresencePayload reports a user's online status.
type PresencePayload struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

// ErrorPayload is a server-side error surfaced to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// CallPayload carries call signaling data. The engine forwards these frames
// verbatim; there is no media pipeline on this side.
type CallPayload struct {
	CallID        string `json:"callId"`
	ChatID        string `json:"chatId,omitempty"`
	CallerID      string `json:"callerId,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	Signal        any    `json:"signal,omitempty"`
}
