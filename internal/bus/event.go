package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds are dotted names grouped by namespace prefix. Subscribers
// filter on the prefix, e.g. "message." receives every message.* kind.
const (
	// session.* — connection state machine.
	KindStatusChanged = "session.status_changed"

	// conn.* — transport connectivity.
	KindConnReady     = "conn.ready"
	KindConnClosed    = "conn.closed"
	KindConnAuthError = "conn.auth_error"
	KindConnFatal     = "conn.fatal"

	// transport.* — decoded inbound server events, republished verbatim.
	KindTransportNewMessage       = "transport.new_message"
	KindTransportMessageDelivered = "transport.message_delivered"
	KindTransportMessageError     = "transport.message_error"
	KindTransportMessagesRead     = "transport.messages_read"
	KindTransportUserTyping       = "transport.user_typing"
	KindTransportPresence         = "transport.presence"
	KindTransportError            = "transport.error"

	// message.* — conversation store mutations and send outcomes.
	KindMessageAdded      = "message.added"
	KindMessageUpdated    = "message.updated"
	KindMessageDeleted    = "message.deleted"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"

	// store.* — coarse store changes.
	KindChatsReplaced = "store.chats_replaced"
	KindChatAdded     = "store.chat_added"
	KindChatSelected  = "store.chat_selected"
	KindChatRead      = "store.chat_read"

	// typing.* — presence side-table changes.
	KindTypingChanged = "typing.changed"

	// notify.* — user-facing notifications.
	KindToast = "notify.toast"

	// call.* — signaling passthrough, no media handling.
	KindCallIncoming  = "call.incoming"
	KindCallAnswered  = "call.answered"
	KindCallDeclined  = "call.declined"
	KindCallEnded     = "call.ended"
	KindCallSignaling = "call.signaling"
)
