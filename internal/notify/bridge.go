// Package notify projects store updates into user-facing toast events. It
// holds no state beyond the ambient focus flag; everything else is read from
// the conversation store at decision time.
package notify

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chatlink/internal/bus"
	"chatlink/internal/store"
)

const excerptLen = 80

// Toast is the payload of notify.toast events.
type Toast struct {
	ChatID  string
	Title   string
	Excerpt string
}

// Bridge raises a toast for inbound messages in chats the user is not
// looking at.
type Bridge struct {
	store   *store.Store
	bus     *bus.Bus
	logger  *zap.Logger
	self    func() store.UserSummary
	focused atomic.Bool
	unsubs  []func()
}

// NewBridge creates a notification bridge. self identifies the local user so
// their own sends never toast.
func NewBridge(st *store.Store, b *bus.Bus, self func() store.UserSummary, logger *zap.Logger) *Bridge {
	return &Bridge{
		store:  st,
		bus:    b,
		self:   self,
		logger: logger,
	}
}

// Start subscribes to store message additions.
func (br *Bridge) Start() {
	br.unsubs = append(br.unsubs, br.bus.Subscribe(bus.KindMessageAdded, br.onMessageAdded))
}

// Stop unsubscribes the bridge from the bus.
func (br *Bridge) Stop() {
	for _, unsub := range br.unsubs {
		unsub()
	}
	br.unsubs = nil
}

// SetFocused reports whether a chat UI surface currently has focus. While
// focused, inbound messages for the active chat are assumed visible.
func (br *Bridge) SetFocused(focused bool) {
	br.focused.Store(focused)
}

func (br *Bridge) onMessageAdded(evt bus.Event) {
	msg, ok := evt.Payload.(store.Message)
	if !ok {
		return
	}
	if msg.Sender.ID == br.self().ID {
		return
	}
	if msg.ChatID == br.store.ActiveChatID() && br.focused.Load() {
		return
	}

	title := msg.Sender.Name
	if title == "" {
		title = msg.Sender.ID
	}
	if c, ok := br.store.Chat(msg.ChatID); ok && c.Kind == store.ChatGroup && c.Name != "" {
		title = c.Name + ": " + title
	}

	body := msg.Content
	if body == "" && len(msg.Attachments) > 0 {
		body = "sent an attachment"
	}
	br.logger.Debug("raising toast", zap.String("chat_id", msg.ChatID))
	br.bus.Publish(bus.Event{
		Kind:      bus.KindToast,
		Timestamp: time.Now(),
		Payload: Toast{
			ChatID:  msg.ChatID,
			Title:   title,
			Excerpt: truncate(body, excerptLen),
		},
	})
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
