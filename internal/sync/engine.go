// Package sync keeps the in-memory conversation store aligned with the
// backend: it ingests realtime transport events, runs the REST fetches that
// back chat selection, and replays server-side read receipts. Ingestion is
// idempotent end to end because every path lands in store.AddMessage.
package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chatlink/internal/bus"
	"chatlink/internal/metrics"
	"chatlink/internal/rest"
	"chatlink/internal/store"
	"chatlink/internal/wire"
)

const messagePageSize = 50

// Transport is the realtime send surface the engine needs. Sends may be
// dropped when the connection is not ready; the engine treats that as
// non-fatal because the REST path carries the durable state.
type Transport interface {
	Send(event string, payload any) error
}

// Engine orchestrates one session: initial load, chat selection, read
// receipts, and ingestion of pushed messages.
type Engine struct {
	store   *store.Store
	rest    *rest.Client
	conn    Transport
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	unsubs  []func()
}

// NewEngine creates a sync engine. Call Start to begin consuming events.
func NewEngine(st *store.Store, rc *rest.Client, tp Transport, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		store:   st,
		rest:    rc,
		conn:    tp,
		bus:     b,
		metrics: m,
		logger:  logger,
	}
}

// Start subscribes to the transport event stream. Handlers run on the
// transport read goroutine, so pushed messages reach the store in delivery
// order.
func (e *Engine) Start() {
	e.unsubs = append(e.unsubs,
		e.bus.Subscribe(bus.KindTransportNewMessage, e.onNewMessage),
		e.bus.Subscribe(bus.KindTransportMessagesRead, e.onMessagesRead),
		e.bus.Subscribe(bus.KindConnReady, e.onReady),
		// Every store mutation can move the aggregate unread count.
		e.bus.Subscribe("message.", e.onStoreChanged),
		e.bus.Subscribe("store.", e.onStoreChanged),
	)
}

// Stop unsubscribes the engine from the bus.
func (e *Engine) Stop() {
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
}

func (e *Engine) onNewMessage(evt bus.Event) {
	msg, ok := evt.Payload.(store.Message)
	if !ok {
		return
	}
	if e.store.AddMessage(msg) {
		if e.metrics != nil {
			e.metrics.MessagesIngested.Inc()
		}
	} else {
		e.logger.Debug("duplicate message ignored",
			zap.String("msg_id", msg.ID), zap.String("temp_id", msg.TempID))
	}
}

// onStoreChanged mirrors the store's aggregate unread count into the
// exported gauge. The store publishes after releasing its lock, so reading
// it back from a handler is safe.
func (e *Engine) onStoreChanged(bus.Event) {
	if e.metrics != nil {
		e.metrics.UnreadTotal.Set(float64(e.store.UnreadTotal()))
	}
}

func (e *Engine) onMessagesRead(evt bus.Event) {
	p, ok := evt.Payload.(wire.MessagesReadPayload)
	if !ok {
		return
	}
	e.store.MarkMessagesRead(p.ChatID, p.MessageIDs, p.UserID)
}

// onReady refreshes server state after every successful authentication. The
// fetches run off the read goroutine; a reconnected session also re-joins
// the active chat's realtime room.
func (e *Engine) onReady(bus.Event) {
	active := e.store.ActiveChatID()
	go func() {
		if err := e.Load(context.Background()); err != nil {
			e.logger.Warn("post-connect refresh failed", zap.Error(err))
		}
		if active != "" {
			if err := e.conn.Send(wire.EventJoinChat, wire.ChatRefPayload{ChatID: active}); err != nil {
				e.logger.Debug("rejoin chat skipped", zap.Error(err))
			}
		}
	}()
}

// Load fetches the chat list and notification records and replaces the
// store's collections with them.
func (e *Engine) Load(ctx context.Context) error {
	chats, err := e.rest.ListChats(ctx, 1, messagePageSize)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	e.store.SetChats(chats)

	ns, err := e.rest.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	e.store.SetNotifications(ns)
	return nil
}

// OpenChat makes chatID the active chat: the previous chat's realtime room
// is left, the new one joined, and the message history fetched. The store is
// updated before the fetch completes so the selection is immediate; a fetch
// finishing after another OpenChat is discarded by the store.
func (e *Engine) OpenChat(ctx context.Context, chatID string) error {
	if prev := e.store.ActiveChatID(); prev != "" && prev != chatID {
		if err := e.conn.Send(wire.EventLeaveChat, wire.ChatRefPayload{ChatID: prev}); err != nil {
			e.logger.Debug("leave chat skipped", zap.Error(err))
		}
	}
	e.store.SelectChat(chatID)
	if chatID == "" {
		return nil
	}
	if err := e.conn.Send(wire.EventJoinChat, wire.ChatRefPayload{ChatID: chatID}); err != nil {
		e.logger.Debug("join chat skipped", zap.Error(err))
	}

	msgs, err := e.rest.ListMessages(ctx, chatID, 1, messagePageSize)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	e.store.SetMessages(chatID, msgs)
	return nil
}

// CloseChat deselects the active chat and leaves its realtime room.
func (e *Engine) CloseChat() {
	if prev := e.store.ActiveChatID(); prev != "" {
		if err := e.conn.Send(wire.EventLeaveChat, wire.ChatRefPayload{ChatID: prev}); err != nil {
			e.logger.Debug("leave chat skipped", zap.Error(err))
		}
	}
	e.store.SelectChat("")
}

// CreateChat starts a 1:1 conversation and inserts it into the store.
func (e *Engine) CreateChat(ctx context.Context, participantID string) (store.Chat, error) {
	c, err := e.rest.CreateChat(ctx, participantID)
	if err != nil {
		return store.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	e.store.AddChat(*c)
	return *c, nil
}

// CreateGroupChat starts a group conversation and inserts it into the store.
func (e *Engine) CreateGroupChat(ctx context.Context, name, description string, participantIDs []string) (store.Chat, error) {
	c, err := e.rest.CreateGroupChat(ctx, name, description, participantIDs)
	if err != nil {
		return store.Chat{}, fmt.Errorf("create group chat: %w", err)
	}
	e.store.AddChat(*c)
	return *c, nil
}

// DeleteMessage removes a message on the server, then locally. The local
// removal waits for the server so a failed delete leaves the message
// visible.
func (e *Engine) DeleteMessage(ctx context.Context, messageID string) error {
	if err := e.rest.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	e.store.DeleteMessage(messageID)
	return nil
}

// MarkRead clears the chat's local unread counter and reports the read
// messages to the server over the realtime channel.
func (e *Engine) MarkRead(chatID string, messageIDs []string) {
	e.store.MarkChatRead(chatID)
	if len(messageIDs) == 0 {
		return
	}
	if err := e.conn.Send(wire.EventMarkAsRead, wire.MarkAsReadPayload{ChatID: chatID, MessageIDs: messageIDs}); err != nil {
		e.logger.Debug("mark as read skipped", zap.Error(err))
	}
}
