// Package send implements the optimistic send pipeline: a provisional
// message appears in the store immediately under a client-assigned temp id,
// the realtime send and the REST persist run concurrently, and whichever
// confirmation lands first reconciles the provisional entry. The store's
// id matching absorbs the other confirmation and the server's echo.
package send

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink/internal/bus"
	"chatlink/internal/metrics"
	"chatlink/internal/rest"
	"chatlink/internal/store"
	"chatlink/internal/wire"
)

// Transport is the realtime send surface.
type Transport interface {
	Send(event string, payload any) error
}

// SendFailure is the payload of message.send_failed events.
type SendFailure struct {
	TempID string
	ChatID string
	Reason string
}

// Request describes one outbound message.
type Request struct {
	ChatID  string
	Content string
	ReplyTo string
	Files   []rest.Upload
}

// Pipeline runs optimistic sends and reconciles their confirmations.
type Pipeline struct {
	store   *store.Store
	rest    *rest.Client
	conn    Transport
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	self    func() store.UserSummary
	unsubs  []func()
}

// NewPipeline creates a send pipeline. self supplies the local user for
// provisional sender attribution.
func NewPipeline(st *store.Store, rc *rest.Client, tp Transport, b *bus.Bus, m *metrics.Metrics, self func() store.UserSummary, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:   st,
		rest:    rc,
		conn:    tp,
		bus:     b,
		metrics: m,
		logger:  logger,
		self:    self,
	}
}

// Start subscribes to the transport's send confirmations.
func (p *Pipeline) Start() {
	p.unsubs = append(p.unsubs,
		p.bus.Subscribe(bus.KindTransportMessageDelivered, p.onDelivered),
		p.bus.Subscribe(bus.KindTransportMessageError, p.onError),
	)
}

// Stop unsubscribes the pipeline from the bus.
func (p *Pipeline) Stop() {
	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil
}

// Send stores a provisional message and returns it immediately; the
// realtime send and the REST persist continue in the background. The
// outcome is reported through message.updated (confirmed) or
// message.send_failed (rolled back) bus events.
func (p *Pipeline) Send(ctx context.Context, req Request) (store.Message, error) {
	if req.ChatID == "" {
		return store.Message{}, fmt.Errorf("send: empty chat id")
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Files) == 0 {
		return store.Message{}, fmt.Errorf("send: empty message")
	}

	kind := store.MessageText
	if len(req.Files) > 0 {
		kind = store.MessageMedia
	}
	provisional := store.Message{
		TempID:    tempID(),
		ChatID:    req.ChatID,
		Sender:    p.self(),
		Content:   req.Content,
		Kind:      kind,
		ReplyTo:   req.ReplyTo,
		CreatedAt: time.Now().UnixMilli(),
	}
	p.store.AddMessage(provisional)

	go p.deliver(ctx, provisional, req)
	return provisional, nil
}

// deliver races the realtime send against the REST persist. A dropped
// realtime send is tolerated: the REST path is the durable one, and its
// response reconciles the provisional entry if no delivery ack beat it.
func (p *Pipeline) deliver(ctx context.Context, provisional store.Message, req Request) {
	err := p.conn.Send(wire.EventSendMessage, wire.SendMessagePayload{
		ChatID:      req.ChatID,
		Content:     req.Content,
		MessageType: messageType(provisional.Kind),
		ReplyTo:     req.ReplyTo,
		TempID:      provisional.TempID,
	})
	if err != nil {
		p.logger.Debug("realtime send skipped", zap.Error(err), zap.String("temp_id", provisional.TempID))
	}

	msg, err := p.rest.CreateMessage(ctx, rest.CreateMessageRequest{
		ChatID:      req.ChatID,
		Content:     req.Content,
		MessageType: messageType(provisional.Kind),
		ReplyTo:     req.ReplyTo,
		TempID:      provisional.TempID,
		Files:       req.Files,
	})
	if err != nil {
		p.rollback(provisional, err)
		return
	}

	confirmed := *msg
	if confirmed.TempID == "" {
		confirmed.TempID = provisional.TempID
	}
	p.store.UpdateMessage(confirmed)
	if p.metrics != nil {
		p.metrics.Sends.WithLabelValues("ok").Inc()
	}
}

// rollback removes the provisional entry unless a delivery ack already
// confirmed it; a confirmed message is on the server regardless of how the
// REST call ended.
func (p *Pipeline) rollback(provisional store.Message, cause error) {
	if p.confirmed(provisional.TempID) {
		p.logger.Debug("persist failed after delivery ack, keeping message",
			zap.Error(cause), zap.String("temp_id", provisional.TempID))
		if p.metrics != nil {
			p.metrics.Sends.WithLabelValues("ok").Inc()
		}
		return
	}

	p.logger.Warn("message send failed", zap.Error(cause),
		zap.String("chat_id", provisional.ChatID), zap.String("temp_id", provisional.TempID))
	p.store.DeleteMessage(provisional.TempID)
	if p.metrics != nil {
		p.metrics.Sends.WithLabelValues("error").Inc()
	}
	p.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSendFailed,
		Timestamp: time.Now(),
		Payload: SendFailure{
			TempID: provisional.TempID,
			ChatID: provisional.ChatID,
			Reason: cause.Error(),
		},
	})
}

// confirmed reports whether the entry with the given temp id has already
// been assigned a server id (the temp id is cleared on confirmation, so a
// present temp id means still provisional).
func (p *Pipeline) confirmed(tempID string) bool {
	for _, m := range p.store.Messages() {
		if m.TempID == tempID {
			return false
		}
	}
	return true
}

func (p *Pipeline) onDelivered(evt bus.Event) {
	ack, ok := evt.Payload.(wire.MessageDeliveredPayload)
	if !ok {
		return
	}
	if !p.store.ConfirmMessage(ack.TempID, ack.MessageID, []string{p.self().ID}) {
		p.logger.Debug("delivery ack for unknown message", zap.String("temp_id", ack.TempID))
		return
	}
	p.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSendAck,
		Timestamp: time.Now(),
		Payload:   ack,
	})
}

func (p *Pipeline) onError(evt bus.Event) {
	fail, ok := evt.Payload.(wire.MessageErrorPayload)
	if !ok {
		return
	}
	if !p.store.DeleteMessage(fail.TempID) {
		return
	}
	p.logger.Warn("server rejected message",
		zap.String("temp_id", fail.TempID), zap.String("reason", fail.Message))
	if p.metrics != nil {
		p.metrics.Sends.WithLabelValues("error").Inc()
	}
	p.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSendFailed,
		Timestamp: time.Now(),
		Payload:   SendFailure{TempID: fail.TempID, Reason: fail.Message},
	})
}

// tempID returns a client-unique provisional message id.
func tempID() string {
	return fmt.Sprintf("tmp-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

func messageType(k store.MessageKind) string {
	if k == store.MessageMedia {
		return "media"
	}
	return "text"
}
