// Package typing tracks typing indicators in both directions. Local input
// activity is debounced into typing frames with a one second self-expiry;
// remote indicators land in the store and carry a TTL so a peer that never
// sends the stop frame still expires.
package typing

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"chatlink/internal/bus"
	"chatlink/internal/metrics"
	"chatlink/internal/store"
	"chatlink/internal/wire"
)

// Transport is the realtime send surface.
type Transport interface {
	Send(event string, payload any) error
}

// Options configures the tracker.
type Options struct {
	// TTL is how long a typing indicator stays alive without renewal.
	TTL time.Duration
	// EventsPerSecond bounds outbound typing frames.
	EventsPerSecond float64
}

// Tracker owns typing state. Remote indicators live in a TTL cache whose
// eviction clears the store entry; the local indicator is a timer armed by
// InputActivity.
type Tracker struct {
	store   *store.Store
	conn    Transport
	metrics *metrics.Metrics
	logger  *zap.Logger
	ttl     time.Duration

	remote  *gocache.Cache
	limiter *rate.Limiter

	mu     sync.Mutex
	timers map[string]*time.Timer // chatID -> self-expiry timer
	unsubs []func()
	bus    *bus.Bus
}

type remoteEntry struct {
	chatID string
	userID string
}

// NewTracker creates a typing tracker.
func NewTracker(st *store.Store, tp Transport, b *bus.Bus, m *metrics.Metrics, opts Options, logger *zap.Logger) *Tracker {
	if opts.TTL <= 0 {
		opts.TTL = time.Second
	}
	if opts.EventsPerSecond <= 0 {
		opts.EventsPerSecond = 2
	}

	cleanup := opts.TTL / 10
	if cleanup < 25*time.Millisecond {
		cleanup = 25 * time.Millisecond
	}
	t := &Tracker{
		store:   st,
		conn:    tp,
		bus:     b,
		metrics: m,
		logger:  logger,
		ttl:     opts.TTL,
		remote:  gocache.New(opts.TTL, cleanup),
		limiter: rate.NewLimiter(rate.Limit(opts.EventsPerSecond), 1),
		timers:  make(map[string]*time.Timer),
	}
	// Eviction covers both TTL expiry and explicit stop frames; the store
	// call is idempotent so the overlap is harmless.
	t.remote.OnEvicted(func(_ string, v any) {
		e := v.(remoteEntry)
		st.SetTyping(e.chatID, e.userID, false)
	})
	return t
}

// Start subscribes to remote typing indicators.
func (t *Tracker) Start() {
	t.unsubs = append(t.unsubs, t.bus.Subscribe(bus.KindTransportUserTyping, t.onRemote))
}

// Stop unsubscribes and cancels the local indicator timers.
func (t *Tracker) Stop() {
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil

	t.mu.Lock()
	for chatID, timer := range t.timers {
		timer.Stop()
		delete(t.timers, chatID)
	}
	t.mu.Unlock()
}

// InputActivity reports local keystrokes in a chat. The first call emits a
// typing start frame; further calls renew the one second self-expiry without
// flooding the transport. The stop frame goes out when activity ceases.
func (t *Tracker) InputActivity(chatID string) {
	if chatID == "" {
		return
	}

	t.mu.Lock()
	timer, active := t.timers[chatID]
	if active {
		timer.Reset(t.ttl)
	} else {
		t.timers[chatID] = time.AfterFunc(t.ttl, func() { t.stopLocal(chatID) })
	}
	t.mu.Unlock()

	// Renewals are rate limited; the initial frame always goes out.
	if active && !t.limiter.Allow() {
		return
	}
	t.emit(chatID, true)
}

// StopLocal immediately ends the local typing indicator, e.g. when the
// message is sent or the chat is switched.
func (t *Tracker) StopLocal(chatID string) {
	t.mu.Lock()
	timer, ok := t.timers[chatID]
	if ok {
		timer.Stop()
		delete(t.timers, chatID)
	}
	t.mu.Unlock()
	if ok {
		t.emit(chatID, false)
	}
}

// stopLocal is the timer callback for self-expiry.
func (t *Tracker) stopLocal(chatID string) {
	t.mu.Lock()
	_, ok := t.timers[chatID]
	delete(t.timers, chatID)
	t.mu.Unlock()
	if ok {
		t.emit(chatID, false)
	}
}

func (t *Tracker) emit(chatID string, isTyping bool) {
	if err := t.conn.Send(wire.EventTyping, wire.TypingPayload{ChatID: chatID, IsTyping: isTyping}); err != nil {
		t.logger.Debug("typing frame skipped", zap.Error(err), zap.String("chat_id", chatID))
		return
	}
	if t.metrics != nil {
		t.metrics.TypingEvents.Inc()
	}
}

func (t *Tracker) onRemote(evt bus.Event) {
	p, ok := evt.Payload.(wire.UserTypingPayload)
	if !ok {
		return
	}
	key := cacheKey(p.ChatID, p.UserID)
	if p.IsTyping {
		t.store.SetTyping(p.ChatID, p.UserID, true)
		t.remote.Set(key, remoteEntry{chatID: p.ChatID, userID: p.UserID}, t.ttl)
		return
	}
	// Explicit stop; eviction clears the store entry.
	if _, found := t.remote.Get(key); found {
		t.remote.Delete(key)
	} else {
		t.store.SetTyping(p.ChatID, p.UserID, false)
	}
}

func cacheKey(chatID, userID string) string {
	return chatID + "\x00" + userID
}
