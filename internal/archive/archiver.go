package archive

import (
	"context"

	"go.uber.org/zap"

	"chatlink/internal/bus"
	"chatlink/internal/store"
)

// Archiver applies store events to the mirror database. Bus handlers only
// enqueue; a single worker goroutine owns the writes, so the transport read
// path never waits on SQLite.
type Archiver struct {
	db     *DB
	bus    *bus.Bus
	logger *zap.Logger

	queue  chan bus.Event
	cancel context.CancelFunc
	done   chan struct{}
	unsubs []func()
}

// NewArchiver creates an archiver writing to db.
func NewArchiver(db *DB, b *bus.Bus, logger *zap.Logger) *Archiver {
	return &Archiver{
		db:     db,
		bus:    b,
		logger: logger,
		queue:  make(chan bus.Event, 256),
	}
}

// Start subscribes to store mutations and launches the write worker.
func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.unsubs = append(a.unsubs,
		a.bus.Subscribe("message.", a.enqueue),
		a.bus.Subscribe("store.", a.enqueue),
	)
	go a.loop(ctx)
}

// Stop unsubscribes and drains the queue. The database stays open for
// reads; call Close to release it.
func (a *Archiver) Stop() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

// Close releases the mirror database. Call after Stop.
func (a *Archiver) Close() error {
	return a.db.Close()
}

// SeedChats loads the mirrored chat list into the store. Called before the
// first network fetch so the UI has something to show offline.
func (a *Archiver) SeedChats(st *store.Store, limit int) error {
	chats, err := a.db.ListChats(limit)
	if err != nil {
		return err
	}
	if len(chats) > 0 {
		st.SetChats(chats)
	}
	return nil
}

func (a *Archiver) enqueue(evt bus.Event) {
	select {
	case a.queue <- evt:
	default:
		// A full queue means the mirror is behind; dropping is safe because
		// the next full SetChats resyncs it.
		a.logger.Warn("archive queue full, dropping event", zap.String("kind", evt.Kind))
	}
}

func (a *Archiver) loop(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case evt := <-a.queue:
			a.apply(evt)
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case evt := <-a.queue:
					a.apply(evt)
				default:
					return
				}
			}
		}
	}
}

func (a *Archiver) apply(evt bus.Event) {
	var err error
	switch evt.Kind {
	case bus.KindChatsReplaced:
		chats, ok := evt.Payload.([]store.Chat)
		if !ok {
			return
		}
		for i := range chats {
			if err = a.db.UpsertChat(&chats[i]); err != nil {
				break
			}
		}
	case bus.KindChatAdded:
		chat, ok := evt.Payload.(store.Chat)
		if !ok {
			return
		}
		err = a.db.UpsertChat(&chat)
	case bus.KindMessageAdded, bus.KindMessageUpdated:
		msg, ok := evt.Payload.(store.Message)
		if !ok {
			return
		}
		err = a.db.UpsertMessage(&msg)
	case bus.KindMessageDeleted:
		msg, ok := evt.Payload.(store.Message)
		if !ok {
			return
		}
		if msg.ID != "" {
			err = a.db.DeleteMessage(msg.ChatID, msg.ID)
		}
	case bus.KindChatRead:
		chatID, ok := evt.Payload.(string)
		if !ok {
			return
		}
		err = a.db.SetChatUnread(chatID, 0)
	}
	if err != nil {
		a.logger.Error("archive write failed", zap.String("kind", evt.Kind), zap.Error(err))
	}
}
