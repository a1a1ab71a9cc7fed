package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/seating"
)

const (
	RealtimeEventSeatingChanged = "seating-change"
	realtimeEventHeartbeat      = "heartbeat"
	realtimeSourceBackend       = "seating-backend"
	realtimeBufferSize          = 16
)

// RealtimeMessage is one event fanned out to admin stream subscribers.
type RealtimeMessage struct {
	EventType string
	Change    seating.Change
	Timestamp time.Time
}

// RealtimeDispatcher broadcasts committed seating changes to every open admin stream.
// Slow subscribers miss messages instead of blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

var _ seating.ChangeNotifier = (*RealtimeDispatcher)(nil)

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  realtimeBufferSize,
	}
}

// Subscribe registers a stream that lives until ctx is done or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*realtimeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// NotifyChange publishes a committed change as a seating-change event.
func (d *RealtimeDispatcher) NotifyChange(_ context.Context, change seating.Change) error {
	timestamp := change.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	d.Publish(RealtimeMessage{
		EventType: RealtimeEventSeatingChanged,
		Change:    change,
		Timestamp: timestamp,
	})
	return nil
}

// SubscriberCount reports the number of open streams.
func (d *RealtimeDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

func (d *RealtimeDispatcher) registerSubscriber(subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	subscriber.id = d.nextID
	d.subscribers[subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
