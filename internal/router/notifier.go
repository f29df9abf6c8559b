package router

import (
	"sync"
	"time"
)

// NotificationType represents the type of notification.
type NotificationType int

const (
	// TableChanged signals that a table's data files changed on disk, so
	// cached results for it are stale.
	TableChanged NotificationType = iota
	// SchemaChanged signals a schema update; every cached result built
	// against the old schema is stale.
	SchemaChanged
)

// Notification represents a table change notification.
type Notification struct {
	Type      NotificationType
	Table     string
	Timestamp int64
}

// Notifier provides an in-process pub/sub bus for table change events.
// Writers publish when data lands; the engine subscribes to invalidate
// cached results.
type Notifier struct {
	subscribers sync.Map
	bufferSize  int
}

// NewNotifier creates a new notifier instance.
func NewNotifier(bufferSize int) *Notifier {
	return &Notifier{bufferSize: bufferSize}
}

// Publish sends a notification to all subscribers.
// Non-blocking: if a subscriber's channel is full, the notification is dropped.
func (n *Notifier) Publish(notif Notification) {
	if notif.Timestamp == 0 {
		notif.Timestamp = time.Now().UnixNano()
	}
	n.subscribers.Range(func(key, value interface{}) bool {
		sub := value.(*Subscriber)
		if n.matchesFilter(sub, notif.Table) {
			select {
			case sub.Ch <- notif:
			default:
				// Channel full - drop notification, do NOT block
			}
		}
		return true
	})
}

// Subscribe adds a new subscriber with a custom ID. Filters are table name
// prefixes; no filters means all tables.
func (n *Notifier) Subscribe(id string, filters []string) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Notification, n.bufferSize),
	}
	n.subscribers.Store(sub.ID, sub)
	return sub
}

// Unsubscribe removes a subscriber and closes their channel.
func (n *Notifier) Unsubscribe(subID string) {
	if value, ok := n.subscribers.LoadAndDelete(subID); ok {
		close(value.(*Subscriber).Ch)
	}
}

// matchesFilter checks if the notification matches the subscriber's filters.
func (n *Notifier) matchesFilter(sub *Subscriber, table string) bool {
	if len(sub.Filters) == 0 {
		return true
	}
	for _, filter := range sub.Filters {
		if len(filter) == 0 {
			return true
		}
		if len(table) >= len(filter) && table[:len(filter)] == filter {
			return true
		}
	}
	return false
}

// Subscriber represents a notification subscriber.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Notification
}
