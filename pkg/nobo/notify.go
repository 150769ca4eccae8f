package nobo

import (
	"log/slog"
	"sync"
)

// NotificationKind classifies what a Notification reports.
type NotificationKind int

const (
	// NotifyUpdate follows every message that was applied to the Store.
	NotifyUpdate NotificationKind = iota
	// NotifyReady follows a complete HUB_INFO (H05), closing a full refresh.
	NotifyReady
	// NotifyError carries a *HubError or a dropped invalid message.
	NotifyError
	// NotifyInternetAccess carries a change of the cloud access setting.
	NotifyInternetAccess
	// NotifyClosed is sent once when a session ends. Err is the cause, or
	// nil after Close or a clean end of stream.
	NotifyClosed
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyUpdate:
		return "update"
	case NotifyReady:
		return "ready"
	case NotifyError:
		return "error"
	case NotifyInternetAccess:
		return "internet_access"
	case NotifyClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Notification is published to subscribers after the Store has handled a
// message, or when the session state changes.
type Notification struct {
	Kind           NotificationKind
	Message        Message
	Err            error
	InternetAccess InternetAccess
}

// notifier fans notifications out to subscribers without blocking the
// sender. A subscriber whose buffer is full misses the notification.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Notification
	nextID int
	logger *slog.Logger
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{subs: make(map[int]chan Notification), logger: logger}
}

func (n *notifier) subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Notification, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			close(ch)
			n.mu.Unlock()
		})
	}
	return ch, cancel
}

func (n *notifier) publish(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		select {
		case ch <- note:
		default:
			n.logger.Warn("subscriber buffer full, dropping notification", "subscriber", id, "kind", note.Kind)
		}
	}
}
