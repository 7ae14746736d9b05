package outcome

import "sync"

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelLoading Level = "loading"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a single message for the user.
type Notification struct {
	Level    Level
	Category Category
	Message  string
}

// Notifier delivers notifications to whatever surface shows them.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type NoopNotifier struct{}

func (NoopNotifier) Notify(Notification) {}

// MemoryNotifier keeps every notification in order.
type MemoryNotifier struct {
	mu  sync.Mutex
	all []Notification
}

func (m *MemoryNotifier) Notify(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = append(m.all, n)
}

// All returns a copy of the notifications received.
func (m *MemoryNotifier) All() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.all...)
}

// Last returns the most recent notification.
func (m *MemoryNotifier) Last() (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.all) == 0 {
		return Notification{}, false
	}
	return m.all[len(m.all)-1], true
}

// ForOutcome builds the notification reporting o.
func ForOutcome(o Outcome) Notification {
	level := LevelError
	switch o.Category {
	case CategorySuccess:
		level = LevelSuccess
	case CategoryUserRejected, CategoryBusy:
		level = LevelWarning
	}
	return Notification{Level: level, Category: o.Category, Message: o.Message}
}
