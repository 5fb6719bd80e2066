// Package notify is the single top-level surface mutation outcomes are
// reported to. Messages are passed through verbatim.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one transient message for the user.
type Notification struct {
	Level   Level
	Title   string
	Message string
	At      time.Time
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Success builds a success notification.
func Success(title, message string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Message: message, At: time.Now()}
}

// Error builds an error notification carrying err's message verbatim.
func Error(title string, err error) Notification {
	return Notification{Level: LevelError, Title: title, Message: err.Error(), At: time.Now()}
}

// SlogNotifier writes notifications to a logger.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (s SlogNotifier) Notify(n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n.Level == LevelError {
		logger.Error(n.Title, "message", n.Message)
		return
	}
	logger.Info(n.Title, "message", n.Message)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Recorder keeps every notification it receives. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Errors returns only the error notifications.
func (r *Recorder) Errors() []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}

// Nop discards notifications.
var Nop Notifier = Func(func(Notification) {})
