// Package notify turns dispatch reports into log lines and bus events.
package notify

import (
	"sync"
	"time"

	"tgrelay/internal/eventbus"
	logx "tgrelay/pkg/logx"
)

const historyLimit = 300

// Entry is one report kept in the in-memory history.
type Entry struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Sink implements dispatch.Notifier. Notify messages are the user-facing
// ones; hosts receive them over the event stream.
type Sink struct {
	log logx.Logger
	bus eventbus.Bus

	mu      sync.Mutex
	history []Entry
}

// New returns a Sink. bus may be nil.
func New(log logx.Logger, bus eventbus.Bus) *Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{log: log, bus: bus}
}

func (s *Sink) Info(msg string) {
	s.log.Info(msg)
	s.emit(eventbus.TypeInfo, msg)
}

func (s *Sink) Warn(msg string) {
	s.log.Warn(msg)
	s.emit(eventbus.TypeWarn, msg)
}

func (s *Sink) Error(msg string) {
	s.log.Error(msg)
	s.emit(eventbus.TypeError, msg)
}

func (s *Sink) Notify(msg string) {
	s.log.Info("notify", logx.String("text", msg))
	s.emit(eventbus.TypeNotify, msg)
}

// History returns the most recent reports, oldest first.
func (s *Sink) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.history...)
}

func (s *Sink) emit(typ, msg string) {
	now := time.Now()
	s.mu.Lock()
	s.history = append(s.history, Entry{Type: typ, Message: msg, At: now})
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: msg})
	}
}
