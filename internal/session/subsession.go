package session

import (
	"context"

	"github.com/threadline-ai/threadline/internal/event"
	"github.com/threadline-ai/threadline/internal/logging"
)

// ReleaseFunc tears down a subsession's scoped resource.
type ReleaseFunc func(ctx context.Context) error

// Subsession pairs an opaque external-session handle with the action
// that releases it. The session owns its subsessions and releases all
// of them on teardown.
type Subsession struct {
	Name    string
	Handle  any
	release ReleaseFunc
}

func NewSubsession(name string, handle any, release ReleaseFunc) *Subsession {
	return &Subsession{Name: name, Handle: handle, release: release}
}

// Release tears down the subsession's scoped resource. Safe to call
// when no release action was supplied.
func (s *Subsession) Release(ctx context.Context) error {
	if s.release == nil {
		return nil
	}
	return s.release(ctx)
}

// AddSubsession registers a subsession under its name. Replacing an
// existing entry releases the old one first.
func (s *WebsocketSession) AddSubsession(ctx context.Context, sub *Subsession) {
	s.subMu.Lock()
	old := s.subsessions[sub.Name]
	s.subsessions[sub.Name] = sub
	s.subMu.Unlock()

	if old != nil {
		if err := old.Release(ctx); err != nil {
			logging.Warn().
				Err(err).
				Str("session_id", s.ID).
				Str("subsession", old.Name).
				Msg("failed to release replaced subsession")
		}
	}

	event.Publish(event.Event{
		Type: event.SubsessionOpened,
		Data: event.SubsessionOpenedData{SessionID: s.ID, Name: sub.Name},
	})
}

// Subsession returns the subsession registered under a name.
func (s *WebsocketSession) Subsession(name string) (*Subsession, bool) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	sub, ok := s.subsessions[name]
	return sub, ok
}

// RemoveSubsession releases and removes one subsession by name.
func (s *WebsocketSession) RemoveSubsession(ctx context.Context, name string) error {
	s.subMu.Lock()
	sub, ok := s.subsessions[name]
	delete(s.subsessions, name)
	s.subMu.Unlock()
	if !ok {
		return nil
	}

	err := sub.Release(ctx)
	event.Publish(event.Event{
		Type: event.SubsessionClosed,
		Data: event.SubsessionClosedData{SessionID: s.ID, Name: name},
	})
	return err
}

// releaseSubsessions tears down every subsession, logging and
// suppressing individual failures so one broken resource never blocks
// release of the others.
func (s *WebsocketSession) releaseSubsessions(ctx context.Context) {
	s.subMu.Lock()
	subs := s.subsessions
	s.subsessions = map[string]*Subsession{}
	s.subMu.Unlock()

	for name, sub := range subs {
		if err := sub.Release(ctx); err != nil {
			logging.Warn().
				Err(err).
				Str("session_id", s.ID).
				Str("subsession", name).
				Msg("failed to release subsession")
		}
	}
}
