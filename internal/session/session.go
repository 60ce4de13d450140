// Package session tracks the lifecycle of one multipart upload: its parts,
// the completed set and the state machine that guards every mutation.
package session

import (
	"fmt"
	"sync"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/mediatypes"
)

// allowed enumerates the legal state transitions. Forward only, one step at
// a time; Completed and Aborted accept nothing further.
var allowed = map[mediatypes.SessionState][]mediatypes.SessionState{
	mediatypes.SessionPlanning:   {mediatypes.SessionUploading},
	mediatypes.SessionUploading:  {mediatypes.SessionCompleting, mediatypes.SessionFailed, mediatypes.SessionAborted},
	mediatypes.SessionCompleting: {mediatypes.SessionCompleted, mediatypes.SessionFailed},
	mediatypes.SessionFailed:     {mediatypes.SessionAborted},
}

// Session tracks one file's upload. Part I/O runs concurrently but every
// mutation is serialized through the session mutex.
type Session struct {
	mu        sync.Mutex
	file      string
	key       string
	uploadID  string
	totalSize int64
	partSize  int64
	parts     []mediatypes.UploadPart
	completed map[int]struct{}
	bytesDone int64
	state     mediatypes.SessionState
	cancelled bool
	aborted   bool
}

// New creates a session in the planning state.
func New(file string, totalSize, partSize int64) *Session {
	return &Session{
		file:      file,
		totalSize: totalSize,
		partSize:  partSize,
		completed: make(map[int]struct{}),
		state:     mediatypes.SessionPlanning,
	}
}

// SetPlan records the initiated upload: object key, upload id and the
// ordered part list. Only valid while planning.
func (s *Session) SetPlan(key, uploadID string, parts []mediatypes.UploadPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != mediatypes.SessionPlanning {
		return errors.NewKeyError("setPlan", s.key, errors.ErrInvalidTransition).
			WithMessage(fmt.Sprintf("cannot plan in state %s", s.state))
	}
	s.key = key
	s.uploadID = uploadID
	s.parts = parts
	return nil
}

// Advance moves the session to state. Disallowed transitions, including any
// attempt to leave a terminal state, return ErrInvalidTransition.
func (s *Session) Advance(to mediatypes.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, next := range allowed[s.state] {
		if next == to {
			s.state = to
			return nil
		}
	}
	return errors.NewKeyError("advance", s.key, errors.ErrInvalidTransition).
		WithMessage(fmt.Sprintf("cannot move from %s to %s", s.state, to))
}

// MarkCompleted records a successful part upload. Results arriving after
// cancellation or outside the uploading state are rejected so stale in-flight
// responses can never mutate a settled session.
func (s *Session) MarkCompleted(number int, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return errors.NewKeyError("markCompleted", s.key, errors.ErrUploadAborted)
	}
	if s.state != mediatypes.SessionUploading {
		return errors.NewKeyError("markCompleted", s.key, errors.ErrInvalidTransition).
			WithMessage(fmt.Sprintf("part result in state %s", s.state))
	}
	if number < 1 || number > len(s.parts) {
		return errors.NewKeyError("markCompleted", s.key, errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("part number %d out of range", number))
	}
	if _, done := s.completed[number]; done {
		return nil
	}
	s.parts[number-1].ETag = etag
	s.completed[number] = struct{}{}
	s.bytesDone += s.parts[number-1].Size
	return nil
}

// Cancel raises the cancellation flag. The flag is checked before every
// network call and before any state commit.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Cancelled reports whether the session was cancelled.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// AbortOnce runs fn at most once per session, no matter how many code paths
// request an abort.
func (s *Session) AbortOnce(fn func() error) error {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return nil
	}
	s.aborted = true
	s.mu.Unlock()
	return fn()
}

// State returns the current lifecycle state.
func (s *Session) State() mediatypes.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Key returns the object key assigned at initiation.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// UploadID returns the backend upload id assigned at initiation.
func (s *Session) UploadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadID
}

// Progress returns completed and total byte counts.
func (s *Session) Progress() (done, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesDone, s.totalSize
}

// CompletedParts returns the ordered (part number, etag) list for completion.
func (s *Session) CompletedParts() []mediatypes.UploadPart {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mediatypes.UploadPart, len(s.parts))
	copy(out, s.parts)
	return out
}
