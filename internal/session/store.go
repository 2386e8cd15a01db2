// Package session holds per-user conversation state in memory: the sticky
// mode and a bounded history window. Nothing here is persisted; a restart
// looks like every user's first interaction.
//
// The mutex only guards the map itself. Two messages from the same user
// processed concurrently still race at the exchange level (read mode, call
// the gateway, append history) with last-writer-wins results. The platform
// delivers one user's updates in order, so this is accepted rather than
// serialized per user.
package session

import (
	"sync"

	"github.com/ovolkov/sparkbot/internal/models"
)

// MaxHistoryLength bounds a session's history; oldest turns are dropped
// first once the bound is exceeded.
const MaxHistoryLength = 50

// UserSession is the per-user state owned by the Store.
type UserSession struct {
	UserID  int64
	Mode    models.Mode
	History []models.Turn
}

// Store maps user ids to their sessions. Create one with NewStore and share
// a single instance per process.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*UserSession
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*UserSession)}
}

// GetOrCreate returns the user's session, lazily creating an empty one in
// chat mode. It never fails.
func (s *Store) GetOrCreate(userID int64) *UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(userID)
}

func (s *Store) getOrCreateLocked(userID int64) *UserSession {
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	sess := &UserSession{UserID: userID, Mode: models.ModeChat}
	s.sessions[userID] = sess
	return sess
}

// Mode returns the user's current mode, chat if the user is unknown.
func (s *Store) Mode(userID int64) models.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess.Mode
	}
	return models.ModeChat
}

// SetMode sets the user's mode, creating the session if absent. Idempotent;
// history is untouched.
func (s *Store) SetMode(userID int64, mode models.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID)
	sess.Mode = mode
}

// AppendTurn appends one turn to the user's history, then truncates from
// the front so at most MaxHistoryLength entries remain.
func (s *Store) AppendTurn(userID int64, role models.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID)
	sess.History = append(sess.History, models.Turn{Role: role, Content: content})
	sess.truncate()
}

// AppendExchange appends a user turn and the assistant's reply as one unit,
// then truncates.
func (s *Store) AppendExchange(userID int64, userContent, assistantContent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID)
	sess.History = append(sess.History,
		models.Turn{Role: models.RoleUser, Content: userContent},
		models.Turn{Role: models.RoleAssistant, Content: assistantContent},
	)
	sess.truncate()
}

func (sess *UserSession) truncate() {
	if n := len(sess.History); n > MaxHistoryLength {
		sess.History = append(sess.History[:0:0], sess.History[n-MaxHistoryLength:]...)
	}
}

// History returns a copy of the user's history, empty if the user is
// unknown.
func (s *Store) History(userID int64) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	out := make([]models.Turn, len(sess.History))
	copy(out, sess.History)
	return out
}

// Clear empties the user's history. The mode is preserved.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.History = nil
	}
}
