package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
)

// DefaultMaxMessages is the transcript cap used when none is configured.
const DefaultMaxMessages = 20

const maxSessionIDLength = 128

var ErrInvalidSessionID = errors.New("invalid session id")

// Store owns per-session transcripts. The system prompt is never stored here.
type Store interface {
	GetOrCreate(ctx context.Context, sessionID string) (chat.Session, error)
	AppendUser(ctx context.Context, sessionID, content string) (chat.Message, error)
	AppendAssistant(ctx context.Context, sessionID, content string) (chat.Message, error)
	History(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Options tunes a MemoryStore.
type Options struct {
	MaxMessages int
	IdleTTL     time.Duration
}

type entry struct {
	mu         sync.Mutex
	session    chat.Session
	transcript []chat.Message
}

// MemoryStore keeps transcripts in process memory. Appends on one session are
// linearized by that session's mutex; different sessions never contend beyond
// the short map lookup.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*entry
	maxMessages int
	idleTTL     time.Duration
	now         func() time.Time
}

// NewMemoryStore bootstraps an empty store.
func NewMemoryStore(opts Options) *MemoryStore {
	maxMessages := opts.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &MemoryStore{
		sessions:    make(map[string]*entry),
		maxMessages: maxMessages,
		idleTTL:     opts.IdleTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ValidateID checks a caller-supplied session identifier.
func ValidateID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" || len(sessionID) > maxSessionIDLength {
		return ErrInvalidSessionID
	}
	for _, r := range sessionID {
		if unicode.IsControl(r) {
			return ErrInvalidSessionID
		}
	}
	return nil
}

// GetOrCreate returns the session, creating an empty one on first reference.
func (s *MemoryStore) GetOrCreate(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return chat.Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, nil
}

// AppendUser records a user turn.
func (s *MemoryStore) AppendUser(_ context.Context, sessionID, content string) (chat.Message, error) {
	return s.append(sessionID, chat.RoleUser, content)
}

// AppendAssistant records an assistant turn.
func (s *MemoryStore) AppendAssistant(_ context.Context, sessionID, content string) (chat.Message, error) {
	return s.append(sessionID, chat.RoleAssistant, content)
}

// History returns a copy of the transcript in chronological order. Unknown
// sessions read as an empty transcript and are not created.
func (s *MemoryStore) History(_ context.Context, sessionID string) ([]chat.Message, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return []chat.Message{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	copied := make([]chat.Message, len(e.transcript))
	copy(copied, e.transcript)
	return copied, nil
}

// Len reports how many sessions are currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the configured TTL and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}

	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		idle := e.session.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps idle sessions every interval until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(s.now()); removed > 0 {
				log.Printf("[session] evicted %d idle sessions", removed)
			}
		}
	}
}

func (s *MemoryStore) entry(sessionID string) (*entry, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		now := s.now()
		e = &entry{
			session:    chat.Session{ID: sessionID, CreatedAt: now, UpdatedAt: now},
			transcript: make([]chat.Message, 0, 8),
		}
		s.sessions[sessionID] = e
	}
	return e, nil
}

func (s *MemoryStore) append(sessionID string, role chat.Role, content string) (chat.Message, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return chat.Message{}, err
	}

	message := chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.transcript = append(e.transcript, message)
	if over := len(e.transcript) - s.maxMessages; over > 0 {
		// Drop the oldest turns; the next growth of the slice copies only the live window.
		clear(e.transcript[:over])
		e.transcript = e.transcript[over:]
	}
	e.session.UpdatedAt = message.CreatedAt
	e.session.Turns++

	return message, nil
}
