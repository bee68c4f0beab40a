package playback

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pot-code/coursegate/internal/infrastructure/driver"
)

// ErrNoSession learner has no current playback session
var ErrNoSession = errors.New("No playback session")

// ErrStaleSession session was replaced by a newer one of the same learner
var ErrStaleSession = errors.New("Playback session is no longer current")

const (
	sessionKeyPrefix = "playback:session:"
	firedKeyPrefix   = "playback:fired:"
)

// SessionStore keeps the current session of each learner in the key-value store
type SessionStore struct {
	KV  driver.KeyValueDB
	TTL time.Duration
}

func NewSessionStore(KV driver.KeyValueDB, TTL time.Duration) *SessionStore {
	return &SessionStore{KV: KV, TTL: TTL}
}

// Save makes s the current session of its learner
func (ss *SessionStore) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return ss.KV.SetEX(ctx, sessionKeyPrefix+s.LearnerID, string(raw), ss.TTL)
}

func (ss *SessionStore) Current(ctx context.Context, learnerID string) (*Session, error) {
	raw, err := ss.KV.Get(ctx, sessionKeyPrefix+learnerID)
	if errors.Is(err, driver.ErrKeyNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	s := new(Session)
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup current session of the learner, ErrStaleSession when it is not sessionID
func (ss *SessionStore) Lookup(ctx context.Context, learnerID, sessionID string) (*Session, error) {
	s, err := ss.Current(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if s.ID != sessionID {
		return nil, ErrStaleSession
	}
	return s, nil
}

// Claim the completion of session s, reports false if it was claimed before
func (ss *SessionStore) Claim(ctx context.Context, s *Session) (bool, error) {
	return ss.KV.SetNX(ctx, firedKeyPrefix+s.ID, s.LessonID, ss.TTL)
}

// Release a claim whose completion could not be stored
func (ss *SessionStore) Release(ctx context.Context, s *Session) error {
	return ss.KV.Del(ctx, firedKeyPrefix+s.ID)
}
