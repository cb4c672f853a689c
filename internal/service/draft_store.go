package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// Draft session errors.
var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrNotDraftOwner = errors.New("draft belongs to another author")
)

// Session is one open authoring surface. Requests on the same session run
// one at a time.
type Session struct {
	mu     sync.Mutex
	draft  *draft.Draft
	author string
	closed atomic.Bool
	// uploads are stored copies owned by the session, removed on close.
	uploads []string
}

// ID returns the draft id.
func (s *Session) ID() string { return s.draft.ID }

// Do runs fn with exclusive access to the draft. It fails with
// ErrDraftNotFound once the session is closed.
func (s *Session) Do(fn func(d *draft.Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrDraftNotFound
	}
	return fn(s.draft)
}

// Closed reports whether the session was torn down.
func (s *Session) Closed() bool { return s.closed.Load() }

// track registers a stored upload. Call with the session held.
func (s *Session) track(path string) {
	s.uploads = append(s.uploads, path)
}

// DraftStore holds open sessions in a bounded cache. Sessions past the TTL
// or pushed out by newer ones are torn down.
type DraftStore struct {
	cache   *expirable.LRU[string, *Session]
	uploads *upload.Store
	log     zerolog.Logger
}

// NewDraftStore creates a store of at most size sessions living ttl each.
func NewDraftStore(size int, ttl time.Duration, uploads *upload.Store, log zerolog.Logger) *DraftStore {
	s := &DraftStore{
		uploads: uploads,
		log:     log.With().Str("component", "draft_store").Logger(),
	}
	s.cache = expirable.NewLRU[string, *Session](size, s.onEvict, ttl)
	return s
}

// Open registers a new session for d owned by author.
func (s *DraftStore) Open(d *draft.Draft, author string, uploads ...string) *Session {
	sess := &Session{draft: d, author: author, uploads: uploads}
	s.cache.Add(d.ID, sess)
	s.log.Info().Str("draft_id", d.ID).Str("author", author).Str("mode", string(d.Mode())).Msg("Draft opened")
	return sess
}

// Get returns the session id owned by author.
func (s *DraftStore) Get(id, author string) (*Session, error) {
	sess, ok := s.cache.Get(id)
	if !ok || sess.Closed() {
		return nil, ErrDraftNotFound
	}
	if sess.author != author {
		return nil, ErrNotDraftOwner
	}
	return sess, nil
}

// Close tears the session down. In-flight work on it finishes, but its
// results are no longer applied.
func (s *DraftStore) Close(id string) {
	s.cache.Remove(id)
}

// Len returns the number of open sessions.
func (s *DraftStore) Len() int {
	return s.cache.Len()
}

func (s *DraftStore) onEvict(id string, sess *Session) {
	if sess.closed.Swap(true) {
		return
	}
	s.log.Info().Str("draft_id", id).Msg("Draft closed")

	// The cache lock is held here; wait for the session elsewhere.
	go func() {
		sess.mu.Lock()
		paths := sess.uploads
		sess.uploads = nil
		sess.mu.Unlock()
		if s.uploads != nil {
			s.uploads.Remove(paths...)
		}
	}()
}
