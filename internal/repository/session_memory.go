package repository

import (
	"sync"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/rag/index"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRepository owns the lifecycle of sessions and their indexes
type SessionRepository interface {
	GetOrCreate(id string) (*Session, bool)
	Get(id string) (*Session, error)
	AddDocument(s *Session, doc *entity.Document, chunks []entity.Chunk) error
	End(id string) bool
	OnEnd(hook func(info entity.SessionInfo))
	Count() int
	Close()
}

var _ SessionRepository = &SessionMemory{}

// Session is the in-memory state of one conversation. Its index lives in the
// shared store under a key that is unique to this instance, so a session
// recreated under the same ID never sees vectors of the previous one.
type Session struct {
	ID        string
	IndexKey  string
	CreatedAt time.Time

	mu         sync.RWMutex
	lastAccess time.Time
	ended      bool
	nextSeq    int
	lastUpload time.Time
	documents  []entity.DocumentRef
	chunkCount int
	transcript []entity.TranscriptEntry
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		IndexKey:   id + "#" + uuid.NewString(),
		CreatedAt:  now,
		lastAccess: now,
	}
}

func (s *Session) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// Info returns a snapshot of the session metadata
func (s *Session) Info() entity.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return entity.SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastAccessAt: s.lastAccess,
		Documents:    append([]entity.DocumentRef{}, s.documents...),
		ChunkCount:   s.chunkCount,
		Questions:    len(s.transcript),
	}
}

// Transcript returns a copy of the questions asked so far
func (s *Session) Transcript() []entity.TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.TranscriptEntry{}, s.transcript...)
}

// AppendTranscript records an answered question, ended sessions keep nothing
func (s *Session) AppendTranscript(entry entity.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return entity.ErrSessionEnded
	}
	s.transcript = append(s.transcript, entry)
	return nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// SessionMemory keeps sessions in a TTL cache. Eviction by End, by idle
// expiry or by Close drops the session index.
type SessionMemory struct {
	cache *cache.Cache
	index *index.Store
	now   func() time.Time

	// serializes lookups that refresh or replace cache entries
	mu sync.Mutex

	onEnd func(info entity.SessionInfo)
}

func NewSessionMemory(store *index.Store, ttl, cleanupInterval time.Duration) *SessionMemory {
	m := &SessionMemory{
		cache: cache.New(ttl, cleanupInterval),
		index: store,
		now:   time.Now,
	}
	m.cache.OnEvicted(m.evicted)
	return m
}

// OnEnd registers a hook called once for every session that ends. It must be
// set before the repository is shared and must not call back into it.
func (m *SessionMemory) OnEnd(hook func(info entity.SessionInfo)) {
	m.onEnd = hook
}

// GetOrCreate returns the live session for id, creating it when missing.
// The second result reports whether the session is new.
func (m *SessionMemory) GetOrCreate(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.lookup(id); s != nil {
		return s, false
	}

	// evict an expired entry under the same ID before replacing it
	m.cache.DeleteExpired()

	s := newSession(id, m.now())
	m.cache.SetDefault(id, s)
	return s, true
}

// Get returns the live session for id and refreshes its idle timer
func (m *SessionMemory) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.lookup(id); s != nil {
		return s, nil
	}
	return nil, entity.ErrSessionNotFound
}

func (m *SessionMemory) lookup(id string) *Session {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil
	}

	s := v.(*Session)
	if s.Ended() {
		return nil
	}

	s.touch(m.now())
	m.cache.SetDefault(id, s)
	return s
}

// AddDocument indexes all chunks of doc and records it in the session. The
// document sequence number and upload time are assigned here, so both follow
// indexing order.
func (m *SessionMemory) AddDocument(s *Session, doc *entity.Document, chunks []entity.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return entity.ErrSessionEnded
	}

	uploadedAt := m.now().UTC()
	if uploadedAt.Before(s.lastUpload) {
		uploadedAt = s.lastUpload
	}

	doc.SessionID = s.ID
	doc.Seq = s.nextSeq
	doc.UploadedAt = uploadedAt
	doc.ChunkCount = len(chunks)
	for i := range chunks {
		chunks[i].Sensitive = doc.IsConfidential()
	}

	if err := m.index.Insert(s.IndexKey, doc.Ref(), chunks); err != nil {
		return err
	}

	s.nextSeq++
	s.lastUpload = uploadedAt
	s.documents = append(s.documents, doc.Ref())
	s.chunkCount += len(chunks)
	s.lastAccess = m.now()

	return nil
}

// End tears the session down. It reports whether a live session existed.
func (m *SessionMemory) End(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.cache.Get(id)
	if !ok {
		return false
	}
	live := !v.(*Session).Ended()

	m.cache.Delete(id)
	return live
}

// Count returns the number of cached sessions, expired ones included until
// the janitor runs
func (m *SessionMemory) Count() int {
	return m.cache.ItemCount()
}

// Close ends every session and drops all indexes
func (m *SessionMemory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.DeleteExpired()
	for id := range m.cache.Items() {
		m.cache.Delete(id)
	}
	m.index.DropAll()
}

func (m *SessionMemory) evicted(_ string, v interface{}) {
	s, ok := v.(*Session)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	info := entity.SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastAccessAt: s.lastAccess,
		Documents:    s.documents,
		ChunkCount:   s.chunkCount,
		Questions:    len(s.transcript),
	}
	s.documents = nil
	s.transcript = nil
	s.mu.Unlock()

	m.index.Drop(s.IndexKey)

	if m.onEnd != nil {
		m.onEnd(info)
	}
}
