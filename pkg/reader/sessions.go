package reader

import (
	"context"
	"sync"

	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Sessions owns the open engines of a process, at most one per book. When
// more than max books are open the least recently used engine is closed.
type Sessions struct {
	mu    sync.Mutex
	deps  Deps
	max   int
	open  map[int]*session
	clock uint64
}

type session struct {
	engine   Engine
	lastUsed uint64
}

func NewSessions(deps Deps, max int) *Sessions {
	if max < 1 {
		max = 1
	}
	return &Sessions{deps: deps, max: max, open: map[int]*session{}}
}

// Open returns the engine for book, creating and loading it if needed. A
// new engine starts at the book's saved position. An engine that fails to
// load is closed and not kept.
func (s *Sessions) Open(ctx context.Context, book *models.Book) (Engine, error) {
	if e, ok := s.Get(book.ID); ok {
		return e, nil
	}

	e := New(formats.Parse(book.Format), s.deps)
	if err := e.Initialize(book, book.LastReadPosition); err != nil {
		return nil, err
	}
	if err := e.LoadContent(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}

	s.mu.Lock()
	// Another request may have opened the same book meanwhile.
	if existing, ok := s.open[book.ID]; ok {
		s.touch(existing)
		s.mu.Unlock()
		_ = e.Close()
		return existing.engine, nil
	}
	s.open[book.ID] = &session{engine: e}
	s.touch(s.open[book.ID])
	evicted := s.evict()
	s.mu.Unlock()

	log := logger.FromContext(ctx)
	for id, old := range evicted {
		_ = old.SaveReadingProgress(ctx)
		if err := old.Close(); err != nil {
			log.Err(err).Warn("failed to close evicted reader", logger.Data{"book_id": id})
		}
	}
	return e, nil
}

// Get returns the open engine for bookID.
func (s *Sessions) Get(bookID int) (Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.open[bookID]
	if !ok {
		return nil, false
	}
	s.touch(sess)
	return sess.engine, true
}

func (s *Sessions) touch(sess *session) {
	s.clock++
	sess.lastUsed = s.clock
}

// evict drops least recently used sessions until at most max remain and
// returns their engines by book ID. It must be called with the lock held;
// the caller saves and closes the engines after unlocking.
func (s *Sessions) evict() map[int]Engine {
	evicted := map[int]Engine{}
	for len(s.open) > s.max {
		oldestID, oldest := 0, (*session)(nil)
		for id, sess := range s.open {
			if oldest == nil || sess.lastUsed < oldest.lastUsed {
				oldestID, oldest = id, sess
			}
		}
		delete(s.open, oldestID)
		evicted[oldestID] = oldest.engine
	}
	return evicted
}

// Close closes and forgets the engine for bookID. Closing a book that is
// not open is a no-op.
func (s *Sessions) Close(bookID int) error {
	s.mu.Lock()
	sess, ok := s.open[bookID]
	delete(s.open, bookID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return errors.WithStack(sess.engine.Close())
}

// SaveAll saves the reading position of every open engine. A failed save is
// logged by the engine and does not stop the others.
func (s *Sessions) SaveAll(ctx context.Context) {
	s.mu.Lock()
	open := make([]Engine, 0, len(s.open))
	for _, sess := range s.open {
		open = append(open, sess.engine)
	}
	s.mu.Unlock()

	for _, e := range open {
		_ = e.SaveReadingProgress(ctx)
	}
}

// CloseAll closes every open engine.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	open := s.open
	s.open = map[int]*session{}
	s.mu.Unlock()

	for _, sess := range open {
		_ = sess.engine.Close()
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
