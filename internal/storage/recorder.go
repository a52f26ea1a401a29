package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/models"
)

// Recorder drains committee progress events into the events table of one
// session. Writes happen on a single goroutine so the committee never waits
// on the database.
type Recorder struct {
	store     *Store
	sessionID string
	logger    *zap.Logger

	events chan models.AgentEvent
	once   sync.Once
	wg     sync.WaitGroup

	mu       sync.Mutex
	recorded int
}

func NewRecorder(store *Store, sessionID string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.L()
	}
	r := &Recorder{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		events:    make(chan models.AgentEvent, 256),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Events is the channel to hand to the graph's logger callback.
func (r *Recorder) Events() chan<- models.AgentEvent {
	return r.events
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	ctx := context.Background()
	for ev := range r.events {
		if err := r.store.InsertEvent(ctx, r.sessionID, ev); err != nil {
			r.logger.Warn("record event", zap.String("session", r.sessionID), zap.Error(err))
			continue
		}
		r.mu.Lock()
		r.recorded++
		r.mu.Unlock()
	}
}

// Close stops accepting events and waits for pending writes. No event may be
// sent after Close.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.events)
		r.wg.Wait()
	})
}

func (r *Recorder) Recorded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

func (s *Store) InsertEvent(ctx context.Context, sessionID string, ev models.AgentEvent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO events (session_id, kind, node, agent, detail, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, sessionID, string(ev.Kind), ev.Node, ev.Agent, ev.Detail, ev.Err, ev.Timestamp.UTC())
	return err
}

// ListEvents returns a session's events in the order they were recorded.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]models.AgentEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT kind, node, agent, detail, error, created_at
FROM events WHERE session_id = ?
ORDER BY id ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgentEvent
	for rows.Next() {
		var (
			ev   models.AgentEvent
			kind string
		)
		if err := rows.Scan(&kind, &ev.Node, &ev.Agent, &ev.Detail, &ev.Err, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Kind = models.EventKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}
