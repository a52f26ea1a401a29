package models

import "time"

// SessionRecord is one persisted analysis run.
type SessionRecord struct {
	ID        string
	Symbol    string
	TradeDate string
	Status    string
	Signal    Signal
	Error     string
	// Reflected is set once the run's lessons were stored, with the returns
	// they were reflected on.
	Reflected bool
	Returns   float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRecord is one entry of a run's message log.
type MessageRecord struct {
	SessionID string
	Seq       int
	Role      string
	Agent     string
	Content   string
	CreatedAt time.Time
}

// MemoryRecord is one persisted (situation, lesson) pair of a role memory.
type MemoryRecord struct {
	ID        int64
	Role      string
	Situation string
	Lesson    string
	Embedding []float64
	Embedder  string
	CreatedAt time.Time
}
