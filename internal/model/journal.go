package model

import "time"

// JournalEntry - запись личного дневника настроения. Видна только автору.
type JournalEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Newer - порядок ленты дневника: сначала свежие, при равном времени по ID
func (e *JournalEntry) Newer(other *JournalEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.After(other.CreatedAt)
	}
	return e.ID > other.ID
}
