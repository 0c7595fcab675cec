package domain

import "time"

// WatchItem is one user's subscription to one title. LastKnownChapter
// is the highest chapter the user has been told about; the scheduler
// only ever moves it forward.
type WatchItem struct {
	ID               string
	UserID           string
	TitleID          string
	Title            string
	LastKnownChapter Chapter
	Notify           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReleaseEvent is emitted once per subscriber when a sweep advances
// their watch item past a newly reconciled chapter.
type ReleaseEvent struct {
	UserID     string
	TitleID    string
	Title      string
	OldChapter Chapter
	NewChapter Chapter
}
