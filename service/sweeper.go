package service

import (
	"context"
	"log"
	"time"
)

// trashRetention is how long soft-deleted files stay recoverable.
const trashRetention = 30 * 24 * time.Hour

// TrashPurger removes trashed records deleted before a cutoff.
type TrashPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper purges trashed files past the retention window.
type Sweeper struct {
	files TrashPurger
	now   func() time.Time
}

// NewSweeper creates a trash sweeper.
func NewSweeper(files TrashPurger) *Sweeper {
	return &Sweeper{files: files, now: time.Now}
}

// Run purges everything trashed more than the retention period ago.
func (s *Sweeper) Run(ctx context.Context) {
	cutoff := s.now().Add(-trashRetention)
	deleted, err := s.files.DeleteExpired(ctx, cutoff)
	if err != nil {
		log.Printf("trash sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("trash sweep removed %d expired files", deleted)
	}
}
