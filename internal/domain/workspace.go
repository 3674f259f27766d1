package domain

import (
	"fmt"
	"time"
)

// Workspace is the tenant every other entity belongs to.
type Workspace struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Timezone  string    `db:"timezone" json:"timezone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Location resolves the workspace's business timezone.
func (w Workspace) Location() (*time.Location, error) {
	if w.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("workspace %d timezone %q: %w", w.ID, w.Timezone, err)
	}
	return loc, nil
}
