package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/appointments/internal/domain"
)

type WorkspaceRepository interface {
	Create(ctx context.Context, w *domain.Workspace) error
	GetByID(ctx context.Context, id int64) (*domain.Workspace, error)
}

type SQLWorkspaceRepository struct {
	sqlRepo
}

func (r *SQLWorkspaceRepository) Create(ctx context.Context, w *domain.Workspace) error {
	if w.Timezone == "" {
		w.Timezone = time.UTC.String()
	}
	w.CreatedAt = r.now()
	const query = `INSERT INTO workspaces (name, slug, timezone, created_at) VALUES (?, ?, ?, ?) RETURNING id`
	if err := r.get(ctx, &w.ID, query, w.Name, w.Slug, w.Timezone, w.CreatedAt); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (r *SQLWorkspaceRepository) GetByID(ctx context.Context, id int64) (*domain.Workspace, error) {
	var w domain.Workspace
	if err := r.get(ctx, &w, "SELECT id, name, slug, timezone, created_at FROM workspaces WHERE id = ?", id); err != nil {
		return nil, notFound(err, "workspace", id)
	}
	return &w, nil
}
