package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/appointments/internal/domain"
)

type ContactRepository interface {
	Create(ctx context.Context, c *domain.Contact) error
	GetByID(ctx context.Context, id int64) (*domain.Contact, error)
	// GetByEmail returns nil, nil when the workspace has no contact with that email.
	GetByEmail(ctx context.Context, workspaceID int64, email string) (*domain.Contact, error)
	Update(ctx context.Context, c *domain.Contact) error
}

const contactSelect = "SELECT id, workspace_id, email, phone, full_name, source, created_at FROM contacts"

type SQLContactRepository struct {
	sqlRepo
}

// NormalizeEmail is the form contacts are keyed by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *SQLContactRepository) Create(ctx context.Context, c *domain.Contact) error {
	c.Email = NormalizeEmail(c.Email)
	c.CreatedAt = r.now()
	const query = `INSERT INTO contacts (workspace_id, email, phone, full_name, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`
	if err := r.get(ctx, &c.ID, query, c.WorkspaceID, c.Email, c.Phone, c.FullName, c.Source, c.CreatedAt); err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *SQLContactRepository) GetByID(ctx context.Context, id int64) (*domain.Contact, error) {
	var c domain.Contact
	if err := r.get(ctx, &c, contactSelect+" WHERE id = ?", id); err != nil {
		return nil, notFound(err, "contact", id)
	}
	return &c, nil
}

func (r *SQLContactRepository) GetByEmail(ctx context.Context, workspaceID int64, email string) (*domain.Contact, error) {
	var c domain.Contact
	err := r.get(ctx, &c, contactSelect+" WHERE workspace_id = ? AND email = ?", workspaceID, NormalizeEmail(email))
	if errors.Is(err, errNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact by email: %w", err)
	}
	return &c, nil
}

func (r *SQLContactRepository) Update(ctx context.Context, c *domain.Contact) error {
	c.Email = NormalizeEmail(c.Email)
	n, err := r.exec(ctx, "UPDATE contacts SET email = ?, phone = ?, full_name = ? WHERE id = ?",
		c.Email, c.Phone, c.FullName, c.ID)
	if err != nil {
		return fmt.Errorf("update contact %d: %w", c.ID, err)
	}
	if n == 0 {
		return notFound(errNoRows, "contact", c.ID)
	}
	return nil
}
