package domain

import "time"

type Contact struct {
	ID          int64     `db:"id" json:"id"`
	WorkspaceID int64     `db:"workspace_id" json:"workspace_id"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	FullName    string    `db:"full_name" json:"full_name,omitempty"`
	Source      string    `db:"source" json:"source"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ContactInput identifies the person a booking is made for.
type ContactInput struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
	Phone    string `json:"phone" validate:"max=40"`
}

// ContactUpdate carries the editable contact fields; empty values are left untouched.
type ContactUpdate struct {
	FullName string `json:"full_name" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"max=40"`
}

// Fields lists the names of the non-empty fields.
func (u ContactUpdate) Fields() []string {
	var fields []string
	if u.FullName != "" {
		fields = append(fields, "full_name")
	}
	if u.Email != "" {
		fields = append(fields, "email")
	}
	if u.Phone != "" {
		fields = append(fields, "phone")
	}
	return fields
}
