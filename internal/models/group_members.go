package models

import "database/sql"

type GroupMember struct {
	ID        int            `json:"id,omitempty" db:"id,omitempty"`
	GroupID   int            `json:"group_id,omitempty" db:"group_id,omitempty"`
	UserID    int            `json:"user_id,omitempty" db:"user_id,omitempty"`
	IsHidden  bool           `json:"is_hidden,omitempty" db:"is_hidden,omitempty"`
	JoinedAt  sql.NullString `json:"joined_at,omitempty" db:"joined_at,omitempty"`
	DeletedAt sql.NullString `json:"-" db:"deleted_at,omitempty"`
}
