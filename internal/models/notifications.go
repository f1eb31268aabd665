package models

import "database/sql"

const (
	NotificationGroupJoin        = "group_join"
	NotificationGroupTransaction = "group_transaction"
)

type Notification struct {
	ID        int            `json:"id,omitempty" db:"id,omitempty"`
	UserID    int            `json:"user_id,omitempty" db:"user_id,omitempty"`
	Type      string         `json:"type,omitempty" db:"type,omitempty"`
	Title     string         `json:"title,omitempty" db:"title,omitempty"`
	Body      string         `json:"body,omitempty" db:"body,omitempty"`
	Data      sql.NullString `json:"data,omitempty" db:"data,omitempty"`
	CreatedAt sql.NullString `json:"created_at,omitempty" db:"created_at,omitempty"`
}
