package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

type Settlement struct {
	ID        int             `json:"id,omitempty" db:"id,omitempty"`
	GroupID   int             `json:"group_id,omitempty" db:"group_id,omitempty"`
	FromUser  int             `json:"from_user_id,omitempty" db:"from_user,omitempty"`
	ToUser    int             `json:"to_user_id,omitempty" db:"to_user,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty" db:"amount,omitempty"`
	Date      sql.NullString  `json:"date,omitempty" db:"date,omitempty"`
	CreatedAt sql.NullString  `json:"created_at,omitempty" db:"created_at,omitempty"`
}
