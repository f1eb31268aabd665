package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

const (
	SplitTypeEqual = "equal"
	SplitTypeExact = "exact"
)

type GroupExpense struct {
	ID          int             `json:"id,omitempty" db:"id,omitempty"`
	GroupID     int             `json:"group_id,omitempty" db:"group_id,omitempty"`
	PaidBy      int             `json:"paid_by,omitempty" db:"paid_by,omitempty"`
	Amount      decimal.Decimal `json:"amount,omitempty" db:"amount,omitempty"`
	Description string          `json:"description,omitempty" db:"description,omitempty"`
	SplitType   string          `json:"split_type,omitempty" db:"split_type,omitempty"`
	Date        sql.NullString  `json:"date,omitempty" db:"date,omitempty"`
	CreatedAt   sql.NullString  `json:"created_at,omitempty" db:"created_at,omitempty"`
	DeletedAt   sql.NullString  `json:"-" db:"deleted_at,omitempty"`
}
