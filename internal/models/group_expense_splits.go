package models

import (
	"github.com/shopspring/decimal"
)

type GroupExpenseSplit struct {
	ID        int             `json:"id,omitempty" db:"id,omitempty"`
	ExpenseID int             `json:"expense_id,omitempty" db:"expense_id,omitempty"`
	UserID    int             `json:"user_id,omitempty" db:"user_id,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty" db:"amount,omitempty"`
}
