// Package ledger loads a group's full expense and settlement history in
// the shape the settle engine consumes. The debts endpoint and the
// reminder cron both read through it so the queries cannot drift apart.
package ledger

import (
	"context"
	"database/sql"

	"splitkit/internal/settle"
	"splitkit/pkg/utils"

	"github.com/shopspring/decimal"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Fetch pulls every live expense (with splits) and settlement for the
// group. Balances are recomputed from these rows on every read; nothing
// is cached.
func Fetch(ctx context.Context, q Querier, groupID int) ([]settle.Expense, []settle.Settlement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, paid_by, amount
		FROM group_expenses
		WHERE group_id = ? AND deleted_at IS NULL
		ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to fetch group expenses")
	}
	defer rows.Close()

	var expenses []settle.Expense
	index := make(map[int]int)
	for rows.Next() {
		var (
			id     int
			payer  int
			amount decimal.Decimal
		)
		if err := rows.Scan(&id, &payer, &amount); err != nil {
			return nil, nil, utils.ErrorHandler(err, "failed to scan group expense")
		}
		index[id] = len(expenses)
		expenses = append(expenses, settle.Expense{PayerID: payer, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to read group expenses")
	}

	if len(expenses) > 0 {
		splitRows, err := q.QueryContext(ctx, `
			SELECT s.expense_id, s.user_id, s.amount
			FROM group_expense_splits s
			JOIN group_expenses e ON s.expense_id = e.id
			WHERE e.group_id = ? AND e.deleted_at IS NULL
			ORDER BY s.id ASC
		`, groupID)
		if err != nil {
			return nil, nil, utils.ErrorHandler(err, "failed to fetch expense splits")
		}
		defer splitRows.Close()

		for splitRows.Next() {
			var (
				expenseID int
				split     settle.Split
			)
			if err := splitRows.Scan(&expenseID, &split.UserID, &split.Amount); err != nil {
				return nil, nil, utils.ErrorHandler(err, "failed to scan expense split")
			}
			if i, ok := index[expenseID]; ok {
				expenses[i].Splits = append(expenses[i].Splits, split)
			}
		}
		if err := splitRows.Err(); err != nil {
			return nil, nil, utils.ErrorHandler(err, "failed to read expense splits")
		}
	}

	settlementRows, err := q.QueryContext(ctx, `
		SELECT from_user, to_user, amount
		FROM settlements
		WHERE group_id = ?
		ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to fetch settlements")
	}
	defer settlementRows.Close()

	var settlements []settle.Settlement
	for settlementRows.Next() {
		var s settle.Settlement
		if err := settlementRows.Scan(&s.FromUserID, &s.ToUserID, &s.Amount); err != nil {
			return nil, nil, utils.ErrorHandler(err, "failed to scan settlement")
		}
		settlements = append(settlements, s)
	}
	if err := settlementRows.Err(); err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to read settlements")
	}
	return expenses, settlements, nil
}
