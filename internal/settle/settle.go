// Package settle computes net member balances for a group ledger and
// resolves them into a minimal set of settling transfers. It is pure:
// callers fetch the rows, this package only does arithmetic.
package settle

import (
	"sort"

	"github.com/shopspring/decimal"
)

// epsilon below which a balance counts as settled.
var epsilon = decimal.New(1, -2) // 0.01

type Split struct {
	UserID int
	Amount decimal.Decimal
}

type Expense struct {
	PayerID int
	Amount  decimal.Decimal
	Splits  []Split
}

type Settlement struct {
	FromUserID int
	ToUserID   int
	Amount     decimal.Decimal
}

// Debt is a suggested transfer: FromUserID pays ToUserID Amount.
type Debt struct {
	FromUserID int             `json:"from_user_id"`
	ToUserID   int             `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// BalanceSheet holds one signed balance per member: positive means the
// member is owed money, negative means the member owes. Members are kept
// in first-seen order so that debt resolution is deterministic.
type BalanceSheet struct {
	order    []int
	balances map[int]decimal.Decimal
}

func newBalanceSheet() *BalanceSheet {
	return &BalanceSheet{balances: make(map[int]decimal.Decimal)}
}

func (b *BalanceSheet) add(userID int, amount decimal.Decimal) {
	if _, ok := b.balances[userID]; !ok {
		b.order = append(b.order, userID)
	}
	b.balances[userID] = b.balances[userID].Add(amount)
}

// Balance returns the net balance for userID, zero if unknown.
func (b *BalanceSheet) Balance(userID int) decimal.Decimal {
	return b.balances[userID]
}

// Members returns all member IDs in first-seen order.
func (b *BalanceSheet) Members() []int {
	out := make([]int, len(b.order))
	copy(out, b.order)
	return out
}

// Total sums every balance. For a closed ledger it is zero within
// rounding drift: each expense credits its payer exactly what the splits
// debit, and each settlement moves value between two accounts.
func (b *BalanceSheet) Total() decimal.Decimal {
	total := decimal.Zero
	for _, id := range b.order {
		total = total.Add(b.balances[id])
	}
	return total
}

// ComputeBalances accumulates expenses and settlements into net balances.
// The payer of an expense is credited the full amount, every split ower is
// debited their share. A settlement from A to B raises A (debt repaid)
// and lowers B (credit consumed).
func ComputeBalances(expenses []Expense, settlements []Settlement) *BalanceSheet {
	sheet := newBalanceSheet()

	for _, e := range expenses {
		sheet.add(e.PayerID, e.Amount)
		for _, s := range e.Splits {
			sheet.add(s.UserID, s.Amount.Neg())
		}
	}

	for _, s := range settlements {
		sheet.add(s.FromUserID, s.Amount)
		sheet.add(s.ToUserID, s.Amount.Neg())
	}

	return sheet
}

// Resolve turns the sheet into a settle-up plan with a greedy two-pointer
// sweep: debtors sorted most-negative first, creditors largest first, ties
// kept in first-seen order, then the current pair is matched for
// min(|debtor|, creditor) until one side runs out. Produces at most
// len(debtors)+len(creditors)-1 transfers.
func (b *BalanceSheet) Resolve() []Debt {
	type account struct {
		userID int
		amount decimal.Decimal
	}

	var debtors, creditors []account
	for _, id := range b.order {
		bal := b.balances[id]
		switch {
		case bal.LessThan(epsilon.Neg()):
			debtors = append(debtors, account{id, bal})
		case bal.GreaterThan(epsilon):
			creditors = append(creditors, account{id, bal})
		}
	}

	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].amount.LessThan(debtors[j].amount)
	})
	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].amount.GreaterThan(creditors[j].amount)
	})

	var debts []Debt
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := debtor.amount.Abs()
		if creditor.amount.LessThan(amount) {
			amount = creditor.amount
		}

		debts = append(debts, Debt{
			FromUserID: debtor.userID,
			ToUserID:   creditor.userID,
			Amount:     amount.Round(2),
		})

		debtor.amount = debtor.amount.Add(amount)
		creditor.amount = creditor.amount.Sub(amount)

		if debtor.amount.Abs().LessThan(epsilon) {
			i++
		}
		if creditor.amount.LessThan(epsilon) {
			j++
		}
	}

	return debts
}

// EqualSplit divides amount evenly across members, each share rounded to
// two decimal places. A leftover cent from rounding stays unassigned;
// the stored splits simply sum slightly under (or over) the total.
func EqualSplit(amount decimal.Decimal, memberIDs []int) []Split {
	if len(memberIDs) == 0 {
		return nil
	}
	share := amount.Div(decimal.NewFromInt(int64(len(memberIDs)))).Round(2)
	splits := make([]Split, 0, len(memberIDs))
	for _, id := range memberIDs {
		splits = append(splits, Split{UserID: id, Amount: share})
	}
	return splits
}
