package settle

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func equalExpense(payerID int, amount string, memberIDs ...int) Expense {
	a := dec(amount)
	return Expense{PayerID: payerID, Amount: a, Splits: EqualSplit(a, memberIDs)}
}

func TestComputeBalances_OneEqualExpense(t *testing.T) {
	// 3 members, user 1 pays 300 split equally.
	sheet := ComputeBalances([]Expense{equalExpense(1, "300", 1, 2, 3)}, nil)

	want := map[int]string{1: "200", 2: "-100", 3: "-100"}
	for id, w := range want {
		if got := sheet.Balance(id); !got.Equal(dec(w)) {
			t.Errorf("balance[%d] = %s, want %s", id, got, w)
		}
	}

	debts := sheet.Resolve()
	if len(debts) != 2 {
		t.Fatalf("got %d debts, want 2: %+v", len(debts), debts)
	}
	for _, d := range debts {
		if d.ToUserID != 1 || !d.Amount.Equal(dec("100")) {
			t.Errorf("unexpected debt %+v", d)
		}
	}
	if debts[0].FromUserID != 2 || debts[1].FromUserID != 3 {
		t.Errorf("tie-break order broken: %+v", debts)
	}
}

func TestComputeBalances_SettlementReducesDebt(t *testing.T) {
	expenses := []Expense{equalExpense(1, "300", 1, 2, 3)}
	settlements := []Settlement{{FromUserID: 2, ToUserID: 1, Amount: dec("100")}}

	sheet := ComputeBalances(expenses, settlements)

	want := map[int]string{1: "100", 2: "0", 3: "-100"}
	for id, w := range want {
		if got := sheet.Balance(id); !got.Equal(dec(w)) {
			t.Errorf("balance[%d] = %s, want %s", id, got, w)
		}
	}

	debts := sheet.Resolve()
	if len(debts) != 1 {
		t.Fatalf("got %d debts, want 1: %+v", len(debts), debts)
	}
	if debts[0].FromUserID != 3 || debts[0].ToUserID != 1 || !debts[0].Amount.Equal(dec("100")) {
		t.Errorf("unexpected debt %+v", debts[0])
	}
}

func TestComputeBalances_ExactSplit(t *testing.T) {
	expenses := []Expense{{
		PayerID: 1,
		Amount:  dec("90"),
		Splits: []Split{
			{UserID: 1, Amount: dec("30")},
			{UserID: 2, Amount: dec("30")},
			{UserID: 3, Amount: dec("30")},
		},
	}}

	sheet := ComputeBalances(expenses, nil)

	want := map[int]string{1: "60", 2: "-30", 3: "-30"}
	for id, w := range want {
		if got := sheet.Balance(id); !got.Equal(dec(w)) {
			t.Errorf("balance[%d] = %s, want %s", id, got, w)
		}
	}
}

func TestZeroSumInvariant(t *testing.T) {
	expenses := []Expense{
		equalExpense(1, "300", 1, 2, 3),
		equalExpense(2, "100", 1, 2, 3),
		equalExpense(3, "45.67", 1, 2, 3),
		{PayerID: 2, Amount: dec("75.50"), Splits: []Split{
			{UserID: 1, Amount: dec("25.50")},
			{UserID: 3, Amount: dec("50.00")},
		}},
	}
	settlements := []Settlement{
		{FromUserID: 3, ToUserID: 1, Amount: dec("40")},
		{FromUserID: 2, ToUserID: 1, Amount: dec("12.34")},
	}

	sheet := ComputeBalances(expenses, settlements)

	if total := sheet.Total(); total.Abs().GreaterThan(epsilon) {
		t.Errorf("sum of balances = %s, want within ±0.01 of zero", total)
	}
}

func TestResolve_DrivesBalancesToZero(t *testing.T) {
	expenses := []Expense{
		equalExpense(1, "120", 1, 2, 3, 4),
		equalExpense(2, "33.33", 1, 2, 3, 4),
		equalExpense(4, "250", 1, 2, 3, 4),
	}
	settlements := []Settlement{
		{FromUserID: 3, ToUserID: 4, Amount: dec("20")},
	}

	sheet := ComputeBalances(expenses, settlements)
	debts := sheet.Resolve()

	// Apply the plan back onto the balances.
	remaining := make(map[int]decimal.Decimal)
	for _, id := range sheet.Members() {
		remaining[id] = sheet.Balance(id)
	}
	for _, d := range debts {
		remaining[d.FromUserID] = remaining[d.FromUserID].Add(d.Amount)
		remaining[d.ToUserID] = remaining[d.ToUserID].Sub(d.Amount)
	}
	for id, bal := range remaining {
		if bal.Abs().GreaterThan(epsilon) {
			t.Errorf("after settling, balance[%d] = %s, want within ±0.01", id, bal)
		}
	}
}

func TestResolve_TransferBound(t *testing.T) {
	expenses := []Expense{
		equalExpense(1, "500", 1, 2, 3, 4, 5),
		equalExpense(2, "200", 1, 2, 3, 4, 5),
		equalExpense(3, "50", 3, 4, 5),
	}

	sheet := ComputeBalances(expenses, nil)

	debtors, creditors := 0, 0
	for _, id := range sheet.Members() {
		bal := sheet.Balance(id)
		if bal.LessThan(epsilon.Neg()) {
			debtors++
		} else if bal.GreaterThan(epsilon) {
			creditors++
		}
	}

	debts := sheet.Resolve()
	if max := debtors + creditors - 1; len(debts) > max {
		t.Errorf("got %d transfers for %d debtors and %d creditors, want at most %d",
			len(debts), debtors, creditors, max)
	}
}

func TestResolve_SettledMembersExcluded(t *testing.T) {
	expenses := []Expense{equalExpense(1, "300", 1, 2, 3)}
	settlements := []Settlement{{FromUserID: 2, ToUserID: 1, Amount: dec("100")}}

	debts := ComputeBalances(expenses, settlements).Resolve()
	for _, d := range debts {
		if d.FromUserID == 2 || d.ToUserID == 2 {
			t.Errorf("settled member 2 appears in plan: %+v", d)
		}
	}
}

func TestResolve_EmptyAndSettledSheets(t *testing.T) {
	if debts := ComputeBalances(nil, nil).Resolve(); len(debts) != 0 {
		t.Errorf("empty ledger produced debts: %+v", debts)
	}

	// Everyone already square.
	expenses := []Expense{equalExpense(1, "300", 1, 2, 3)}
	settlements := []Settlement{
		{FromUserID: 2, ToUserID: 1, Amount: dec("100")},
		{FromUserID: 3, ToUserID: 1, Amount: dec("100")},
	}
	if debts := ComputeBalances(expenses, settlements).Resolve(); len(debts) != 0 {
		t.Errorf("settled ledger produced debts: %+v", debts)
	}
}

func TestEqualSplit(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		members []int
		share   string
	}{
		{"even division", "300", []int{1, 2, 3}, "100"},
		{"two decimal share", "100.50", []int{1, 2}, "50.25"},
		{"residual cent lost", "100", []int{1, 2, 3}, "33.33"},
		{"single member", "42.42", []int{7}, "42.42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits := EqualSplit(dec(tt.amount), tt.members)
			if len(splits) != len(tt.members) {
				t.Fatalf("got %d splits, want %d", len(splits), len(tt.members))
			}

			sum := decimal.Zero
			for i, s := range splits {
				if s.UserID != tt.members[i] {
					t.Errorf("split %d for user %d, want %d", i, s.UserID, tt.members[i])
				}
				if !s.Amount.Equal(dec(tt.share)) {
					t.Errorf("share = %s, want %s", s.Amount, tt.share)
				}
				sum = sum.Add(s.Amount)
			}

			// Sum of shares stays within one cent per member of the total.
			tolerance := epsilon.Mul(decimal.NewFromInt(int64(len(tt.members))))
			if drift := sum.Sub(dec(tt.amount)).Abs(); drift.GreaterThan(tolerance) {
				t.Errorf("splits sum %s drifts %s from %s", sum, drift, tt.amount)
			}
		})
	}

	if splits := EqualSplit(dec("10"), nil); splits != nil {
		t.Errorf("no members should yield no splits, got %+v", splits)
	}
}

func TestResolve_UnevenChain(t *testing.T) {
	// 1 is owed 150, 2 is owed 30; 3 owes 100, 4 owes 80.
	sheet := newBalanceSheet()
	sheet.add(1, dec("150"))
	sheet.add(2, dec("30"))
	sheet.add(3, dec("-100"))
	sheet.add(4, dec("-80"))

	debts := sheet.Resolve()

	want := []Debt{
		{FromUserID: 3, ToUserID: 1, Amount: dec("100")},
		{FromUserID: 4, ToUserID: 1, Amount: dec("50")},
		{FromUserID: 4, ToUserID: 2, Amount: dec("30")},
	}
	if len(debts) != len(want) {
		t.Fatalf("got %d debts, want %d: %+v", len(debts), len(want), debts)
	}
	for i, w := range want {
		d := debts[i]
		if d.FromUserID != w.FromUserID || d.ToUserID != w.ToUserID || !d.Amount.Equal(w.Amount) {
			t.Errorf("debt[%d] = %+v, want %+v", i, d, w)
		}
	}
}
