package groups

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"splitkit/internal/models"
	"splitkit/internal/repositories/ledger"
	"splitkit/internal/repositories/sqlconnect"
	"splitkit/internal/services"
	"splitkit/internal/settle"
	"splitkit/pkg/utils"

	"github.com/shopspring/decimal"
)

const dateTimeLayout = "2006-01-02 15:04:05"

// FUNC TO ADD A GROUP EXPENSE
func CreateGroupExpenseHandler(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.WriteError(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	type splitRequest struct {
		UserID int             `json:"user_id"`
		Amount decimal.Decimal `json:"amount"`
	}

	type request struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        string          `json:"date,omitempty"`
		SplitType   string          `json:"split_type,omitempty"`
		Splits      []splitRequest  `json:"splits,omitempty"`
		PaidBy      int             `json:"paid_by,omitempty"`
	}

	var req request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		utils.WriteError(w, "amount must be greater than 0", http.StatusBadRequest)
		return
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		utils.WriteError(w, "description is required", http.StatusBadRequest)
		return
	}

	if req.SplitType == "" {
		req.SplitType = models.SplitTypeEqual
	}
	if req.SplitType != models.SplitTypeEqual && req.SplitType != models.SplitTypeExact {
		utils.WriteError(w, "split_type must be 'equal' or 'exact'", http.StatusBadRequest)
		return
	}

	expenseDate := time.Now()
	if req.Date != "" {
		expenseDate, err = time.Parse(time.RFC3339, req.Date)
		if err != nil {
			expenseDate, err = time.Parse("2006-01-02", req.Date)
			if err != nil {
				utils.WriteError(w, "invalid date format", http.StatusBadRequest)
				return
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Membership reads and the inserts share one transaction so the splits
	// cannot be written against a roster that changed underneath them.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to start transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	aggregate, err := loadGroupForMember(ctx, tx, groupID, userID)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, errGroupNotFound) {
			utils.WriteError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to fetch group: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	payerID := req.PaidBy
	if payerID == 0 {
		payerID = userID
	}
	payer := aggregate.member(payerID)
	if payer == nil {
		tx.Rollback()
		utils.WriteError(w, "payer must be a member of the group", http.StatusBadRequest)
		return
	}

	var splits []settle.Split
	switch {
	case len(req.Splits) > 0:
		// Explicit splits are taken verbatim; each must reference a member.
		for _, s := range req.Splits {
			if aggregate.member(s.UserID) == nil {
				tx.Rollback()
				utils.WriteError(w, fmt.Sprintf("split user %d is not a group member", s.UserID), http.StatusBadRequest)
				return
			}
			if s.Amount.LessThanOrEqual(decimal.Zero) {
				tx.Rollback()
				utils.WriteError(w, "split amounts must be greater than 0", http.StatusBadRequest)
				return
			}
			splits = append(splits, settle.Split{UserID: s.UserID, Amount: s.Amount})
		}
	case req.SplitType == models.SplitTypeEqual:
		memberIDs := aggregate.memberIDs()
		if len(memberIDs) == 0 {
			tx.Rollback()
			utils.WriteError(w, "no members in group to split expense among", http.StatusBadRequest)
			return
		}
		splits = settle.EqualSplit(req.Amount, memberIDs)
	default:
		tx.Rollback()
		utils.WriteError(w, "exact split requires specific amounts for each member", http.StatusBadRequest)
		return
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO group_expenses (group_id, paid_by, amount, description, split_type, date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, groupID, payerID, req.Amount, req.Description, req.SplitType, expenseDate.Format(dateTimeLayout))
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to create expense: %v", err)
		utils.WriteError(w, "failed to create expense", http.StatusInternalServerError)
		return
	}

	expenseID, _ := res.LastInsertId()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO group_expense_splits (expense_id, user_id, amount) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to prepare statement: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer stmt.Close()

	for _, s := range splits {
		if _, err := stmt.ExecContext(ctx, expenseID, s.UserID, s.Amount); err != nil {
			tx.Rollback()
			utils.Logger.Errorf("failed to save expense split: %v", err)
			utils.WriteError(w, "failed to save expense splits", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		utils.Logger.Errorf("failed to commit transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Side effects run after commit and never fail the write.
	for _, m := range aggregate.Members {
		if m.UserID == payerID {
			continue
		}
		services.DispatchNotification(db, services.NotificationPayload{
			UserID: m.UserID,
			Email:  m.Email,
			Type:   models.NotificationGroupTransaction,
			Title:  fmt.Sprintf("New expense in \"%s\"", aggregate.Group.Name),
			Body:   fmt.Sprintf("%s added \"%s\" — %s", payer.displayName(), req.Description, req.Amount.StringFixed(2)),
			Data: map[string]interface{}{
				"group_id":            groupID,
				"group_name":          aggregate.Group.Name,
				"expense_id":          expenseID,
				"expense_description": req.Description,
				"expense_amount":      req.Amount,
				"paid_by":             payer.displayName(),
			},
		})
	}

	services.NotifyExpenseAdded(groupID, map[string]interface{}{
		"id":          expenseID,
		"group_id":    groupID,
		"description": req.Description,
		"amount":      req.Amount,
		"paid_by":     payer.displayName(),
	})

	type splitResponse struct {
		UserID int             `json:"user_id"`
		Amount decimal.Decimal `json:"amount"`
	}
	splitList := make([]splitResponse, 0, len(splits))
	for _, s := range splits {
		splitList = append(splitList, splitResponse{UserID: s.UserID, Amount: s.Amount})
	}

	response := map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"expense_id":  expenseID,
			"group_id":    groupID,
			"paid_by":     payerID,
			"amount":      req.Amount,
			"description": req.Description,
			"split_type":  req.SplitType,
			"date":        expenseDate.Format(dateTimeLayout),
			"splits":      splitList,
		},
	}

	utils.WriteJSONStatus(w, response, http.StatusCreated)
}

// FUNC TO GET ALL GROUP EXPENSES
func GetGroupExpensesHandler(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.WriteError(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := loadGroupForMember(ctx, db, groupID, userID); err != nil {
		if errors.Is(err, errGroupNotFound) {
			utils.WriteError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to fetch group: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	rows, err := db.QueryContext(ctx, `
		SELECT e.id, e.paid_by, u.name, u.email, e.amount, e.description, e.split_type, e.date, e.created_at
		FROM group_expenses e
		JOIN users u ON e.paid_by = u.id
		WHERE e.group_id = ? AND e.deleted_at IS NULL
		ORDER BY e.date DESC
	`, groupID)
	if err != nil {
		utils.Logger.Errorf("failed to retrieve expenses: %v", err)
		utils.WriteError(w, "failed to retrieve expenses", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	type expenseWithPayer struct {
		models.GroupExpense
		Payer models.User `json:"payer"`
	}

	expenses := make([]expenseWithPayer, 0)
	expenseIndex := make(map[int]int)
	for rows.Next() {
		var e expenseWithPayer
		if err := rows.Scan(&e.ID, &e.PaidBy, &e.Payer.Name, &e.Payer.Email, &e.Amount, &e.Description, &e.SplitType, &e.Date, &e.CreatedAt); err != nil {
			utils.Logger.Errorf("error reading expenses: %v", err)
			utils.WriteError(w, "error reading expenses", http.StatusInternalServerError)
			return
		}
		e.GroupID = groupID
		e.Payer.ID = e.PaidBy
		expenseIndex[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err = rows.Err(); err != nil {
		utils.WriteError(w, "error finalizing expenses read", http.StatusInternalServerError)
		return
	}

	splitsByExpense := make(map[int][]models.GroupExpenseSplit)
	if len(expenses) > 0 {
		placeholders := make([]string, 0, len(expenses))
		args := make([]interface{}, 0, len(expenses))
		for id := range expenseIndex {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}

		splitRows, err := db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, expense_id, user_id, amount
			FROM group_expense_splits
			WHERE expense_id IN (%s)
			ORDER BY id ASC
		`, strings.Join(placeholders, ",")), args...)
		if err != nil {
			utils.Logger.Errorf("failed to retrieve expense splits: %v", err)
			utils.WriteError(w, "failed to retrieve expense splits", http.StatusInternalServerError)
			return
		}
		defer splitRows.Close()

		for splitRows.Next() {
			var s models.GroupExpenseSplit
			if err := splitRows.Scan(&s.ID, &s.ExpenseID, &s.UserID, &s.Amount); err != nil {
				utils.Logger.Errorf("error scanning split: %v", err)
				utils.WriteError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			splitsByExpense[s.ExpenseID] = append(splitsByExpense[s.ExpenseID], s)
		}
		if err := splitRows.Err(); err != nil {
			utils.WriteError(w, "error reading expense splits", http.StatusInternalServerError)
			return
		}
	}

	type expenseResponse struct {
		expenseWithPayer
		Splits []models.GroupExpenseSplit `json:"splits"`
	}
	data := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		data = append(data, expenseResponse{expenseWithPayer: e, Splits: splitsByExpense[e.ID]})
	}

	response := struct {
		Status string            `json:"status"`
		Count  int               `json:"count"`
		Data   []expenseResponse `json:"data"`
	}{
		Status: "success",
		Count:  len(data),
		Data:   data,
	}

	utils.WriteJSON(w, response)
}

// FUNC TO GET THE RESOLVED DEBTS FOR A GROUP
func GetGroupDebtsHandler(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.WriteError(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := loadGroupForMember(ctx, db, groupID, userID); err != nil {
		if errors.Is(err, errGroupNotFound) {
			utils.WriteError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to fetch group: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	expenses, settlements, err := ledger.Fetch(ctx, db, groupID)
	if err != nil {
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	debts := settle.ComputeBalances(expenses, settlements).Resolve()

	users, err := fetchDebtUsers(ctx, db, debts)
	if err != nil {
		utils.Logger.Errorf("failed to load debt participants: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	type debtResponse struct {
		From   models.User     `json:"from"`
		To     models.User     `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}

	data := make([]debtResponse, 0, len(debts))
	for _, d := range debts {
		// A participant whose users row disappeared still gets an ID, so
		// the client never renders a fully blank party.
		from, ok := users[d.FromUserID]
		if !ok {
			from = models.User{ID: d.FromUserID}
		}
		to, ok := users[d.ToUserID]
		if !ok {
			to = models.User{ID: d.ToUserID}
		}
		data = append(data, debtResponse{
			From:   from,
			To:     to,
			Amount: d.Amount,
		})
	}

	response := struct {
		Status string         `json:"status"`
		Count  int            `json:"count"`
		Data   []debtResponse `json:"data"`
	}{
		Status: "success",
		Count:  len(data),
		Data:   data,
	}

	utils.WriteJSON(w, response)
}

// FUNC TO RECORD A SETTLEMENT BETWEEN TWO MEMBERS
func SettleUpHandler(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.WriteError(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	type request struct {
		FromUserID int             `json:"from_user_id"`
		ToUserID   int             `json:"to_user_id"`
		Amount     decimal.Decimal `json:"amount"`
	}

	var req request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.FromUserID == 0 || req.ToUserID == 0 {
		utils.WriteError(w, "from_user_id and to_user_id are required", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		utils.WriteError(w, "amount must be greater than 0", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// The membership check and the insert share one transaction, same as
	// the expense path.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to start transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Only the acting caller's membership is checked. The settlement is a
	// free-form ledger fact: any member may record it for any pair, and
	// the amount is not capped by the currently computed debt.
	if _, err := loadGroupForMember(ctx, tx, groupID, userID); err != nil {
		tx.Rollback()
		if errors.Is(err, errGroupNotFound) {
			utils.WriteError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to fetch group: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	now := time.Now().Format(dateTimeLayout)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO settlements (group_id, from_user, to_user, amount, date)
		VALUES (?, ?, ?, ?, ?)
	`, groupID, req.FromUserID, req.ToUserID, req.Amount, now)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to record settlement: %v", err)
		utils.WriteError(w, "failed to record settlement", http.StatusInternalServerError)
		return
	}

	settlementID, _ := res.LastInsertId()

	if err = tx.Commit(); err != nil {
		utils.Logger.Errorf("failed to commit transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	services.NotifyDebtSettled(groupID, map[string]interface{}{
		"id":           settlementID,
		"group_id":     groupID,
		"from_user_id": req.FromUserID,
		"to_user_id":   req.ToUserID,
		"amount":       req.Amount,
	})

	response := map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"settlement_id": settlementID,
			"group_id":      groupID,
			"from_user_id":  req.FromUserID,
			"to_user_id":    req.ToUserID,
			"amount":        req.Amount,
			"date":          now,
		},
	}

	utils.WriteJSONStatus(w, response, http.StatusCreated)
}

// fetchDebtUsers hydrates the identities referenced by a settle-up plan.
func fetchDebtUsers(ctx context.Context, q querier, debts []settle.Debt) (map[int]models.User, error) {
	users := make(map[int]models.User)
	ids := make(map[int]struct{})
	for _, d := range debts {
		ids[d.FromUserID] = struct{}{}
		ids[d.ToUserID] = struct{}{}
	}
	if len(ids) == 0 {
		return users, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, username, email FROM users WHERE id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u        models.User
			username sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Name, &username, &u.Email); err != nil {
			return nil, err
		}
		u.Username = username.String
		users[u.ID] = u
	}
	return users, rows.Err()
}
