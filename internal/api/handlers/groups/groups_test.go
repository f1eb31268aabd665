package groups

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"splitkit/internal/models"
	"splitkit/internal/repositories/sqlconnect"
	"splitkit/pkg/utils"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}

	prev := sqlconnect.DB
	sqlconnect.DB = db
	t.Cleanup(func() {
		sqlconnect.DB = prev
		db.Close()
	})
	return mock
}

func authedRequest(method, target, body string, userID int) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.ContextKey("userId"), float64(userID))
	return req.WithContext(ctx)
}

func groupRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "code", "created_by", "created_at"}).
		AddRow(7, "Trip", "ABC123", 1, "2026-01-01 00:00:00")
}

func memberRows(userIDs ...int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "is_hidden", "joined_at", "name", "username", "email"})
	for i, id := range userIDs {
		rows.AddRow(i+1, id, false, "2026-01-01 00:00:00",
			fmt.Sprintf("User %d", id), fmt.Sprintf("user%d", id), fmt.Sprintf("user%d@example.com", id))
	}
	return rows
}

func TestGetGroupByID_NonMemberGets404(t *testing.T) {
	mock := newMockDB(t)

	// Group exists but the caller (user 2) is not on the roster.
	mock.ExpectQuery("FROM groups").WillReturnRows(groupRow())
	mock.ExpectQuery("FROM group_members gm").WillReturnRows(memberRows(1, 3))

	req := authedRequest(http.MethodGet, "/groups/7", "", 2)
	req.SetPathValue("id", "7")

	rec := httptest.NewRecorder()
	GetGroupByIDHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusNotFound, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "not a member") {
		t.Errorf("body %q should carry the membership-gate message", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetGroupByID_MissingGroupGets404(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery("FROM groups").WillReturnError(sql.ErrNoRows)

	req := authedRequest(http.MethodGet, "/groups/999", "", 1)
	req.SetPathValue("id", "999")

	rec := httptest.NewRecorder()
	GetGroupByIDHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestJoinGroupByCode_AlreadyMemberIsNoOp(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM groups WHERE code").
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("FROM groups").WillReturnRows(groupRow())
	mock.ExpectQuery("FROM group_members gm").WillReturnRows(memberRows(1, 2))
	mock.ExpectCommit()

	req := authedRequest(http.MethodPost, "/groups/join", `{"code":"abc123"}`, 2)
	rec := httptest.NewRecorder()
	JoinGroupByCodeHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Status string       `json:"status"`
		Group  models.Group `json:"group"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" || resp.Group.ID != 7 {
		t.Errorf("response = %+v, want success with group 7", resp)
	}

	// No INSERT was expected above: a repeat join must not write a second
	// membership row.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestJoinGroupByCode_UnknownCodeGets404(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM groups WHERE code").
		WithArgs("ZZZZZZ").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	req := authedRequest(http.MethodPost, "/groups/join", `{"code":"zzzzzz"}`, 2)
	rec := httptest.NewRecorder()
	JoinGroupByCodeHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetGroupDebts_MissingUserRowKeepsID(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery("FROM groups").WillReturnRows(groupRow())
	mock.ExpectQuery("FROM group_members gm").WillReturnRows(memberRows(1, 2))

	// User 1 paid 100 split evenly with user 2, so user 2 owes 50.
	mock.ExpectQuery("SELECT id, paid_by, amount").WillReturnRows(
		sqlmock.NewRows([]string{"id", "paid_by", "amount"}).AddRow(11, 1, "100.00"))
	mock.ExpectQuery("FROM group_expense_splits s").WillReturnRows(
		sqlmock.NewRows([]string{"expense_id", "user_id", "amount"}).
			AddRow(11, 1, "50.00").
			AddRow(11, 2, "50.00"))
	mock.ExpectQuery("FROM settlements").WillReturnRows(
		sqlmock.NewRows([]string{"from_user", "to_user", "amount"}))

	// Only user 1 still has a users row.
	mock.ExpectQuery("FROM users WHERE id IN").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "username", "email"}).
			AddRow(1, "User 1", "user1", "user1@example.com"))

	req := authedRequest(http.MethodGet, "/groups/7/debts", "", 1)
	req.SetPathValue("id", "7")

	rec := httptest.NewRecorder()
	GetGroupDebtsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Data []struct {
			From   models.User `json:"from"`
			To     models.User `json:"to"`
			Amount string      `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("got %d debts, want 1: %+v", len(resp.Data), resp.Data)
	}

	d := resp.Data[0]
	if d.From.ID != 2 {
		t.Errorf("debtor without a users row serialized as %+v, want ID 2 kept", d.From)
	}
	if d.To.ID != 1 || d.To.Name != "User 1" {
		t.Errorf("creditor = %+v, want hydrated user 1", d.To)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
