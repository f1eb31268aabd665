package groups

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"splitkit/internal/models"
	"splitkit/pkg/utils"
)

// querier is satisfied by *sql.DB and *sql.Tx so the membership gate can
// run inside the same transaction as the write it guards.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// errGroupNotFound covers both a missing group and a non-member caller.
// Non-members get the same 404 so group existence is not revealed.
var errGroupNotFound = errors.New("group not found or you are not a member")

type MemberDetails struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	IsHidden bool   `json:"is_hidden,omitempty"`
	JoinedAt string `json:"joined_at,omitempty"`
}

type groupAggregate struct {
	Group   models.Group
	Members []MemberDetails
}

func (a *groupAggregate) member(userID int) *MemberDetails {
	for i := range a.Members {
		if a.Members[i].UserID == userID {
			return &a.Members[i]
		}
	}
	return nil
}

func (a *groupAggregate) memberIDs() []int {
	ids := make([]int, 0, len(a.Members))
	for _, m := range a.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (m *MemberDetails) displayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Email
}

func requesterID(w http.ResponseWriter, r *http.Request) (int, bool) {
	idFloat, ok := r.Context().Value(utils.ContextKey("userId")).(float64)
	if !ok {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return int(idFloat), true
}

func loadGroupMembers(ctx context.Context, q querier, groupID int) ([]MemberDetails, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT gm.id, gm.user_id, gm.is_hidden, gm.joined_at, u.name, u.username, u.email
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = ? AND gm.deleted_at IS NULL
		ORDER BY gm.joined_at ASC, gm.id ASC
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]MemberDetails, 0)
	for rows.Next() {
		var (
			m        MemberDetails
			username sql.NullString
			joinedAt sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.IsHidden, &joinedAt, &m.Name, &username, &m.Email); err != nil {
			return nil, err
		}
		m.Username = username.String
		m.JoinedAt = joinedAt.String
		members = append(members, m)
	}
	return members, rows.Err()
}

// loadGroupForMember fetches the group with its full hydrated roster and
// enforces the membership gate every group operation goes through.
func loadGroupForMember(ctx context.Context, q querier, groupID, userID int) (*groupAggregate, error) {
	var group models.Group
	err := q.QueryRowContext(ctx, `
		SELECT id, name, code, created_by, created_at
		FROM groups
		WHERE id = ? AND deleted_at IS NULL
	`, groupID).Scan(&group.ID, &group.Name, &group.Code, &group.CreatedBy, &group.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errGroupNotFound
		}
		return nil, err
	}

	members, err := loadGroupMembers(ctx, q, groupID)
	if err != nil {
		return nil, err
	}

	aggregate := &groupAggregate{Group: group, Members: members}
	if aggregate.member(userID) == nil {
		return nil, errGroupNotFound
	}
	return aggregate, nil
}
