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
	"splitkit/internal/repositories/sqlconnect"
	"splitkit/internal/services"
	"splitkit/pkg/utils"

	"github.com/go-sql-driver/mysql"
)

const groupCodeMaxAttempts = 5

// FUNC TO CREATE A GROUP
func CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	type request struct {
		Name string `json:"name"`
	}

	var req request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		utils.WriteError(w, "group name is required", http.StatusBadRequest)
		return
	}
	if len(req.Name) > 100 {
		utils.WriteError(w, "group name too long", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to start transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// The join code carries a unique index; retry on collision instead of
	// assuming six random characters never repeat.
	var groupID int64
	inserted := false
	for attempt := 0; attempt < groupCodeMaxAttempts; attempt++ {
		code, err := utils.GenerateGroupCode()
		if err != nil {
			tx.Rollback()
			utils.Logger.Errorf("failed to generate group code: %v", err)
			utils.WriteError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		res, err := tx.ExecContext(ctx, "INSERT INTO groups (name, code, created_by) VALUES (?, ?, ?)", req.Name, code, userID)
		if err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
				continue
			}
			tx.Rollback()
			utils.Logger.Errorf("failed to create group: %v", err)
			utils.WriteError(w, "failed to create group, try again later!", http.StatusInternalServerError)
			return
		}

		groupID, err = res.LastInsertId()
		if err != nil {
			tx.Rollback()
			utils.Logger.Errorf("failed to get last inserted ID: %v", err)
			utils.WriteError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		inserted = true
		break
	}

	if !inserted {
		tx.Rollback()
		utils.Logger.Errorf("exhausted %d group code attempts", groupCodeMaxAttempts)
		utils.WriteError(w, "failed to create group, try again later!", http.StatusInternalServerError)
		return
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO group_members (group_id, user_id) VALUES (?, ?)", groupID, userID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to add group creator as member: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err = tx.Commit(); err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to commit transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	aggregate, err := loadGroupForMember(ctx, db, int(groupID), userID)
	if err != nil {
		utils.Logger.Errorf("failed to reload created group: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	response := struct {
		Status  string          `json:"status"`
		Group   models.Group    `json:"group"`
		Members []MemberDetails `json:"members"`
	}{
		Status:  "success",
		Group:   aggregate.Group,
		Members: aggregate.Members,
	}

	utils.WriteJSONStatus(w, response, http.StatusCreated)
}

// FUNC TO GET ALL GROUPS THE LOGGED-IN USER BELONGS TO
func GetMyGroupsHandler(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Filter by an EXISTS subquery keyed on membership. A join filter on
	// user_id would drop every other member's row from matched groups.
	rows, err := db.QueryContext(ctx, `
		SELECT g.id, g.name, g.code, g.created_by, g.created_at
		FROM groups g
		WHERE g.deleted_at IS NULL AND EXISTS (
			SELECT 1 FROM group_members gm
			WHERE gm.group_id = g.id AND gm.user_id = ? AND gm.deleted_at IS NULL
		)
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		utils.Logger.Errorf("failed to fetch groups: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	type groupWithMembers struct {
		models.Group
		Members []MemberDetails `json:"members"`
	}

	groupList := make([]groupWithMembers, 0)
	for rows.Next() {
		var g groupWithMembers
		if err := rows.Scan(&g.ID, &g.Name, &g.Code, &g.CreatedBy, &g.CreatedAt); err != nil {
			utils.Logger.Errorf("error fetching data: %v", err)
			utils.WriteError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		groupList = append(groupList, g)
	}
	if err := rows.Err(); err != nil {
		utils.Logger.Errorf("error iterating groups: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	for i := range groupList {
		members, err := loadGroupMembers(ctx, db, groupList[i].ID)
		if err != nil {
			utils.Logger.Errorf("error fetching group members: %v", err)
			utils.WriteError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		groupList[i].Members = members
	}

	response := struct {
		Status string             `json:"status"`
		Count  int                `json:"count"`
		Data   []groupWithMembers `json:"data"`
	}{
		Status: "success",
		Count:  len(groupList),
		Data:   groupList,
	}

	utils.WriteJSON(w, response)
}

// FUNC TO JOIN A GROUP BY ITS CODE
func JoinGroupByCodeHandler(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	type request struct {
		Code string `json:"code"`
	}

	var req request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if len(req.Code) != utils.GroupCodeLength {
		utils.WriteError(w, "invalid group code", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Code lookup, membership check and insert share one transaction so a
	// concurrent join or removal cannot slip between them.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to start transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var groupID int
	err = tx.QueryRowContext(ctx, "SELECT id FROM groups WHERE code = ? AND deleted_at IS NULL", req.Code).Scan(&groupID)
	if err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			utils.WriteError(w, "invalid group code", http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to look up group code: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var alreadyMember bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ? AND deleted_at IS NULL)
	`, groupID, userID).Scan(&alreadyMember)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "failed to verify group membership", http.StatusInternalServerError)
		return
	}

	// Joining twice is a no-op; hand back the group unchanged.
	if !alreadyMember {
		_, err = tx.ExecContext(ctx, "INSERT INTO group_members (group_id, user_id) VALUES (?, ?)", groupID, userID)
		if err != nil {
			tx.Rollback()
			utils.Logger.Errorf("failed to join group: %v", err)
			utils.WriteError(w, "failed to join group", http.StatusInternalServerError)
			return
		}
	}

	aggregate, err := loadGroupForMember(ctx, tx, groupID, userID)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err = tx.Commit(); err != nil {
		utils.Logger.Errorf("failed to commit transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !alreadyMember {
		joiner := aggregate.member(userID)
		notifyMemberJoined(db, aggregate, joiner, fmt.Sprintf("%s joined \"%s\" using the invite code.", joiner.displayName(), aggregate.Group.Name))
	}

	respondWithGroup(w, aggregate, http.StatusOK)
}

// FUNC TO GET A SINGLE GROUP AND ITS MEMBERS
func GetGroupByIDHandler(w http.ResponseWriter, r *http.Request) {
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

	aggregate, err := loadGroupForMember(ctx, db, groupID, userID)
	if err != nil {
		if errors.Is(err, errGroupNotFound) {
			utils.WriteError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to fetch group: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	respondWithGroup(w, aggregate, http.StatusOK)
}

// FUNC TO ADD A MEMBER BY USERNAME OR EMAIL
func AddMemberHandler(w http.ResponseWriter, r *http.Request) {
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
		UsernameOrEmail string `json:"username_or_email"`
	}

	var req request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	req.UsernameOrEmail = strings.TrimSpace(req.UsernameOrEmail)
	if req.UsernameOrEmail == "" {
		utils.WriteError(w, "username or email is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Roster read and the membership insert share one transaction so the
	// new row cannot land on a roster that changed after validation.
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

	var userToAdd models.User
	var username sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, username, email FROM users WHERE username = ? OR email = ?
	`, req.UsernameOrEmail, req.UsernameOrEmail).Scan(&userToAdd.ID, &userToAdd.Name, &username, &userToAdd.Email)
	if err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			utils.WriteError(w, "user not found", http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to look up user: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	userToAdd.Username = username.String

	if aggregate.member(userToAdd.ID) != nil {
		tx.Rollback()
		utils.WriteError(w, "user is already a member", http.StatusBadRequest)
		return
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO group_members (group_id, user_id) VALUES (?, ?)", groupID, userToAdd.ID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to add member: %v", err)
		utils.WriteError(w, "failed to add member", http.StatusInternalServerError)
		return
	}
	memberID, _ := res.LastInsertId()

	if err = tx.Commit(); err != nil {
		utils.Logger.Errorf("failed to commit transaction: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	added := &MemberDetails{ID: int(memberID), UserID: userToAdd.ID, Name: userToAdd.Name, Username: userToAdd.Username, Email: userToAdd.Email}
	notifyMemberJoined(db, aggregate, added, fmt.Sprintf("%s was added to \"%s\".", added.displayName(), aggregate.Group.Name))

	response := struct {
		Status string        `json:"status"`
		Member MemberDetails `json:"member"`
	}{
		Status: "success",
		Member: *added,
	}

	utils.WriteJSONStatus(w, response, http.StatusCreated)
}

func respondWithGroup(w http.ResponseWriter, aggregate *groupAggregate, status int) {
	response := struct {
		Status  string          `json:"status"`
		Group   models.Group    `json:"group"`
		Members []MemberDetails `json:"members"`
	}{
		Status:  "success",
		Group:   aggregate.Group,
		Members: aggregate.Members,
	}
	utils.WriteJSONStatus(w, response, status)
}

// notifyMemberJoined tells every existing member about the newcomer and
// broadcasts the event on the group channel. Best-effort only.
func notifyMemberJoined(db *sql.DB, aggregate *groupAggregate, newcomer *MemberDetails, body string) {
	title := fmt.Sprintf("%s joined \"%s\"", newcomer.displayName(), aggregate.Group.Name)

	for _, m := range aggregate.Members {
		if m.UserID == newcomer.UserID {
			continue
		}
		services.DispatchNotification(db, services.NotificationPayload{
			UserID: m.UserID,
			Email:  m.Email,
			Type:   models.NotificationGroupJoin,
			Title:  title,
			Body:   body,
			Data: map[string]interface{}{
				"group_id":   aggregate.Group.ID,
				"group_name": aggregate.Group.Name,
				"user_id":    newcomer.UserID,
			},
		})
	}

	services.NotifyMemberJoined(aggregate.Group.ID, map[string]interface{}{
		"group_id": aggregate.Group.ID,
		"user_id":  newcomer.UserID,
		"name":     newcomer.displayName(),
	})
}
