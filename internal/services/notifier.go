package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"splitkit/pkg/utils"
)

type NotificationPayload struct {
	UserID int
	Email  string
	Type   string
	Title  string
	Body   string
	Data   map[string]interface{}
}

// DispatchNotification stores an in-app notification row and sends the
// matching email. Both legs are best-effort: failures are logged and the
// caller's write is never affected.
func DispatchNotification(db *sql.DB, payload NotificationPayload) {
	data, err := json.Marshal(payload.Data)
	if err != nil {
		utils.Logger.Errorf("failed to encode notification data for user %d: %v", payload.UserID, err)
		data = []byte("{}")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, title, body, data)
		VALUES (?, ?, ?, ?, ?)
	`, payload.UserID, payload.Type, payload.Title, payload.Body, string(data))
	if err != nil {
		utils.Logger.Errorf("failed to store notification for user %d: %v", payload.UserID, err)
	}

	if payload.Email == "" {
		return
	}

	go func(email, title, body string) {
		if err := utils.SendNotificationEmail(email, title, body); err != nil {
			utils.Logger.Errorf("failed to send notification email to %s: %v", email, err)
		}
	}(payload.Email, payload.Title, payload.Body)
}
