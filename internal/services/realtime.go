package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"splitkit/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Realtime publishes group-scoped events over redis pub/sub. Clients
// subscribe to the channel "group:{id}". All publishes are best-effort:
// a failed or missing broadcaster never fails the write that caused it.
var Realtime *RealtimeBroadcaster

type RealtimeBroadcaster struct {
	client *redis.Client
}

const (
	EventExpenseAdded = "expense_added"
	EventDebtSettled  = "debt_settled"
	EventMemberJoined = "member_joined"
)

type realtimeEvent struct {
	Event   string      `json:"event"`
	GroupID int         `json:"group_id"`
	Data    interface{} `json:"data"`
}

// InitRealtime connects the package-level broadcaster. When redisURL is
// empty the broadcaster stays nil and every notify call is a no-op.
func InitRealtime(redisURL string) error {
	if redisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return err
	}

	Realtime = &RealtimeBroadcaster{client: client}
	return nil
}

func CloseRealtime() {
	if Realtime != nil {
		Realtime.client.Close()
	}
}

func NotifyExpenseAdded(groupID int, payload interface{}) {
	publish(EventExpenseAdded, groupID, payload)
}

func NotifyDebtSettled(groupID int, payload interface{}) {
	publish(EventDebtSettled, groupID, payload)
}

func NotifyMemberJoined(groupID int, payload interface{}) {
	publish(EventMemberJoined, groupID, payload)
}

func publish(event string, groupID int, payload interface{}) {
	if Realtime == nil {
		return
	}

	data, err := json.Marshal(realtimeEvent{
		Event:   event,
		GroupID: groupID,
		Data:    payload,
	})
	if err != nil {
		utils.Logger.Errorf("failed to encode %s event for group %d: %v", event, groupID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := fmt.Sprintf("group:%d", groupID)
	if err := Realtime.client.Publish(ctx, channel, data).Err(); err != nil {
		utils.Logger.Errorf("failed to publish %s event to %s: %v", event, channel, err)
	}
}
