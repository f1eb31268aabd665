package cron

import (
	"context"
	"database/sql"
	"fmt"
	"splitkit/internal/repositories/ledger"
	"splitkit/internal/settle"
	"splitkit/pkg/utils"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

func StartCronJob(db *sql.DB) *cron.Cron {
	c := cron.New()

	// Runs daily at midnight — remind members who still owe money
	_, err := c.AddFunc("0 0 * * *", func() {
		err := SendReminderEmailsToDebtors(db)
		if err != nil {
			utils.Logger.Errorf("Cron job failed to send reminder emails: %v", err)
		}
	})
	if err != nil {
		utils.Logger.Errorf("Failed to schedule debtor reminder job: %v", err)
	}

	c.Start()
	utils.Logger.Info("Cron jobs started (debtor reminders daily at midnight)")
	return c
}

type reminderTarget struct {
	email        string
	name         string
	amount       decimal.Decimal
	creditorName string
	groupName    string
}

// -------------------------------------------------------------
// Send daily reminders to debtors (email sends run concurrently)
// -------------------------------------------------------------
func SendReminderEmailsToDebtors(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	groupIDs, groupNames, err := activeGroups(ctx, db)
	if err != nil {
		return err
	}

	var targets []reminderTarget
	for _, groupID := range groupIDs {
		debts, err := resolveGroupDebts(ctx, db, groupID)
		if err != nil {
			utils.Logger.Errorf("Failed to resolve debts for group %d: %v", groupID, err)
			continue
		}
		if len(debts) == 0 {
			continue
		}

		identities, err := memberIdentities(ctx, db, groupID)
		if err != nil {
			utils.Logger.Errorf("Failed to load members for group %d: %v", groupID, err)
			continue
		}

		for _, d := range debts {
			debtor, ok := identities[d.FromUserID]
			if !ok || debtor.email == "" {
				continue
			}
			creditor := identities[d.ToUserID]
			targets = append(targets, reminderTarget{
				email:        debtor.email,
				name:         debtor.name,
				amount:       d.Amount,
				creditorName: creditor.name,
				groupName:    groupNames[groupID],
			})
		}
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 10)

	for _, t := range targets {
		wg.Add(1)
		go func(t reminderTarget) {
			defer wg.Done()

			if err := utils.SendDebtReminderEmail(
				t.email,
				t.name,
				t.amount.StringFixed(2),
				t.creditorName,
				t.groupName,
			); err != nil {
				errChan <- fmt.Errorf("failed to send reminder email to %s: %v", t.email, err)
				return
			}

			utils.Logger.Infof("📧 Sent reminder to %s (%s) — %s owed to %s in '%s'",
				t.name, t.email, t.amount.StringFixed(2), t.creditorName, t.groupName)
		}(t)
	}

	wg.Wait()
	close(errChan)

	for e := range errChan {
		utils.Logger.Error(e)
	}

	utils.Logger.Info("✅ Finished sending all debtor reminder emails.")
	return nil
}

func activeGroups(ctx context.Context, db *sql.DB) ([]int, map[int]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name FROM groups WHERE deleted_at IS NULL ORDER BY id ASC
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var ids []int
	names := make(map[int]string)
	for rows.Next() {
		var (
			id   int
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		names[id] = name
	}
	return ids, names, rows.Err()
}

// resolveGroupDebts replays the group's full ledger through the settle
// engine, exactly as the debts endpoint does.
func resolveGroupDebts(ctx context.Context, db *sql.DB, groupID int) ([]settle.Debt, error) {
	expenses, settlements, err := ledger.Fetch(ctx, db, groupID)
	if err != nil {
		return nil, err
	}
	return settle.ComputeBalances(expenses, settlements).Resolve(), nil
}

type memberIdentity struct {
	name  string
	email string
}

func memberIdentities(ctx context.Context, db *sql.DB, groupID int) (map[int]memberIdentity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT gm.user_id, u.name, u.email
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = ? AND gm.deleted_at IS NULL
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	identities := make(map[int]memberIdentity)
	for rows.Next() {
		var (
			userID int
			m      memberIdentity
		)
		if err := rows.Scan(&userID, &m.name, &m.email); err != nil {
			return nil, err
		}
		if m.name == "" {
			m.name = m.email
		}
		identities[userID] = m
	}
	return identities, rows.Err()
}
