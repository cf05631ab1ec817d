package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNoAdmins = errors.New("no administrator accounts found")

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgDispatcher persists notifications to Postgres and drops a change hint on
// the feed after each write so open UIs refresh their badge counts.
type PgDispatcher struct {
	db   DB
	feed *ChangeFeed
}

func NewPgDispatcher(db DB, feed *ChangeFeed) *PgDispatcher {
	return &PgDispatcher{db: db, feed: feed}
}

func (d *PgDispatcher) NotifyUser(ctx context.Context, userID uuid.UUID, m Message) error {
	if err := d.insert(ctx, userID, m); err != nil {
		return err
	}
	d.feed.Publish(ctx, "notifications")
	return nil
}

func (d *PgDispatcher) NotifyAdmins(ctx context.Context, m Message) error {
	admins, err := d.adminIDs(ctx)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return ErrNoAdmins
	}

	for _, id := range admins {
		if err := d.insert(ctx, id, m); err != nil {
			return fmt.Errorf("notify admin %s: %w", id, err)
		}
	}

	d.feed.Publish(ctx, "notifications")
	return nil
}

func (d *PgDispatcher) insert(ctx context.Context, userID uuid.UUID, m Message) error {
	var data []byte
	if m.Data != nil {
		var err error
		data, err = json.Marshal(m.Data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
	}

	_, err := d.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, now())
	`, uuid.New(), userID, m.Type, m.Title, m.Body, data)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (d *PgDispatcher) adminIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := d.db.Query(ctx, `
		SELECT id FROM user_profiles WHERE role = 'admin'
	`)
	if err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
