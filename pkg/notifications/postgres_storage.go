package notifications

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool PostgresStorage needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage stores notifications in the notifications table.
type PostgresStorage struct {
	db DB
}

// NewPostgresStorage wraps a connection pool.
func NewPostgresStorage(db DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

var (
	_ Storage = (*PostgresStorage)(nil)

	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
)

func (s *PostgresStorage) Create(ctx context.Context, n Notification) error {
	if err := validate(n); err != nil {
		return err
	}
	query, args, err := psql.Insert("notifications").
		Columns("id", "user_id", "kind", "title", "message", "link", "read_at", "created_at").
		Values(n.ID, n.UserID, n.Kind, n.Title, n.Message, n.Link, n.ReadAt, n.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	q := psql.Select("id", "user_id", "kind", "title", "message", "link", "read_at", "created_at").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC")
	if opts.OnlyUnread {
		q = q.Where(sq.Eq{"read_at": nil})
	}
	if len(opts.Kinds) > 0 {
		q = q.Where(sq.Eq{"kind": opts.Kinds})
	}
	if opts.Since != nil {
		q = q.Where(sq.GtOrEq{"created_at": *opts.Since})
	}
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.Link, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = n.ReadAt != nil
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, userID string, at time.Time, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return nil
	}
	query, args, err := psql.Update("notifications").
		Set("read_at", at).
		Where(sq.Eq{"user_id": userID, "id": notifIDs, "read_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark read: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) ExistsSince(ctx context.Context, userID, kind string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND kind = $2 AND created_at >= $3)`,
		userID, kind, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification history: %w", err)
	}
	return exists, nil
}
