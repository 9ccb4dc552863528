package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"posturewatch/internal/types"
)

// DefaultListLimit caps GET /v1/alerts when the caller sets no limit.
const DefaultListLimit = 100

const alertColumns = `id, user_id, title, body, image, read, created_at`

// AlertRepository provides data access for the alerts table. Every query is
// scoped by user_id: a user can only see and change their own alerts.
type AlertRepository struct {
	db    DBTX
	clock types.Clock
}

// NewAlertRepository creates an AlertRepository backed by db (pool or tx).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db, clock: types.RealClock{}}
}

// Create inserts a new unread alert owned by userID and returns the stored
// record. The id is a server-generated UUID.
func (r *AlertRepository) Create(ctx context.Context, userID string, in types.AlertInput) (*types.Alert, error) {
	image, err := compressImage(in.Image)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to compress alert image", err)
	}

	a := &types.Alert{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  in.Title,
		Body:   in.Body,
		Image:  in.Image,
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO alerts (id, user_id, title, body, image, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		 RETURNING created_at`,
		a.ID, a.UserID, a.Title, a.Body, image, r.clock.Now(),
	)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create alert", err)
	}
	return a, nil
}

// ListByUser returns the user's alerts, newest first.
func (r *AlertRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*types.Alert, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+`
		 FROM alerts
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts", err)
	}
	defer rows.Close()

	alerts := make([]*types.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate alerts", err)
	}
	return alerts, nil
}

// MarkRead sets read on one alert of the user and returns it. An alert that
// does not exist or belongs to someone else is not_found_alert.
func (r *AlertRepository) MarkRead(ctx context.Context, userID, alertID string) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE alerts SET read = TRUE
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+alertColumns,
		alertID, userID,
	)
	a, err := scanAlert(row)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && errors.Is(appErr.Err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
		}
		return nil, err
	}
	return a, nil
}

// MarkAllRead marks every unread alert of the user read and returns how many
// changed.
func (r *AlertRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE alerts SET read = TRUE WHERE user_id = $1 AND read = FALSE`,
		userID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark alerts read", err)
	}
	return tag.RowsAffected(), nil
}

func scanAlert(row pgx.Row) (*types.Alert, error) {
	var (
		a         types.Alert
		image     []byte
		createdAt time.Time
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Body, &image, &a.Read, &createdAt); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert", err)
	}

	img, err := decompressImage(image)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "stored alert image is corrupt", err)
	}
	a.Image = img
	a.CreatedAt = createdAt.UTC()
	return &a, nil
}
