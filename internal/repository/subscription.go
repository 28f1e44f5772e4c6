package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/cartloop/recurbill/internal/domain/subscription"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/jackc/pgx/v5"
)

type subscriptionRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(db postgres.IClient, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: log}
}

const subscriptionColumns = `
	id, lineage_id, customer_id, order_line_id, payment_method_id,
	amount, currency, scheduled_at, schedule_status, comments,
	snapshot, transaction_id, version,
	status, created_at, updated_at, created_by, updated_by`

func (r *subscriptionRepository) scanRow(row pgx.Row) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var snapshot []byte
	err := row.Scan(
		&sub.ID, &sub.LineageID, &sub.CustomerID, &sub.OrderLineID, &sub.PaymentMethodID,
		&sub.Amount, &sub.Currency, &sub.ScheduledAt, &sub.ScheduleStatus, &sub.Comments,
		&snapshot, &sub.TransactionID, &sub.Version,
		&sub.BaseModel.Status, &sub.CreatedAt, &sub.UpdatedAt, &sub.CreatedBy, &sub.UpdatedBy,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierr.NewError("subscription not found").
				WithHint("Subscription not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read subscription").
			Mark(ierr.ErrDatabase)
	}

	sub.Snapshot, err = subscription.UnmarshalSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	snapshot, err := subscription.MarshalSnapshot(sub.Snapshot)
	if err != nil {
		return err
	}

	_, err = r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		sub.ID, sub.LineageID, sub.CustomerID, sub.OrderLineID, sub.PaymentMethodID,
		sub.Amount, sub.Currency, sub.ScheduledAt, sub.ScheduleStatus, sub.Comments,
		snapshot, sub.TransactionID, sub.Version,
		sub.BaseModel.Status, sub.CreatedAt, sub.UpdatedAt, sub.CreatedBy, sub.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE id = $1`, id)
	return r.scanRow(row)
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	snapshot, err := subscription.MarshalSnapshot(sub.Snapshot)
	if err != nil {
		return err
	}
	sub.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE subscriptions
		SET customer_id = $2, order_line_id = $3, payment_method_id = $4,
			amount = $5, currency = $6, scheduled_at = $7, schedule_status = $8,
			comments = $9, snapshot = $10, transaction_id = $11,
			version = version + 1, status = $12, updated_at = $13, updated_by = $14
		WHERE id = $1 AND version = $15`,
		sub.ID, sub.CustomerID, sub.OrderLineID, sub.PaymentMethodID,
		sub.Amount, sub.Currency, sub.ScheduledAt, sub.ScheduleStatus,
		sub.Comments, snapshot, sub.TransactionID,
		sub.BaseModel.Status, sub.UpdatedAt, sub.UpdatedBy, sub.Version,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if tag.RowsAffected() == 0 {
		return ierr.NewError("subscription version conflict").
			WithHint("Subscription was modified concurrently").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	sub.Version++
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE 1=1`
	args := []any{}
	idx := 1

	if filter != nil {
		if filter.CustomerID != "" {
			query += ` AND customer_id = $` + itoa(idx)
			args = append(args, filter.CustomerID)
			idx++
		}
		if filter.LineageID != "" {
			query += ` AND lineage_id = $` + itoa(idx)
			args = append(args, filter.LineageID)
			idx++
		}
		if len(filter.ScheduleStatus) > 0 {
			query += ` AND schedule_status = ANY($` + itoa(idx) + `)`
			statuses := make([]string, len(filter.ScheduleStatus))
			for i, s := range filter.ScheduleStatus {
				statuses[i] = s.String()
			}
			args = append(args, statuses)
			idx++
		}
		if filter.DueBefore != nil {
			query += ` AND scheduled_at <= $` + itoa(idx)
			args = append(args, *filter.DueBefore)
			idx++
		}
	}

	query += ` ORDER BY scheduled_at ASC, created_at ASC`
	if filter != nil && filter.Limit > 0 {
		query += ` LIMIT $` + itoa(idx)
		args = append(args, filter.Limit)
	}

	return r.queryRows(ctx, query, args...)
}

func (r *subscriptionRepository) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	return r.queryRows(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE schedule_status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC`,
		types.ScheduleStatusScheduled, asOf,
	)
}

func (r *subscriptionRepository) queryRows(ctx context.Context, query string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

// TransitionStatus flips a row between schedule statuses inside one
// transaction, locking the row first so two concurrent cron runs cannot both
// bill the same subscription.
func (r *subscriptionRepository) TransitionStatus(ctx context.Context, id string, from, to types.ScheduleStatus, comment string) (bool, error) {
	transitioned := false
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		row := r.db.Querier(ctx).QueryRow(ctx, `
			SELECT `+subscriptionColumns+`
			FROM subscriptions WHERE id = $1 FOR UPDATE`, id)
		sub, err := r.scanRow(row)
		if err != nil {
			return err
		}

		if sub.ScheduleStatus != from {
			// another invocation got there first
			return nil
		}

		sub.ScheduleStatus = to
		if comment != "" && !sub.HasComment(comment) {
			sub.AppendComment(comment)
		}
		if err := r.Update(ctx, sub); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	return transitioned, err
}

func (r *subscriptionRepository) UpdateSnapshot(ctx context.Context, id string, snapshot *subscription.AttributeSnapshot) error {
	data, err := subscription.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}
	tag, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE subscriptions SET snapshot = $2, updated_at = $3 WHERE id = $1`,
		id, data, time.Now().UTC(),
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription snapshot").
			Mark(ierr.ErrDatabase)
	}
	if tag.RowsAffected() == 0 {
		return ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) CompletedCycleCount(ctx context.Context, lineageID string) (int, error) {
	var count int
	err := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM subscriptions
		WHERE lineage_id = $1 AND schedule_status = $2`,
		lineageID, types.ScheduleStatusComplete,
	).Scan(&count)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count completed cycles").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *subscriptionRepository) FailureCountSinceLastComplete(ctx context.Context, lineageID string) (int, error) {
	var count int
	err := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM subscriptions
		WHERE lineage_id = $1 AND schedule_status = $2
		  AND created_at > COALESCE(
			(SELECT MAX(created_at) FROM subscriptions
			 WHERE lineage_id = $1 AND schedule_status = $3),
			'-infinity'::timestamptz)`,
		lineageID, types.ScheduleStatusFailed, types.ScheduleStatusComplete,
	).Scan(&count)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count failures").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
