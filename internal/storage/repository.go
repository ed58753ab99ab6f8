package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertSampleSQL = `INSERT INTO history (timestamp, price) VALUES ($1, $2);`

	listLatestSamplesSQL = `SELECT timestamp, price FROM (
        SELECT timestamp, price
        FROM history
        ORDER BY timestamp DESC
        LIMIT $1
    ) recent
    ORDER BY timestamp;`

	listSamplesSinceSQL = `SELECT timestamp, price
    FROM history
    WHERE timestamp >= $1
    ORDER BY timestamp;`

	countSamplesSQL = `SELECT COUNT(*) FROM history;`

	upsertSubscriptionSQL = `INSERT INTO subscriptions (
        subscriber_id, threshold, last_seen_price, notified
    ) VALUES ($1, $2, $3, $4)
    ON CONFLICT (subscriber_id) DO UPDATE
    SET threshold       = EXCLUDED.threshold,
        last_seen_price = EXCLUDED.last_seen_price,
        notified        = EXCLUDED.notified;`

	deleteSubscriptionSQL = `DELETE FROM subscriptions WHERE subscriber_id = $1;`

	listSubscriptionsSQL = `SELECT subscriber_id, threshold, last_seen_price, notified
    FROM subscriptions
    ORDER BY subscriber_id;`

	updateSubscriptionStateSQL = `UPDATE subscriptions
    SET last_seen_price = $2, notified = $3
    WHERE subscriber_id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for price-history persistence.
type SampleStore interface {
	AppendSample(ctx context.Context, sample Sample) error
	LatestSamples(ctx context.Context, limit int) ([]Sample, error)
	SamplesSince(ctx context.Context, from time.Time) ([]Sample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// SubscriptionStore defines operations for subscriber alert records.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub Subscription) error
	DeleteSubscription(ctx context.Context, subscriberID string) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	// UpdateSubscriptionState writes both engine-owned fields in one statement;
	// it is reserved for the alert commit step.
	UpdateSubscriptionState(ctx context.Context, subscriberID string, lastSeenPrice decimal.Decimal, notified bool) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to price history and subscriptions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// AppendSample durably inserts one observation. Duplicate timestamps violate
// the primary key and surface as an error; the caller decides whether to skip
// the cycle.
func (s *Store) AppendSample(ctx context.Context, sample Sample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertSampleSQL, sample.Timestamp, sample.Price.String()); execErr != nil {
		return fmt.Errorf("append sample: %w", execErr)
	}
	return nil
}

// LatestSamples returns up to limit most recent samples in ascending
// timestamp order.
func (s *Store) LatestSamples(ctx context.Context, limit int) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listLatestSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list latest samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// SamplesSince returns samples at or after from, in ascending timestamp order.
func (s *Store) SamplesSince(ctx context.Context, from time.Time) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesSinceSQL, from)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples since: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// CountSamples counts stored observations.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// UpsertSubscription replaces or inserts the full record keyed by subscriber.
func (s *Store) UpsertSubscription(ctx context.Context, sub Subscription) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, upsertSubscriptionSQL,
		sub.SubscriberID,
		sub.Threshold.String(),
		sub.LastSeenPrice.String(),
		sub.Notified,
	)
	if execErr != nil {
		return fmt.Errorf("upsert subscription: %w", execErr)
	}
	return nil
}

// DeleteSubscription removes a subscriber's record. Deleting an unknown
// subscriber is not an error.
func (s *Store) DeleteSubscription(ctx context.Context, subscriberID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSubscriptionSQL, subscriberID); execErr != nil {
		return fmt.Errorf("delete subscription: %w", execErr)
	}
	return nil
}

// ListSubscriptions returns every subscription record.
func (s *Store) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSubscriptionsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list subscriptions: %w", queryErr)
	}
	defer rows.Close()

	subs := make([]Subscription, 0)
	for rows.Next() {
		sub, scanErr := scanSubscription(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		subs = append(subs, sub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subs, nil
}

// UpdateSubscriptionState commits the engine-owned fields for one subscriber.
// Both fields travel in a single UPDATE so a failure leaves neither changed.
func (s *Store) UpdateSubscriptionState(ctx context.Context, subscriberID string, lastSeenPrice decimal.Decimal, notified bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateSubscriptionStateSQL, subscriberID, lastSeenPrice.String(), notified)
	if execErr != nil {
		return fmt.Errorf("update subscription state: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func collectSamples(rows pgx.Rows, sizeHint int) ([]Sample, error) {
	samples := make([]Sample, 0, sizeHint)
	for rows.Next() {
		var (
			ts       time.Time
			priceStr string
		)
		if err := rows.Scan(&ts, &priceStr); err != nil {
			return nil, err
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse price: %w", convErr)
		}
		samples = append(samples, Sample{Timestamp: ts, Price: price})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanSubscription(rows pgx.Rows) (Subscription, error) {
	var (
		id           string
		thresholdStr string
		lastSeenStr  *string
		notified     *bool
	)
	if err := rows.Scan(&id, &thresholdStr, &lastSeenStr, &notified); err != nil {
		return Subscription{}, err
	}

	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		return Subscription{}, fmt.Errorf("parse threshold: %w", err)
	}

	sub := Subscription{SubscriberID: id, Threshold: threshold}
	if lastSeenStr != nil {
		lastSeen, convErr := decimal.NewFromString(*lastSeenStr)
		if convErr != nil {
			return Subscription{}, fmt.Errorf("parse last seen price: %w", convErr)
		}
		sub.LastSeenPrice = lastSeen
	}
	if notified != nil {
		sub.Notified = *notified
	}
	return sub, nil
}
