// Package postgres is the production repo.Store adapter, backed by
// pgx/v5's pooled connections.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// RetryPolicy controls the bounded retry budget every Store method applies
// around its call to the pool.
type RetryPolicy struct {
	Attempts    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	CallTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:    3,
		BaseBackoff: 50 * time.Millisecond,
		MaxBackoff:  400 * time.Millisecond,
		CallTimeout: 3 * time.Second,
	}
}

type Store struct {
	pool  *pgxpool.Pool
	log   *zap.Logger
	retry RetryPolicy
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log, retry: DefaultRetryPolicy()}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// withRetry runs op with a bounded timeout, retrying transient failures with
// exponential backoff. Context cancellation aborts immediately.
func (s *Store) withRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	backoff := s.retry.BaseBackoff
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, s.retry.CallTimeout)
		err := op(cctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		var se *repo.StoreError
		if errors.As(err, &se) && se.Kind == repo.Malformed {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < s.retry.Attempts {
			s.log.Warn("store_retry",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
			backoff *= 2
			if backoff > s.retry.MaxBackoff {
				backoff = s.retry.MaxBackoff
			}
		}
	}
	kind := repo.Unavailable
	if ctx.Err() == context.DeadlineExceeded {
		kind = repo.Timeout
	}
	return &repo.StoreError{Kind: kind, Op: name, Err: lastErr}
}

// ---- CheckStore ----

func (s *Store) ListEnabled(ctx context.Context) ([]domain.Check, error) {
	var out []domain.Check
	err := s.withRetry(ctx, "list_enabled_checks", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT check_id, owner_user_id, check_name, url, http_method,
			       request_headers, request_body, expected_status_code,
			       timeout_seconds, check_frequency_seconds, regions,
			       is_enabled, created_at_micros
			  FROM checks
			 WHERE is_enabled = true`)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			c, err := scanCheck(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) GetCheck(ctx context.Context, id uuid.UUID) (*domain.Check, error) {
	var out *domain.Check
	err := s.withRetry(ctx, "get_check", func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
			SELECT check_id, owner_user_id, check_name, url, http_method,
			       request_headers, request_body, expected_status_code,
			       timeout_seconds, check_frequency_seconds, regions,
			       is_enabled, created_at_micros
			  FROM checks
			 WHERE check_id = $1`, id)
		c, err := scanCheck(row)
		if err != nil {
			if err == pgx.ErrNoRows {
				out = nil
				return nil
			}
			return err
		}
		out = &c
		return nil
	})
	return out, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheck(row rowScanner) (domain.Check, error) {
	var (
		c              domain.Check
		method         string
		headersJSON    []byte
		regionsRaw     []string
	)
	err := row.Scan(
		&c.CheckID, &c.OwnerUserID, &c.Name, &c.URL, &method,
		&headersJSON, &c.RequestBody, &c.ExpectedStatusCode,
		&c.TimeoutSeconds, &c.CheckFrequencySecs, &regionsRaw,
		&c.IsEnabled, &c.CreatedAtMicros,
	)
	if err != nil {
		return domain.Check{}, err
	}
	c.HTTPMethod = domain.HTTPMethod(method)
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &c.RequestHeaders); err != nil {
			return domain.Check{}, fmt.Errorf("unmarshal request_headers: %w", err)
		}
	}
	c.Regions = make([]domain.Region, 0, len(regionsRaw))
	for _, r := range regionsRaw {
		c.Regions = append(c.Regions, domain.Region(r))
	}
	return c, nil
}

func (s *Store) CreateCheck(ctx context.Context, c domain.Check) error {
	return s.withRetry(ctx, "create_check", func(ctx context.Context) error {
		headersJSON, err := json.Marshal(c.RequestHeaders)
		if err != nil {
			return &repo.StoreError{Kind: repo.Malformed, Op: "create_check", Err: err}
		}
		regions := make([]string, 0, len(c.Regions))
		for _, r := range c.Regions {
			regions = append(regions, string(r))
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO checks
			  (check_id, owner_user_id, check_name, url, http_method,
			   request_headers, request_body, expected_status_code,
			   timeout_seconds, check_frequency_seconds, regions,
			   is_enabled, created_at_micros)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			c.CheckID, c.OwnerUserID, c.Name, c.URL, string(c.HTTPMethod),
			headersJSON, c.RequestBody, c.ExpectedStatusCode,
			c.TimeoutSeconds, c.CheckFrequencySecs, regions,
			c.IsEnabled, c.CreatedAtMicros,
		)
		return err
	})
}

func (s *Store) UpdateCheck(ctx context.Context, c domain.Check) error {
	return s.withRetry(ctx, "update_check", func(ctx context.Context) error {
		headersJSON, err := json.Marshal(c.RequestHeaders)
		if err != nil {
			return &repo.StoreError{Kind: repo.Malformed, Op: "update_check", Err: err}
		}
		regions := make([]string, 0, len(c.Regions))
		for _, r := range c.Regions {
			regions = append(regions, string(r))
		}
		tag, err := s.pool.Exec(ctx, `
			UPDATE checks SET
			  check_name = $2, url = $3, http_method = $4, request_headers = $5,
			  request_body = $6, expected_status_code = $7, timeout_seconds = $8,
			  check_frequency_seconds = $9, regions = $10, is_enabled = $11
			WHERE check_id = $1`,
			c.CheckID, c.Name, c.URL, string(c.HTTPMethod), headersJSON,
			c.RequestBody, c.ExpectedStatusCode, c.TimeoutSeconds,
			c.CheckFrequencySecs, regions, c.IsEnabled,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &repo.StoreError{Kind: repo.Malformed, Op: "update_check", Err: pgx.ErrNoRows}
		}
		return nil
	})
}

func (s *Store) DeleteCheck(ctx context.Context, id uuid.UUID) error {
	return s.withRetry(ctx, "delete_check", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `DELETE FROM checks WHERE check_id = $1`, id)
		return err
	})
}

// ---- HeartbeatStore ----

// UpsertHeartbeat approximates the store's LWT-style conditional write with
// an ON CONFLICT ... WHERE predicate: the row only advances if the incoming
// last_seen is newer, so a stale retry after a later write never regresses
// the liveness clock.
func (s *Store) UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	return s.withRetry(ctx, "upsert_heartbeat", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO heartbeats
			  (node_id, region, last_seen_micros, bucket_version, buckets_count,
			   replication_factor, git_sha, replica_label)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (node_id) DO UPDATE SET
			  last_seen_micros = EXCLUDED.last_seen_micros,
			  bucket_version = EXCLUDED.bucket_version,
			  buckets_count = EXCLUDED.buckets_count,
			  replication_factor = EXCLUDED.replication_factor,
			  git_sha = EXCLUDED.git_sha,
			  replica_label = EXCLUDED.replica_label
			WHERE heartbeats.last_seen_micros < EXCLUDED.last_seen_micros`,
			hb.NodeID, string(hb.Region), hb.LastSeenMicros, hb.BucketVersion,
			hb.BucketsCount, hb.ReplicationFactor, hb.GitSHA, hb.ReplicaLabel,
		)
		return err
	})
}

func (s *Store) ListLiveHeartbeats(ctx context.Context, nowMicros, thresholdMicros uint64) ([]domain.Heartbeat, error) {
	var out []domain.Heartbeat
	err := s.withRetry(ctx, "list_live_heartbeats", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT node_id, region, last_seen_micros, bucket_version,
			       buckets_count, replication_factor, git_sha, replica_label
			  FROM heartbeats
			 WHERE $1 - last_seen_micros <= $2
			 ORDER BY node_id`, int64(nowMicros), int64(thresholdMicros))
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var hb domain.Heartbeat
			var region string
			if err := rows.Scan(&hb.NodeID, &region, &hb.LastSeenMicros, &hb.BucketVersion,
				&hb.BucketsCount, &hb.ReplicationFactor, &hb.GitSHA, &hb.ReplicaLabel); err != nil {
				return err
			}
			hb.Region = domain.Region(region)
			out = append(out, hb)
		}
		return rows.Err()
	})
	return out, err
}

// ---- ResultStore ----

func (s *Store) AppendResult(ctx context.Context, row domain.CheckResult) error {
	return s.withRetry(ctx, "append_result", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO check_results
			  (check_id, region, time_bucket_micros, scheduled_at_micros,
			   outcome, response_time_micros, observed_status, executor_node_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (check_id, region, scheduled_at_micros) DO NOTHING`,
			row.CheckID, string(row.Region), int64(row.TimeBucketMicros),
			int64(row.ScheduledAtMicros), string(row.Outcome),
			int64(row.ResponseTimeMicros), row.ObservedStatus, row.ExecutorNodeID,
		)
		return err
	})
}

func (s *Store) ListResults(ctx context.Context, checkID uuid.UUID, fromMicros, toMicros uint64) ([]domain.CheckResult, error) {
	var out []domain.CheckResult
	err := s.withRetry(ctx, "list_results", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT check_id, region, time_bucket_micros, scheduled_at_micros,
			       outcome, response_time_micros, observed_status, executor_node_id
			  FROM check_results
			 WHERE check_id = $1
			   AND scheduled_at_micros >= $2
			   AND scheduled_at_micros < $3
			 ORDER BY scheduled_at_micros`,
			checkID, int64(fromMicros), int64(toMicros))
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var (
				r       domain.CheckResult
				region  string
				outcome string
			)
			if err := rows.Scan(&r.CheckID, &region, &r.TimeBucketMicros, &r.ScheduledAtMicros,
				&outcome, &r.ResponseTimeMicros, &r.ObservedStatus, &r.ExecutorNodeID); err != nil {
				return err
			}
			r.Region = domain.Region(region)
			r.Outcome = domain.Outcome(outcome)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}
