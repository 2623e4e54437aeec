package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// UpsertCronJob persists a job's scheduling metadata. The callback
// itself is never persisted; CronManager re-attaches it in memory on
// restart by ID.
func (s *Store) UpsertCronJob(ctx context.Context, job domain.CronJob) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO _cron_jobs (id, interval_ms, run_missed, last_run_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET interval_ms = excluded.interval_ms,
				run_missed = excluded.run_missed, last_run_at = excluded.last_run_at`,
			job.ID, job.IntervalMs, job.RunMissed, job.LastRunAt)
		return err
	})
}

// RecordCronRun updates a job's last_run_at after a tick, whether the
// job succeeded or failed.
func (s *Store) RecordCronRun(ctx context.Context, id string, at time.Time) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE _cron_jobs SET last_run_at = ? WHERE id = ?`, at, id)
		return err
	})
}

// DeleteCronJob removes a job's persisted metadata.
func (s *Store) DeleteCronJob(ctx context.Context, id string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM _cron_jobs WHERE id = ?`, id)
		return err
	})
}

// ListCronJobs returns every persisted job; the cron manager reads it
// to carry a job's last_run_at across a restart.
func (s *Store) ListCronJobs(ctx context.Context) ([]domain.CronJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, interval_ms, run_missed, last_run_at FROM _cron_jobs`)
	if err != nil {
		return nil, errkind.New(errkind.Storage, "list cron jobs", err)
	}
	defer rows.Close()

	var jobs []domain.CronJob
	for rows.Next() {
		var j domain.CronJob
		if err := rows.Scan(&j.ID, &j.IntervalMs, &j.RunMissed, &j.LastRunAt); err != nil {
			return nil, errkind.New(errkind.Storage, "scan cron job", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
