package store

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/types"
)

const transfersTable = "transfers"

// NewTransfer is the input to AddTransfers: one row to enqueue before it
// has a Store-assigned id.
type NewTransfer struct {
	Source   string
	Size     int64
	Priority int
}

// Store is the durable Transfer Store (spec §4.3). It owns one sqlite
// connection pool opened in WAL mode; every exported write method runs
// inside its own transaction (ListTransfers reads without one).
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// New opens (creating if absent) the sqlite database at path, puts it in
// WAL journaling mode, and ensures the transfers table and its indexes
// exist. The returned Store owns the connection for its lifetime; call
// Close when done.
func New(ctx context.Context, path string, log *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeStoreTxFailed, "failed to open transfer store").
			WithCause(err).WithContext("path", path)
	}

	// A single active writer keeps go-sqlite3 from returning
	// "database is locked" under concurrent batch writes; WAL still
	// lets readers (presentation) proceed during writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS ` + transfersTable + ` (
	id INTEGER PRIMARY KEY ASC,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 3,
	status INTEGER NOT NULL DEFAULT 0,
	start_time TEXT,
	end_time TEXT,
	error_message TEXT,
	source_kind TEXT NOT NULL,
	destination_kind TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transfers_status ON ` + transfersTable + ` (status);
CREATE INDEX IF NOT EXISTS idx_transfers_priority ON ` + transfersTable + ` (priority);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewError(errors.ErrCodeStoreTxFailed, "failed to create transfer store schema").
			WithCause(err)
	}
	return nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on any error fn
// returns and committing otherwise. Every exported Store write goes
// through this so a partial batch is never visible.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewError(errors.ErrCodeStoreTxFailed, "failed to begin transaction").
			WithCause(err).WithOperation(op)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.NewError(errors.ErrCodeStoreTxFailed, "transaction failed and rollback failed").
				WithCause(err).WithContext("rollback_error", rbErr.Error()).WithOperation(op)
		}
		if te, ok := err.(*errors.TransferError); ok {
			return te
		}
		return errors.NewError(errors.ErrCodeStoreTxFailed, "transaction failed").
			WithCause(err).WithOperation(op)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewError(errors.ErrCodeStoreTxFailed, "failed to commit transaction").
			WithCause(err).WithOperation(op)
	}
	return nil
}

// AddTransfers bulk-inserts items as PENDING rows. Each row's
// destination is join(destinationRoot, basename(item.Source)).
func (s *Store) AddTransfers(ctx context.Context, items []NewTransfer, destinationRoot string, srcKind, dstKind types.BackendKind) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(items))
	err := s.withTx(ctx, "add_transfers", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (source, destination, size, priority, status, source_kind, destination_kind)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`, transfersTable))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, item := range items {
			dest := path.Join(destinationRoot, path.Base(item.Source))
			res, err := stmt.ExecContext(ctx, item.Source, dest, item.Size,
				types.NormalizePriority(item.Priority), types.StatusPending, string(srcKind), string(dstKind))
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DropRows deletes rows by id.
func (s *Store) DropRows(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, "drop_rows", func(tx *sql.Tx) error {
		query := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, transfersTable, placeholders(len(ids)))
		_, err := tx.ExecContext(ctx, query, idsToArgs(ids)...)
		return err
	})
}

// DropStaleTerminal deletes every COMPLETED or ERROR row whose end_time
// is older than cutoff (an ISO-8601 timestamp), the engine's periodic
// housekeeping GC for rows nobody has cleared via DropRows.
func (s *Store) DropStaleTerminal(ctx context.Context, cutoff string) error {
	return s.withTx(ctx, "drop_stale_terminal", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE status IN (?, ?) AND end_time < ?`, transfersTable),
			types.StatusCompleted, types.StatusError, cutoff)
		return err
	})
}

// PromotePending selects up to limit PENDING rows, in (priority ASC, id
// ASC) order — lower priority integer promotes first, per the hot-queue
// ordering invariant — and transitions them to QUEUED in the same
// transaction, so two concurrent feeders never observe the same row
// (F1).
func (s *Store) PromotePending(ctx context.Context, limit int) ([]types.TransferRecord, error) {
	var records []types.TransferRecord
	err := s.withTx(ctx, "promote_pending", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(
			`SELECT id, source, destination, size, priority, status, start_time, end_time,
			        error_message, source_kind, destination_kind
			 FROM %s WHERE status = ? ORDER BY priority ASC, id ASC LIMIT ?`, transfersTable),
			types.StatusPending, limit)
		if err != nil {
			return err
		}
		records, err = scanRecords(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]int64, len(records))
		for i, r := range records {
			ids[i] = r.ID
			records[i].Status = types.StatusQueued
		}
		query := fmt.Sprintf(`UPDATE %s SET status = ? WHERE id IN (%s)`,
			transfersTable, placeholders(len(ids)))
		args := append([]interface{}{types.StatusQueued}, idsToArgs(ids)...)
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// BatchUpdateStarted sets status=TRANSFERRING and start_time for ids.
func (s *Store) BatchUpdateStarted(ctx context.Context, ids []int64, startTime string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, "batch_update_started", func(tx *sql.Tx) error {
		query := fmt.Sprintf(`UPDATE %s SET status = ?, start_time = ? WHERE id IN (%s)`,
			transfersTable, placeholders(len(ids)))
		args := append([]interface{}{types.StatusTransferring, startTime}, idsToArgs(ids)...)
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

// BatchUpdateCompleted sets status=COMPLETED and end_time for ids.
func (s *Store) BatchUpdateCompleted(ctx context.Context, ids []int64, endTime string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, "batch_update_completed", func(tx *sql.Tx) error {
		query := fmt.Sprintf(`UPDATE %s SET status = ?, end_time = ? WHERE id IN (%s)`,
			transfersTable, placeholders(len(ids)))
		args := append([]interface{}{types.StatusCompleted, endTime}, idsToArgs(ids)...)
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

// ErrorUpdate pairs a row id with its own failure message; distinct
// items in one error batch rarely share identical text, so unlike
// started/completed the error batch carries one message per id.
type ErrorUpdate struct {
	ID      int64
	Message string
}

// BatchUpdateError sets status=ERROR, end_time, and error_message for
// each update, all inside one transaction.
func (s *Store) BatchUpdateError(ctx context.Context, updates []ErrorUpdate, endTime string) error {
	if len(updates) == 0 {
		return nil
	}
	return s.withTx(ctx, "batch_update_error", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`UPDATE %s SET status = ?, end_time = ?, error_message = ? WHERE id = ?`, transfersTable))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, u := range updates {
			if _, err := stmt.ExecContext(ctx, types.StatusError, endTime, u.Message, u.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetInflight sets status=PENDING and clears start_time for every
// QUEUED or TRANSFERRING row, in a single statement. Called during engine stop so
// in-flight rows are re-promoted on the next run.
func (s *Store) ResetInflight(ctx context.Context) error {
	return s.withTx(ctx, "reset_inflight", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s SET status = ?, start_time = NULL WHERE status IN (?, ?)`, transfersTable),
			types.StatusPending, types.StatusQueued, types.StatusTransferring)
		return err
	})
}

// Clean performs ResetInflight and additionally clears start_time,
// end_time, and error_message for every non-terminal row. Run once on
// engine boot so a prior crash never leaves stale timestamps on rows
// that will be re-promoted.
func (s *Store) Clean(ctx context.Context) error {
	return s.withTx(ctx, "clean", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s SET status = ?, start_time = NULL WHERE status IN (?, ?)`, transfersTable),
			types.StatusPending, types.StatusQueued, types.StatusTransferring); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s SET start_time = NULL, end_time = NULL, error_message = NULL
			 WHERE status NOT IN (?, ?)`, transfersTable),
			types.StatusError, types.StatusCompleted)
		return err
	})
}

// ListTransfers returns up to limit rows ordered by id descending (most
// recently inserted first), optionally restricted to one status — the
// query backing the control surface's GET /v1/transfers and
// GET /v1/transfers/errors endpoints.
func (s *Store) ListTransfers(ctx context.Context, status *types.Status, limit int) ([]types.TransferRecord, error) {
	query := fmt.Sprintf(
		`SELECT id, source, destination, size, priority, status, start_time, end_time,
		        error_message, source_kind, destination_kind
		 FROM %s`, transfersTable)
	args := []interface{}{}
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeStoreTxFailed, "failed to list transfers").WithCause(err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]types.TransferRecord, error) {
	var records []types.TransferRecord
	for rows.Next() {
		var r types.TransferRecord
		var status int
		var startTime, endTime, errMsg sql.NullString
		var srcKind, dstKind string

		if err := rows.Scan(&r.ID, &r.Source, &r.Destination, &r.Size, &r.Priority, &status,
			&startTime, &endTime, &errMsg, &srcKind, &dstKind); err != nil {
			return nil, err
		}
		r.Status = types.Status(status)
		r.StartTime = startTime.String
		r.EndTime = endTime.String
		r.ErrorMessage = errMsg.String
		r.SourceKind = types.BackendKind(srcKind)
		r.DestinationKind = types.BackendKind(dstKind)
		records = append(records, r)
	}
	return records, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idsToArgs(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
