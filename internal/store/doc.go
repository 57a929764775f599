// Package store implements the durable Transfer Store (spec §4.3): a
// single sqlite database file holding the transfers table plus the
// batch operations the Feeder, Executor, and Status Batcher drive it
// with. Every write operation commits its own transaction; any statement
// failure inside one rolls the whole transaction back, so callers never
// observe a half-applied batch.
//
// The table layout and its WAL journaling mode are grounded on
// cirrus's database.setup(); the database/sql + ExecContext/QueryContext
// idiom, nullable-column handling via sql.NullString/sql.NullTime, and
// parameterized queries follow the teacher pack's SQLOutboxStorage.
package store
