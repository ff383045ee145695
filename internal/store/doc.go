// Package store is the Record Store Gateway: durable CRUD access to records
// over database/sql. Postgres (through the pgx stdlib driver) is the
// production engine; SQLite (modernc.org/sqlite) serves local runs and tests.
//
// Every operation is bounded by the configured timeout and runs on a context
// detached from the caller's cancellation, so an abandoned request still lets
// its query finish or fail on its own. Nothing is retried here: errors are
// classified into record.ErrNotFound, record.ErrStoreTimeout or
// record.ErrStoreUnavailable and returned.
package store
