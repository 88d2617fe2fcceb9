// Package stores provides the SQLite history database for composer.
//
// The database records every lifecycle batch (runs), each start or stop
// action within it (stack_results) and every metadata edit (audit). The
// schema is applied with golang-migrate from embedded migrations and the
// driver is the pure-Go modernc.org/sqlite, so no cgo is needed.
//
// SQLiteStore.RecordRun implements engine.RunRecorder and writes a run with
// all of its outcomes in one transaction.
package stores
