// Package manifest persists the durable extraction progress ledger.
//
// One row exists per (subject, performance) task. The orchestrator is the
// only writer; every update is flushed to the SQLite database immediately so
// that a crash at any point leaves the ledger consistent with the last fully
// completed update. Resume logic and reporting read the same rows.
package manifest
