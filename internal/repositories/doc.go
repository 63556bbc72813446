// Package repositories implements persistence for sync sessions and listening history.
//
// Three [models.Store] implementations share one contract and one test suite:
//   - [SQLiteStore] : default store on the embedded migrations, device rows cascade with their session
//   - [MemoryStore] : mutex-guarded maps for tests and throwaway servers
//   - [PostgresStore] : pgx connection pool for deployments with several server processes
//
// [HistoryRepository] keeps the listening log (per-song aggregates plus a bounded sample log) in SQLite.
//
// Device join order is kept with sequence numbers. The SQLite store draws them from a dedicated
// sequence table with [NextSequence]; Postgres uses a native sequence.
package repositories
