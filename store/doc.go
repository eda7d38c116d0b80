// Package store defines the [Store] and [Tx] interfaces for counter
// persistence and provides two implementations:
//
//   - [MemoryStore]: in-memory counters that are lost on restart.
//   - [SQLiteStore]: persistent counters backed by a SQLite database.
//
// A Redis-backed store lives in the store/redis subpackage. Custom backends
// can be created by implementing [Store] and [Tx]; the storetest package
// checks them against the shared contract.
package store
