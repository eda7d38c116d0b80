// Package tally keeps named integer counters in a persistent store.
//
// # Key Concepts
//
//   - [store.Counter] is a named integer with creation and update
//     timestamps. Names are unique and compared case-sensitively.
//   - [store.Store] is the persistence backend. Each [Service] call opens one
//     unit-of-work ([store.Tx]), looks the counter up, creates or mutates it,
//     and commits. An in-memory store is used by default; SQLite and Redis
//     stores are available for persistence across restarts.
//   - Counters are created lazily on first reference. [Service.Value] and
//     [Service.GetOrCreate] create a missing counter with value 0, so a read
//     may write. [Service.Increment] creates a missing counter with value 1.
//
// There is no locking: two concurrent increments of the same counter race
// at the store's default isolation level and one update may be lost.
//
// # Quick Start
//
//	s, err := store.NewSQLiteStore("tally.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc := tally.New(tally.WithStore(s))
//	defer svc.Close()
//
//	n, err := svc.Increment(ctx, "main") // 1
//	n, err = svc.Reset(ctx, "main")      // 0
//
// See the [Service] documentation for the full API.
package tally
