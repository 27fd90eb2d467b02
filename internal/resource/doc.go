// Package resource implements admission control for queries and throttling
// for snapshot IO.
//
//	┌──────────────────────────────────────────────┐
//	│                  Controller                  │
//	├───────────────────────┬──────────────────────┤
//	│  Query admission      │  IO rate limiter     │
//	│  (token bucket + sem) │  (token bucket)      │
//	├───────────────────────┼──────────────────────┤
//	│  AcquireQuery         │  AcquireIO           │
//	│  TryAcquireQuery      │  RateLimitedWriter   │
//	│  ReleaseQuery         │  RateLimitedReader   │
//	└───────────────────────┴──────────────────────┘
//
// Admission happens before a query takes the store lock; once admitted, a
// query runs to completion.
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentQueries: 8,
//	    QueriesPerSecond:     1000,
//	    QueryBurst:           100,
//	})
//
//	if err := rc.AcquireQuery(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseQuery()
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
