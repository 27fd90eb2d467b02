// Package mhdmem provides a content-addressable associative memory that
// recalls stored bit patterns by masked Hamming distance.
//
// A memory holds up to a fixed number of entries, each a bit record, a mask
// and a caller-defined payload. Queries return the k entries closest to a
// pattern, counting only positions that are significant in both the query
// mask and the entry mask. Once full, every insert evicts the oldest entry.
//
// The intended use is heuristic search over combinatorial problems: partial
// solutions become records, undecided positions are masked out, and the
// memory answers "have we seen something like this before, and how good was
// it?".
//
// # Quick Start
//
//	mem, _ := mhdmem.New[float64](64, 10_000)
//	defer mem.Close()
//
//	rec := bitvec.MustParse("1011" + strings.Repeat("0", 60))
//	id, _ := mem.Insert(rec, bitvec.Ones(64), 42.0)
//
//	matches, _ := mem.Query(rec, bitvec.Prefix(64, 4), 5)
//	for _, m := range matches {
//	    fmt.Println(m.ID, m.Distance, m.Payload)
//	}
//
// # Distance
//
// For query Q with mask Mq and entry R with mask Mr:
//
//	distance = popcount((Mq & Mr) & (Q ^ R))
//	overlap  = popcount(Mq & Mr)
//
// Ties are broken by ID, so older entries win. Results are identical for
// every worker count.
//
// # Concurrency
//
// Inserts and removals take an exclusive lock. Queries share a read lock for
// their whole scan, which is split into chunks and scored on a fixed worker
// pool (WithWorkers). QueryContext adds admission control and QueryBatch runs
// many queries at once.
//
// # Snapshots
//
// Save and Load export and import a memory, including entry IDs, in a
// compressed, checksummed format (package snapshot). SaveToStore and
// LoadFromStore do the same against a blobstore.Store such as S3, MinIO,
// badger or the local file system.
//
// # Key Features
//
//   - Word-parallel distance kernels using hardware popcount when available
//   - Deterministic top-k with bounded per-chunk heaps
//   - Optional result cache (WithQueryCache) invalidated by any mutation
//   - Per-query thresholds and ID filters (WithMaxDistance, WithFilter)
//   - Structured logging (slog) and pluggable metrics (Prometheus)
package mhdmem
