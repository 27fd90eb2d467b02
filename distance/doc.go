// Package distance provides the masked Hamming distance used to compare bit
// records under significance masks.
//
// For a query (Q, Mq) and a stored record (R, Mr):
//
//	distance = popcount((Mq AND Mr) AND (Q XOR R))
//	overlap  = popcount(Mq AND Mr)
//
// Positions excluded by either mask never contribute. With all-ones masks the
// distance is the plain Hamming distance. The metric is not symmetric in
// general once masks differ between query and record roles.
//
// Hardware popcount is used when available:
//   - POPCNT on x86-64
//   - CNT (ASIMD) on ARM64
//
// # Usage
//
//	d, err := distance.Between(q, mq, r, mr)
package distance
