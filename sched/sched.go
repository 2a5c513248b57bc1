// Package sched executes a planned node order, running independent nodes
// in parallel on a fixed pool of pinned worker threads.
package sched

// Span is a contiguous range [Start, End) of the plan order. Nodes of a
// parallel span have no dependencies between each other and can run in
// any order. Serial spans hold a single node that must run on the calling
// thread.
type Span struct {
	Start    int
	End      int
	Parallel bool
}

// Len returns number of nodes in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Partition splits a plan of n nodes into spans. parallelSafe reports if
// the node at plan position i may run concurrently with others. dependsOn
// reports if the node at position j consumes an output of the node at
// position i, i < j.
//
// Parallel spans are maximal: a span is extended with the next node as
// long as that node is parallel-safe and depends on no node of the span.
// Because the plan is topologically sorted, a direct edge check is enough
// to exclude transitive dependencies inside a contiguous span.
func Partition(n int, parallelSafe func(i int) bool, dependsOn func(i, j int) bool) []Span {
	spans := make([]Span, 0, n)
	for i := 0; i < n; {
		if !parallelSafe(i) {
			spans = append(spans, Span{Start: i, End: i + 1})
			i++
			continue
		}
		end := i + 1
	extend:
		for ; end < n && parallelSafe(end); end++ {
			for k := i; k < end; k++ {
				if dependsOn(k, end) {
					break extend
				}
			}
		}
		spans = append(spans, Span{Start: i, End: end, Parallel: end-i > 1})
		i = end
	}
	return spans
}
