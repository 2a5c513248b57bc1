// Package affinity pins the calling OS thread to a CPU core. Pinning is a
// hint: on platforms without support it does nothing.
package affinity

import "runtime"

// Pick returns a core for worker i. If cores is empty, workers are spread
// over all cores except the first one, which is left for the calling
// thread.
func Pick(cores []int, i int) int {
	if len(cores) > 0 {
		return cores[i%len(cores)]
	}
	n := runtime.NumCPU()
	if n < 2 {
		return 0
	}
	return 1 + i%(n-1)
}
