package renderer

import "runtime"

// defaultWorkerCount matches the worker pool to the CPU count
func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
