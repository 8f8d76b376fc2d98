package cultivate

import (
	"runtime"

	"github.com/shirou/gopsutil/cpu"
)

// advisedConcurrency picks a worker count for parallel snapshot hashing.
// Physical core count is preferred over logical; hashing and compression
// gain little from hyperthreads.
func advisedConcurrency() int {
	count, err := cpu.Counts(false)
	if err != nil || count < 1 {
		count = runtime.NumCPU()
	}
	if count < 1 {
		count = 1
	}
	return count
}
