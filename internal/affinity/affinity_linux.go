package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Supported reports if pinning has effect on this platform.
const Supported = true

// Pin binds the calling OS thread to the core. Core is an index into the
// set of CPUs the process is allowed to run on, it wraps around if the
// set is smaller. The goroutine must be locked to its thread with
// runtime.LockOSThread.
func Pin(core int) error {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return fmt.Errorf("get affinity: %w", err)
	}
	n := allowed.Count()
	if n == 0 {
		return nil
	}
	if core < 0 {
		core = -core
	}
	core %= n

	cpu := -1
	for i, seen := 0, 0; i < len(allowed)*64; i++ {
		if !allowed.IsSet(i) {
			continue
		}
		if seen == core {
			cpu = i
			break
		}
		seen++
	}

	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin thread to cpu %d: %w", cpu, err)
	}
	return nil
}
