//go:build !linux

package affinity

// Supported reports if pinning has effect on this platform.
const Supported = false

// Pin does nothing on this platform.
func Pin(core int) error {
	return nil
}
