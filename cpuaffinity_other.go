//go:build !linux

package tracking

import "errors"

// ErrAffinityUnsupported is returned on platforms without sched_setaffinity
var ErrAffinityUnsupported = errors.New("cpu affinity is only supported on linux")

// SetCPUAffinity is not supported on this platform
func SetCPUAffinity(mask uintptr) error {
	return ErrAffinityUnsupported
}

// GetCPUAffinity is not supported on this platform
func GetCPUAffinity() (uintptr, error) {
	return 0, ErrAffinityUnsupported
}
