//go:build unix

package security

import (
	"syscall"
)

// applyProcessLimits maps policy limits onto setrlimit ceilings. Partial
// failures abort with the first error; callers treat any error as
// advisory.
func applyProcessLimits(limits Limits) error {
	if limits.MaxMemoryBytes > 0 {
		rl := syscall.Rlimit{Cur: limits.MaxMemoryBytes, Max: limits.MaxMemoryBytes}
		if err := syscall.Setrlimit(syscall.RLIMIT_AS, &rl); err != nil {
			return err
		}
	}
	if limits.MaxCPUSeconds > 0 {
		rl := syscall.Rlimit{Cur: limits.MaxCPUSeconds, Max: limits.MaxCPUSeconds}
		if err := syscall.Setrlimit(syscall.RLIMIT_CPU, &rl); err != nil {
			return err
		}
	}
	if limits.MaxFileDescriptors > 0 {
		n := uint64(limits.MaxFileDescriptors)
		rl := syscall.Rlimit{Cur: n, Max: n}
		if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
			return err
		}
	}
	return nil
}
