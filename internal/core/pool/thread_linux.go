//go:build linux

package pool

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// nameThread sets the kernel-visible name of the calling OS thread.
// Linux truncates names to 15 bytes plus the terminating NUL.
func nameThread(name string) error {
	buf := make([]byte, 16)
	copy(buf[:15], name)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}
