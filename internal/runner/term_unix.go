//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package runner

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// fixOutputProcessing turns OPOST back on after term.MakeRaw so progress
// and log lines still get \n → \r\n translation; only input needs to be raw.
func fixOutputProcessing(fd int) {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return
	}
	t.Oflag |= unix.OPOST
	_ = unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}

// sendInterrupt delivers SIGINT to this process so Ctrl+C typed in raw
// mode reaches the CLI's signal handler.
func sendInterrupt() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGINT)
}
