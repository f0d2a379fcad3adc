//go:build unix && !linux

package readiness

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// createWakeFd creates a non-blocking, close-on-exec self-pipe.
func createWakeFd() (int, int, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	for _, fd := range fds {
		if err := syscall.SetNonblock(fd, true); err != nil {
			syscall.Close(fds[0])
			syscall.Close(fds[1])
			return 0, 0, err
		}
	}
	return fds[0], fds[1], nil
}

func writeWakeFd(fd int) error {
	_, err := unix.Write(fd, []byte{1})
	return err
}
