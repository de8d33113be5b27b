package runner

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// EnableKeyboardControl lets Enter or Space toggle the session's pause
// gate while the scan runs. It returns a cleanup function that restores
// the terminal. If stdin is not a terminal nothing happens and the cleanup
// is a no-op.
func (s *Session) EnableKeyboardControl() (cleanup func()) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		s.logger.Warn("Could not enable raw terminal", zap.Error(err))
		return func() {}
	}

	// MakeRaw disables OPOST which stops \n → \r\n translation, causing
	// cursor alignment issues. Re-enable it since we only need raw input.
	fixOutputProcessing(fd)

	cleanup = func() {
		_ = term.Restore(fd, oldState)
	}

	quiet := s.Options.Quiet
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			key := buf[0]

			// Ctrl+C (0x03): restore terminal and re-send SIGINT so the
			// signal handler chain fires normally.
			if key == 0x03 {
				_ = term.Restore(fd, oldState)
				sendInterrupt()
				return
			}

			if key == '\r' || key == '\n' || key == ' ' {
				if s.Stopped() {
					continue
				}
				pausedFor := s.pauser.CurrentPauseDuration()
				nowPaused := s.pauser.Toggle()
				if !quiet {
					if nowPaused {
						fmt.Fprintf(os.Stderr, "\r\033[K[*] Scan PAUSED, press Enter or Space to resume\n")
					} else {
						fmt.Fprintf(os.Stderr, "\r\033[K[*] Scan RESUMED after %s\n",
							pausedFor.Round(time.Second))
					}
				}
			}
		}
	}()

	return cleanup
}
