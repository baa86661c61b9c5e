package rtc

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// setSystemTime steps the system clock. It needs CAP_SYS_TIME.
func setSystemTime(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return fmt.Errorf("failed to set system time: %w", err)
	}
	return nil
}
