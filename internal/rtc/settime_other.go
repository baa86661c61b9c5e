//go:build !linux

package rtc

import (
	"errors"
	"time"
)

func setSystemTime(time.Time) error {
	return errors.New("setting the system time is only supported on linux")
}
