// Package ds3231 drives the DS3231 real-time clock over I²C.
//
// The clock is kept in UTC using the 24 hour register format.
package ds3231

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress is the fixed bus address of the DS3231
const DefaultAddress = 0x68

const (
	regSeconds = 0x00
	regStatus  = 0x0f
	regTempMSB = 0x11

	statusOSF    = 0x80
	hour12       = 0x40
	hourPM       = 0x20
	monthCentury = 0x80
)

// ErrInvalidTime is returned when the registers do not hold a valid date,
// typically after the backup battery ran flat
var ErrInvalidTime = errors.New("ds3231: registers hold an invalid time")

// Dev is a DS3231 on an I²C bus
type Dev struct {
	d i2c.Dev
}

// New returns a device on bus at addr
func New(bus i2c.Bus, addr uint16) *Dev {
	return &Dev{d: i2c.Dev{Bus: bus, Addr: addr}}
}

func (d *Dev) String() string {
	return fmt.Sprintf("DS3231{%s}", &d.d)
}

// Read returns the current RTC time in UTC
func (d *Dev) Read() (time.Time, error) {
	r := make([]byte, 7)
	if err := d.d.Tx([]byte{regSeconds}, r); err != nil {
		return time.Time{}, fmt.Errorf("ds3231: failed to read time: %w", err)
	}
	return decode(r)
}

// Set writes t to the RTC and clears the oscillator stop flag
func (d *Dev) Set(t time.Time) error {
	w := append([]byte{regSeconds}, encode(t)...)
	if _, err := d.d.Write(w); err != nil {
		return fmt.Errorf("ds3231: failed to set time: %w", err)
	}
	status := make([]byte, 1)
	if err := d.d.Tx([]byte{regStatus}, status); err != nil {
		return fmt.Errorf("ds3231: failed to read status: %w", err)
	}
	if status[0]&statusOSF != 0 {
		if _, err := d.d.Write([]byte{regStatus, status[0] &^ statusOSF}); err != nil {
			return fmt.Errorf("ds3231: failed to clear oscillator flag: %w", err)
		}
	}
	return nil
}

// OscillatorStopped reports whether the oscillator stopped since the time
// was last set, meaning the stored time cannot be trusted
func (d *Dev) OscillatorStopped() (bool, error) {
	status := make([]byte, 1)
	if err := d.d.Tx([]byte{regStatus}, status); err != nil {
		return false, fmt.Errorf("ds3231: failed to read status: %w", err)
	}
	return status[0]&statusOSF != 0, nil
}

// Temperature returns the die temperature in degrees Celsius. The sensor
// resolution is 0.25°C.
func (d *Dev) Temperature() (float64, error) {
	r := make([]byte, 2)
	if err := d.d.Tx([]byte{regTempMSB}, r); err != nil {
		return 0, fmt.Errorf("ds3231: failed to read temperature: %w", err)
	}
	return float64(int8(r[0])) + float64(r[1]>>6)*0.25, nil
}

func bcd(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

func toBCD(v int) byte {
	return byte(v/10)<<4 | byte(v%10)
}

func decode(r []byte) (time.Time, error) {
	sec := bcd(r[0] & 0x7f)
	min := bcd(r[1] & 0x7f)

	var hour int
	if r[2]&hour12 != 0 {
		hour = bcd(r[2]&0x1f) % 12
		if r[2]&hourPM != 0 {
			hour += 12
		}
	} else {
		hour = bcd(r[2] & 0x3f)
	}

	day := bcd(r[4] & 0x3f)
	month := bcd(r[5] & 0x1f)
	year := 2000 + bcd(r[6])
	if r[5]&monthCentury != 0 {
		year += 100
	}

	if sec > 59 || min > 59 || hour > 23 || day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, ErrInvalidTime
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	if t.Day() != day {
		// e.g. 31 February
		return time.Time{}, ErrInvalidTime
	}
	return t, nil
}

func encode(t time.Time) []byte {
	t = t.UTC()
	month := toBCD(int(t.Month()))
	if t.Year() >= 2100 {
		month |= monthCentury
	}
	return []byte{
		toBCD(t.Second()),
		toBCD(t.Minute()),
		toBCD(t.Hour()),
		byte(t.Weekday()) + 1,
		toBCD(t.Day()),
		month,
		toBCD(t.Year() % 100),
	}
}
