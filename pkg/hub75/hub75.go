// Package hub75 drives a HUB75 RGB LED panel through the Linux GPIO character
// device, with the wiring of the Adafruit RGB Matrix Bonnet.
package hub75

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Pins holds the GPIO offsets of the HUB75 signals
type Pins struct {
	R1, G1, B1 int // upper half data
	R2, G2, B2 int // lower half data
	CLK        int
	OE         int // output enable, active low
	LAT        int
	A, B, C, D int // row address
	E          int // row address bit 4, 64 pixel high panels only
}

// BonnetPins is the Adafruit RGB Matrix Bonnet pinout
var BonnetPins = Pins{
	R1: 5, G1: 13, B1: 6,
	R2: 12, G2: 16, B2: 23,
	CLK: 17, OE: 4, LAT: 21,
	A: 22, B: 26, C: 27, D: 20, E: 24,
}

// PinsFor returns the pinout for a hardware mapping name
func PinsFor(mapping string) (Pins, error) {
	switch mapping {
	case "adafruit-hat", "":
		return BonnetPins, nil
	case "adafruit-hat-pwm":
		// OE jumpered to the hardware PWM pin
		p := BonnetPins
		p.OE = 18
		return p, nil
	default:
		return Pins{}, fmt.Errorf("unknown hardware mapping %q", mapping)
	}
}

// Line indexes into the value slice handed to the GPIO request
const (
	lineR1 = iota
	lineG1
	lineB1
	lineR2
	lineG2
	lineB2
	lineCLK
	lineOE
	lineLAT
	lineA
	lineB
	lineC
	lineD
	lineE
	numLines
)

func (p Pins) offsets() []int {
	return []int{p.R1, p.G1, p.B1, p.R2, p.G2, p.B2, p.CLK, p.OE, p.LAT, p.A, p.B, p.C, p.D, p.E}
}

// Config holds the configuration for the panel
type Config struct {
	Width      int
	Height     int
	PWMBits    int
	Slowdown   int
	Brightness int
	Chip       string
	Pins       Pins
	// BaseOnTime is how long the least significant plane is lit at full
	// brightness
	BaseOnTime time.Duration
}

func (c *Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Height%2 != 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", c.Width, c.Height)
	}
	if c.Height/2 > 1<<5 {
		return fmt.Errorf("height %d needs more than 5 address lines", c.Height)
	}
	if c.PWMBits < 1 || c.PWMBits > 11 {
		return fmt.Errorf("pwm bits must be between 1 and 11")
	}
	if c.Brightness < 0 || c.Brightness > 100 {
		return fmt.Errorf("brightness must be between 0 and 100")
	}
	if c.Slowdown < 1 {
		c.Slowdown = 1
	}
	if c.BaseOnTime <= 0 {
		c.BaseOnTime = 2 * time.Microsecond
	}
	if c.Chip == "" {
		c.Chip = "gpiochip0"
	}
	return nil
}

// lineSetter is the part of a gpiocdev line request the scanner uses
type lineSetter interface {
	SetValues(values []int) error
	Close() error
}

// Data bits of one column in a bit plane
const (
	bitR1 = 1 << iota
	bitG1
	bitB1
	bitR2
	bitG2
	bitB2
)

// Matrix is a double-buffered HUB75 panel. SetPixel draws into the back
// buffer and Show hands it to the scan goroutine.
type Matrix struct {
	cfg   Config
	rows  int
	lines lineSetter
	sleep func(time.Duration)

	values [numLines]int

	mu    sync.Mutex
	back  *image.RGBA
	front []uint8 // [plane][row][col] data bits

	brightness atomic.Int32
	scanErr    atomic.Pointer[error]

	started bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Open requests the GPIO lines and starts scanning
func Open(cfg Config) (*Matrix, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	lines, err := gpiocdev.RequestLines(cfg.Chip, cfg.Pins.offsets(),
		gpiocdev.AsOutput(0, 0, 0, 0, 0, 0, 0, 1), gpiocdev.WithConsumer("matrixd"))
	if err != nil {
		return nil, fmt.Errorf("failed to request GPIO lines: %w", err)
	}

	m := newMatrix(cfg, lines, sleepFor)
	m.start()
	return m, nil
}

func newMatrix(cfg Config, lines lineSetter, sleep func(time.Duration)) *Matrix {
	rows := cfg.Height / 2
	m := &Matrix{
		cfg:   cfg,
		rows:  rows,
		lines: lines,
		sleep: sleep,
		back:  image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		front: make([]uint8, cfg.PWMBits*rows*cfg.Width),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	m.values[lineOE] = 1
	m.brightness.Store(int32(cfg.Brightness))
	return m
}

// sleepFor waits d. Short waits spin since the scheduler cannot sleep for
// single microseconds.
func sleepFor(d time.Duration) {
	if d >= 100*time.Microsecond {
		time.Sleep(d)
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}

// Bounds returns the drawable area of the panel
func (m *Matrix) Bounds() image.Rectangle {
	return m.back.Bounds()
}

// Clear clears the back buffer
func (m *Matrix) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.back.Pix)
	return nil
}

// SetPixel sets a pixel in the back buffer
func (m *Matrix) SetPixel(x, y int, c color.Color) error {
	if !image.Pt(x, y).In(m.back.Bounds()) {
		return fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.back.Set(x, y, c)
	return nil
}

// SetBrightness sets the brightness in percent
func (m *Matrix) SetBrightness(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness must be between 0 and 100")
	}
	m.brightness.Store(int32(percent))
	return nil
}

// Show converts the back buffer into bit planes and swaps them in. It
// returns the error that stopped the scan, if any.
func (m *Matrix) Show() error {
	if err := m.scanErr.Load(); err != nil {
		return fmt.Errorf("scan stopped: %w", *err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.front = m.planes()
	return nil
}

// planes splits the back buffer into PWMBits planes
func (m *Matrix) planes() []uint8 {
	w := m.cfg.Width
	out := make([]uint8, m.cfg.PWMBits*m.rows*w)
	shift := 16 - m.cfg.PWMBits
	for row := 0; row < m.rows; row++ {
		for col := 0; col < w; col++ {
			top := m.back.RGBAAt(col, row)
			bottom := m.back.RGBAAt(col, row+m.rows)
			// Scale 8 bit channels to 16 bits and keep the top PWMBits
			ch := [6]uint32{
				uint32(top.R) * 0x101 >> shift, uint32(top.G) * 0x101 >> shift, uint32(top.B) * 0x101 >> shift,
				uint32(bottom.R) * 0x101 >> shift, uint32(bottom.G) * 0x101 >> shift, uint32(bottom.B) * 0x101 >> shift,
			}
			for plane := 0; plane < m.cfg.PWMBits; plane++ {
				var bits uint8
				for i, v := range ch {
					if v>>plane&1 == 1 {
						bits |= 1 << i
					}
				}
				out[(plane*m.rows+row)*w+col] = bits
			}
		}
	}
	return out
}

// Close stops the scan, blanks the panel and releases the lines
func (m *Matrix) Close() error {
	var err error
	m.once.Do(func() {
		close(m.stop)
		if m.started {
			<-m.done
		}
		m.values = [numLines]int{}
		m.values[lineOE] = 1
		err = errors.Join(m.flush(), m.lines.Close())
	})
	return err
}

func (m *Matrix) start() {
	m.started = true
	go m.scan()
}

// scan refreshes the panel until Close
func (m *Matrix) scan() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		default:
		}
		if err := m.scanFrame(); err != nil {
			m.scanErr.Store(&err)
			<-m.stop
			return
		}
	}
}

// scanFrame shows every bit plane of every row once. Plane n is lit twice as
// long as plane n-1.
func (m *Matrix) scanFrame() error {
	m.mu.Lock()
	planes := m.front
	m.mu.Unlock()

	brightness := time.Duration(m.brightness.Load())
	w := m.cfg.Width
	for plane := 0; plane < m.cfg.PWMBits; plane++ {
		on := m.cfg.BaseOnTime * (1 << plane) * brightness / 100
		for row := 0; row < m.rows; row++ {
			data := planes[(plane*m.rows+row)*w : (plane*m.rows+row+1)*w]
			if err := m.shiftRow(data); err != nil {
				return err
			}
			if err := m.latchRow(row); err != nil {
				return err
			}
			if on <= 0 {
				continue
			}
			m.values[lineOE] = 0
			if err := m.flush(); err != nil {
				return err
			}
			m.sleep(on)
			m.values[lineOE] = 1
			if err := m.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// shiftRow clocks one row of data bits into the panel
func (m *Matrix) shiftRow(data []uint8) error {
	for _, bits := range data {
		for i := 0; i < 6; i++ {
			m.values[lineR1+i] = int(bits >> i & 1)
		}
		if err := m.clockEdge(0); err != nil {
			return err
		}
		if err := m.clockEdge(1); err != nil {
			return err
		}
	}
	return nil
}

// clockEdge drives CLK, repeating the write Slowdown times
func (m *Matrix) clockEdge(v int) error {
	m.values[lineCLK] = v
	for i := 0; i < m.cfg.Slowdown; i++ {
		if err := m.flush(); err != nil {
			return err
		}
	}
	return nil
}

// latchRow selects row and latches the shifted data with output disabled
func (m *Matrix) latchRow(row int) error {
	m.values[lineCLK] = 0
	for i := 0; i < 5; i++ {
		m.values[lineA+i] = row >> i & 1
	}
	m.values[lineLAT] = 1
	if err := m.flush(); err != nil {
		return err
	}
	m.values[lineLAT] = 0
	return m.flush()
}

func (m *Matrix) flush() error {
	return m.lines.SetValues(m.values[:])
}
