package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
)

// SimMatrix is an in-memory matrix. It stands in for the panel with
// display.driver: sim and in tests.
type SimMatrix struct {
	mu         sync.Mutex
	back       *image.RGBA
	front      *image.RGBA
	brightness int
	shows      int
	closed     bool
	showErr    error
}

// NewSimMatrix creates a simulated matrix of the given size
func NewSimMatrix(width, height int) *SimMatrix {
	r := image.Rect(0, 0, width, height)
	return &SimMatrix{
		back:       image.NewRGBA(r),
		front:      image.NewRGBA(r),
		brightness: 100,
	}
}

// Bounds returns the drawable area of the matrix
func (m *SimMatrix) Bounds() image.Rectangle {
	return m.back.Bounds()
}

// Clear clears the back buffer
func (m *SimMatrix) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draw.Draw(m.back, m.back.Bounds(), image.Transparent, image.Point{}, draw.Src)
	return nil
}

// SetPixel sets a pixel in the back buffer
func (m *SimMatrix) SetPixel(x, y int, c color.Color) error {
	if !image.Pt(x, y).In(m.back.Bounds()) {
		return fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.back.Set(x, y, c)
	return nil
}

// SetBrightness records the brightness
func (m *SimMatrix) SetBrightness(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness must be between 0 and 100")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brightness = percent
	return nil
}

// Show copies the back buffer to the front buffer
func (m *SimMatrix) Show() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("matrix closed")
	}
	if m.showErr != nil {
		return m.showErr
	}
	copy(m.front.Pix, m.back.Pix)
	m.shows++
	return nil
}

// Close marks the matrix closed
func (m *SimMatrix) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Frame returns a copy of what the matrix is showing
func (m *SimMatrix) Frame() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := image.NewRGBA(m.front.Bounds())
	copy(out.Pix, m.front.Pix)
	return out
}

// Shows returns how many times Show succeeded
func (m *SimMatrix) Shows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shows
}

// Brightness returns the last brightness set
func (m *SimMatrix) Brightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

// SetShowErr makes Show fail with err until it is cleared with nil
func (m *SimMatrix) SetShowErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showErr = err
}
