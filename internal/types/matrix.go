package types

import (
	"image"
	"image/color"
)

// Matrix represents a display matrix
type Matrix interface {
	// Bounds returns the drawable area of the matrix
	Bounds() image.Rectangle
	// Clear clears the matrix
	Clear() error
	// SetPixel sets a pixel at the given coordinates to the given color
	SetPixel(x, y int, c color.Color) error
	// SetBrightness sets the panel brightness in percent (0-100)
	SetBrightness(percent int) error
	// Show updates the display with the current buffer
	Show() error
	// Close closes the matrix
	Close() error
}
