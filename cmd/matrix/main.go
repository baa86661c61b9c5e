package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/config"
	"github.com/fkcurrie/led-matrix-display/internal/display"
	"github.com/fkcurrie/led-matrix-display/pkg/hub75"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	hold := flag.Duration("hold", 2*time.Second, "how long each pattern is shown")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", *configPath, err)
		log.Printf("Using default configuration")
		cfg = config.DefaultConfig()
	}

	pins, err := hub75.PinsFor(cfg.Display.HardwareMapping)
	if err != nil {
		log.Fatalf("Failed to resolve pins: %v", err)
	}
	matrix, err := hub75.Open(hub75.Config{
		Width:      cfg.Display.Width,
		Height:     cfg.Display.Height,
		PWMBits:    cfg.Display.PWMBits,
		Slowdown:   cfg.Display.GPIOSlowdown,
		Brightness: cfg.Display.Brightness,
		Chip:       cfg.Display.GPIOChip,
		Pins:       pins,
	})
	if err != nil {
		log.Fatalf("Failed to create matrix: %v", err)
	}
	defer matrix.Close()

	b := matrix.Bounds()
	show := func(name string, paint func(x, y int) color.Color) {
		log.Println(name)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if err := matrix.SetPixel(x, y, paint(x, y)); err != nil {
					log.Fatalf("Failed to set pixel: %v", err)
				}
			}
		}
		if err := matrix.Show(); err != nil {
			log.Fatalf("Failed to show matrix: %v", err)
		}
		time.Sleep(*hold)
	}

	solid := func(c color.Color) func(x, y int) color.Color {
		return func(int, int) color.Color { return c }
	}
	show("Setting all pixels to red", solid(display.DayPalette[display.ColorRed]))
	show("Setting all pixels to green", solid(display.DayPalette[display.ColorGreen]))
	show("Setting all pixels to blue", solid(display.DayPalette[display.ColorBlue]))
	show("Setting alternating pixels", func(x, y int) color.Color {
		if (x+y)%2 == 0 {
			return display.DayPalette[display.ColorWhite]
		}
		return display.DayPalette[display.ColorBlack]
	})

	// One column per palette entry
	show("Showing day palette", func(x, y int) color.Color {
		return display.DayPalette.Color(x * display.PaletteSize / b.Dx())
	})
	show("Showing night palette", func(x, y int) color.Color {
		return display.NightPalette.Color(x * display.PaletteSize / b.Dx())
	})

	// Brightness ramp on white
	for _, pct := range []int{100, 60, 20, 5} {
		if err := matrix.SetBrightness(pct); err != nil {
			log.Fatalf("Failed to set brightness: %v", err)
		}
		show(fmt.Sprintf("Brightness %d%%", pct), solid(display.DayPalette[display.ColorWhite]))
	}
	if err := matrix.SetBrightness(cfg.Display.Brightness); err != nil {
		log.Fatalf("Failed to set brightness: %v", err)
	}

	// Text with the built-in bitmap font
	canvas := image.NewRGBA(b)
	fonts := display.BasicFonts()
	label := fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
	fonts.Draw(canvas, 1, (b.Dx()-fonts.Measure(1, label))/2, (b.Dy()-fonts.Height(1))/2, label, display.DayPalette[display.ColorGold])
	show("Drawing text", func(x, y int) color.Color { return canvas.RGBAAt(x, y) })

	// Clear the matrix
	log.Println("Clearing matrix")
	if err := matrix.Clear(); err != nil {
		log.Fatalf("Failed to clear matrix: %v", err)
	}
	if err := matrix.Show(); err != nil {
		log.Fatalf("Failed to show matrix: %v", err)
	}

	fmt.Println("Test completed successfully")
}
