package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/fkcurrie/led-matrix-display/pkg/ds3231"
)

func main() {
	busName := flag.String("bus", "1", "I2C bus name")
	addr := flag.Uint("addr", ds3231.DefaultAddress, "I2C address of the DS3231")
	set := flag.Bool("set", false, "Write the system time to the RTC before reading")
	watch := flag.Bool("watch", false, "Keep printing the RTC time every second")
	flag.Parse()

	log.Println("Starting RTC check...")

	if _, err := host.Init(); err != nil {
		log.Fatalf("Failed to initialize periph: %v", err)
	}
	bus, err := i2creg.Open(*busName)
	if err != nil {
		log.Fatalf("Failed to open I2C bus %q: %v", *busName, err)
	}
	defer bus.Close()

	dev := ds3231.New(bus, uint16(*addr))
	log.Printf("Using %s", dev)

	stopped, err := dev.OscillatorStopped()
	if err != nil {
		log.Fatalf("Failed to read status: %v", err)
	}
	if stopped {
		log.Println("Oscillator stop flag is set, the stored time is not reliable")
	}

	if *set {
		now := time.Now().UTC()
		if err := dev.Set(now); err != nil {
			log.Fatalf("Failed to set RTC: %v", err)
		}
		log.Printf("Set RTC to %s", now.Format(time.RFC3339))
	}

	report := func() {
		t, err := dev.Read()
		if err != nil {
			log.Printf("Failed to read RTC: %v", err)
			return
		}
		sys := time.Now().UTC()
		log.Printf("RTC %s system %s drift %v", t.Format(time.RFC3339), sys.Format(time.RFC3339), sys.Sub(t).Round(time.Millisecond))
	}
	report()

	if temp, err := dev.Temperature(); err == nil {
		log.Printf("Temperature %.2f C", temp)
	}

	if !*watch {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigChan:
			log.Println("Shutting down...")
			return
		case <-ticker.C:
			report()
		}
	}
}
