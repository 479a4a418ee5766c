// Command roktrack-stop idles every motor output and exits. Use it when the
// main process died with the blade or the wheels still driven.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"roktrack/pkg/config"
	"roktrack/pkg/device"
)

var configPath = flag.String("config", "configs/roktrack.yaml", "Path to the YAML or TOML config file")

func main() {
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Emergency stop failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("All motors stopped")
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Drive.Driver != "sysfs" {
		fmt.Println("Driver is", cfg.Drive.Driver+"; nothing to stop")
		return nil
	}

	s, err := device.OpenSysfs(device.GPIOBase, device.ThermalZone, cfg.Pin)
	if err != nil {
		return err
	}
	defer s.Close()

	return stopAll(s.Drivers())
}

func stopAll(d device.Drivers) error {
	return errors.Join(d.Left.Stop(), d.Right.Stop(), d.Work.Off())
}
