package main

import (
	"context"
	"fmt"
	"log/slog"

	"roktrack/pkg/com"
	"roktrack/pkg/config"
	"roktrack/pkg/device"
	"roktrack/pkg/model"
	"roktrack/pkg/pilot"
	"roktrack/pkg/probe"
	"roktrack/pkg/vision"
)

func startupProbes(cfg *config.Config) []probe.Probe {
	probes := []probe.Probe{
		{Name: "Ephemeral Dir", Check: probe.WritableDir(cfg.System.EphemeralDir), Critical: true},
		{Name: "Snapshot Dir", Check: probe.WritableDir(cfg.SnapshotDir()), Critical: false},
		{Name: "Audio Assets", Check: probe.Exists(cfg.AudioDir()), Critical: false},
	}

	if cfg.Vision.Detector == "subprocess" {
		var bin string
		if len(cfg.Vision.Command) > 0 {
			bin = cfg.Vision.Command[0]
		}
		probes = append(probes, probe.Probe{Name: "Detector Command", Check: probe.Executable(bin), Critical: true})
	}
	if len(cfg.Camera.Command) == 0 {
		probes = append(probes, probe.Probe{Name: "Still Image", Check: probe.Exists(cfg.Camera.Source), Critical: true})
	} else {
		probes = append(probes, probe.Probe{Name: "Camera Command", Check: probe.Executable(cfg.Camera.Command[0]), Critical: true})
	}
	if cfg.Com.Transport == "hci" {
		probes = append(probes,
			probe.Probe{Name: "hcitool", Check: probe.Executable("hcitool"), Critical: true},
			probe.Probe{Name: "hcidump", Check: probe.Executable("hcidump"), Critical: true},
		)
	}
	if cfg.Drive.Driver == "sysfs" {
		probes = append(probes, probe.Probe{Name: "GPIO", Check: probe.Exists(device.GPIOBase, device.ThermalZone), Critical: true})
	}
	probes = append(probes, probe.Probe{
		Name:     "Animal Models",
		Check:    probe.Exists(cfg.Vision.Models.Animal320, cfg.Vision.Models.Animal640),
		Critical: false,
	})
	return probes
}

func initDrivers(cfg *config.Config) (device.Drivers, func(), error) {
	switch cfg.Drive.Driver {
	case "sysfs":
		s, err := device.OpenSysfs(device.GPIOBase, device.ThermalZone, cfg.Pin)
		if err != nil {
			return device.Drivers{}, nil, err
		}
		return s.Drivers(), s.Close, nil
	case "sim", "":
		slog.Warn("using simulated drivers", "component", "main")
		return device.NewSim().Drivers(), func() {}, nil
	}
	return device.Drivers{}, nil, fmt.Errorf("unknown drive.driver %q", cfg.Drive.Driver)
}

// idleDetector finds nothing. It keeps the loop ticking on a bench without
// an inference worker.
type idleDetector struct{}

func (idleDetector) Detect(context.Context, string, vision.Session, int) ([]vision.Box, error) {
	return nil, nil
}

func initVision(cfg *config.Config, mode model.Mode) (*vision.Worker, func(), error) {
	var cam vision.Camera = &vision.CommandCamera{Args: cfg.Camera.Command, GrabTimes: cfg.Camera.GrabTimes}
	if len(cfg.Camera.Command) == 0 {
		cam = &vision.FileCamera{Source: cfg.Camera.Source}
	}

	var (
		det     vision.Detector = idleDetector{}
		cleanup                 = func() {}
	)
	switch cfg.Vision.Detector {
	case "subprocess":
		sd, err := vision.NewSubprocessDetector(cfg.Vision.Command, models(cfg.Vision.Models))
		if err != nil {
			return nil, nil, err
		}
		det = sd
		cleanup = func() { _ = sd.Close() }
	case "none":
		slog.Warn("detector disabled", "component", "main")
	default:
		return nil, nil, fmt.Errorf("unknown vision.detector %q", cfg.Vision.Detector)
	}

	w := vision.NewWorker(cam, det, vision.Options{
		ImagePath: cfg.LastImagePath(),
		CropPath:  cfg.CropImagePath(),
		Thresholds: vision.Thresholds{
			Pylon:    cfg.DetectThreshold.Pylon,
			Person:   cfg.DetectThreshold.Person,
			Roktrack: cfg.DetectThreshold.Roktrack,
			Animal:   cfg.DetectThreshold.Animal,
		},
		Session: pilot.SessionFor(mode, cfg.Vision.OCR),
		On:      cfg.DefaultOn(),
	})
	return w, cleanup, nil
}

func models(m config.ModelConfig) vision.Models {
	return vision.Models{
		vision.SessionPylon:  {vision.Width320: m.Pylon320, vision.Width640: m.Pylon640},
		vision.SessionAnimal: {vision.Width320: m.Animal320, vision.Width640: m.Animal640},
		vision.SessionOCR:    {vision.OCRSize: m.OCR96},
	}
}

func initTransport(ctx context.Context, cfg *config.Config) (com.Transport, error) {
	switch cfg.Com.Transport {
	case "hci":
		h := com.NewHCI(cfg.Com.HCIDevice)
		if err := h.Start(ctx); err != nil {
			return nil, err
		}
		return h, nil
	case "none", "":
		slog.Warn("peer transport disabled", "component", "main")
		return com.NewLoopback(), nil
	}
	return nil, fmt.Errorf("unknown com.transport %q", cfg.Com.Transport)
}
