package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"roktrack/pkg/com"
	"roktrack/pkg/config"
	"roktrack/pkg/device"
	"roktrack/pkg/drive"
	"roktrack/pkg/logging"
	"roktrack/pkg/model"
	"roktrack/pkg/notify"
	"roktrack/pkg/pilot"
	"roktrack/pkg/probe"
	"roktrack/pkg/speaker"
	"roktrack/pkg/version"
)

const defaultConfigPath = "configs/roktrack.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the YAML or TOML config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Roktrack started", "version", version.Version, "mode", cfg.Drive.Mode, "driver", cfg.Drive.Driver)

	results := probe.Run(ctx, startupProbes(cfg))
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	mode, err := model.ParseMode(cfg.Drive.Mode)
	if err != nil {
		return err
	}

	drivers, closeDrivers, err := initDrivers(cfg)
	if err != nil {
		return fmt.Errorf("failed to open drivers: %w", err)
	}
	defer closeDrivers()

	dev := device.New(drivers, cfg.PWM.PowerLeft, cfg.PWM.PowerRight, cfg.Drive.TurnAdj)
	go func() { _ = dev.Run(ctx) }()

	worker, closeVision, err := initVision(cfg, mode)
	if err != nil {
		return fmt.Errorf("failed to initialize vision: %w", err)
	}
	defer closeVision()
	go func() { _ = worker.Run(ctx) }()

	transport, err := initTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	neighbors := make(chan com.Neighbor, 32)
	go func() {
		if err := transport.Listen(ctx, neighbors); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("peer listener stopped", "component", "com", "error", err)
		}
	}()
	caster := com.NewBroadcaster(transport, cfg.Com.CastInterval.D())
	go func() { _ = caster.Run(ctx) }()

	spk := speaker.New(cfg.AudioDir(), cfg.System.Lang, cfg.System.LogSpeakerLevel)

	notifier := notify.New(cfg.Notification, cfg.SnapshotDir())
	go func() { _ = notifier.Run(ctx) }()

	st := pilot.New(mode, cfg.DefaultOn(), identifier(cfg.System.Identifier))
	env := &pilot.Env{
		Device:   dev,
		Vision:   worker.Commands(),
		Speaker:  spk,
		Notifier: notifier,
		OCR:      cfg.Vision.OCR,
		MaxTemp:  cfg.Drive.MaxTemp,
	}

	loop, err := drive.New(drive.Options{
		State:       st,
		Env:         env,
		Device:      dev,
		Neighbors:   neighbors,
		Batches:     worker.Batches(),
		Out:         caster,
		Router:      &drive.Router{OCR: cfg.Vision.OCR, Animal: cfg.Vision.AnimalAvailable()},
		Tick:        cfg.Drive.Tick.D(),
		NeighborTTL: cfg.Drive.NeighborTTL.D(),
		Appearance:  cfg.System.Appearance,
	})
	if err != nil {
		return err
	}

	spk.SpeakAt(slog.LevelInfo, "start_mowing")
	return loop.Run(ctx)
}

// identifier returns the configured peer id, or a random one when unset.
func identifier(configured int) uint8 {
	if configured >= pilot.MinIdentifier && configured <= pilot.MaxIdentifier {
		return uint8(configured)
	}
	id := pilot.MinIdentifier + rand.Intn(pilot.MaxIdentifier-pilot.MinIdentifier+1)
	slog.Info("drew random identifier", "component", "main", "id", id)
	return uint8(id)
}
