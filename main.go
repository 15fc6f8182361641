package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"voxscribe/audio"
	"voxscribe/beep"
	"voxscribe/clipboard"
	"voxscribe/config"
	"voxscribe/doctor"
	"voxscribe/level"
	"voxscribe/log"
	"voxscribe/metrics"
	"voxscribe/session"
	"voxscribe/studio"
	"voxscribe/transcriber"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// app carries what every front end (TUI, headless, subcommands) shares.
type app struct {
	cfg     *config.Config
	store   *session.Store
	tr      transcriber.Transcriber
	metrics *metrics.Metrics
}

func run(args []string) int {
	if len(args) > 0 && args[0] == "sessions" {
		return runSessions(args[1:])
	}

	fs := flag.NewFlagSet("voxscribe", flag.ContinueOnError)
	configFlag := fs.String("config", "", "path to config.yaml (default: OS config dir)")
	logPathFlag := fs.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	deviceFlag := fs.String("device", "", "Use named microphone device")
	setupFlag := fs.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	formatFlag := fs.String("format", "", "Audio format: flac or wav")
	langFlag := fs.String("lang", "", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	storageFlag := fs.String("storage", "", "Session storage backend: file or sqlite")
	metricsFlag := fs.String("metrics", "", "Serve Prometheus metrics on this address (e.g., localhost:9464)")
	versionFlag := fs.Bool("version", false, "Print version and exit")
	testFlag := fs.Bool("test", false, "Test mode (headless, stdin-driven), takes a WAV file")
	doctorFlag := fs.Bool("doctor", false, "Run system diagnostics and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *versionFlag {
		fmt.Printf("voxscribe %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := applyFlags(cfg, *formatFlag, *langFlag, *storageFlag, *metricsFlag, *deviceFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *doctorFlag {
		wavFile := ""
		if fs.NArg() > 0 {
			wavFile = fs.Arg(0)
		}
		return doctor.Run(doctor.Options{Config: cfg, WAVFile: wavFile})
	}

	if err := log.Init(log.Options{MaxSizeMB: cfg.Logging.MaxSizeMB, MaxBackups: cfg.Logging.MaxBackups}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.store.Close()
	log.SessionStart(a.tr.Name(), cfg.Recording.Format, cfg.Storage.Backend)
	if c, ok := a.tr.(*transcriber.Client); ok {
		go c.Warm()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, a.metrics); err != nil {
				log.Warnf("metrics server: %v", err)
			}
		}()
	}
	if !cfg.Recording.Cues {
		beep.Disable()
	}

	if *testFlag {
		if fs.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "Usage: voxscribe -test <wav-file>")
			return 1
		}
		return runTestMode(ctx, a, fs.Arg(0))
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		return 1
	}
	defer actx.Close()

	dev, err := resolveDevice(actx, cfg.Recording.Device, *setupFlag)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\nFalling back to default device\n", err)
	}

	return runTUI(ctx, a, actx, dev)
}

func applyFlags(cfg *config.Config, format, lang, storage, metricsAddr, device string) error {
	if format != "" {
		cfg.Recording.Format = format
	}
	if lang != "" {
		cfg.Transcription.Language = lang
	}
	if storage != "" {
		cfg.Storage.Backend = storage
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if device != "" {
		cfg.Recording.Device = device
	}
	return cfg.Validate()
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		store:   store,
		tr:      transcriber.New(cfg.TranscriberConfig()),
		metrics: metrics.New(),
	}, nil
}

func openStore(sc config.StorageConfig) (*session.Store, error) {
	backend, err := session.OpenBackend(sc.Backend, sc.Dir)
	if err != nil {
		return nil, err
	}
	return session.NewStore(backend, session.WithNamespace(sc.Namespace)), nil
}

// resolveDevice returns nil for the system default.
func resolveDevice(ctx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if name != "" {
		dev, err := audio.FindDevice(ctx, name)
		if err != nil {
			return nil, err
		}
		if dev == nil {
			return nil, fmt.Errorf("no microphone named %q", name)
		}
		return dev, nil
	}
	if setup {
		return audio.SelectDevice(ctx)
	}
	return nil, nil
}

func (a *app) newStudio(actx audio.Context, dev *audio.DeviceInfo, sink studio.EventSink) (*studio.Studio, error) {
	rc := a.cfg.Recording
	deps := studio.Deps{
		Audio:       actx,
		Device:      dev,
		Transcriber: a.tr,
		Store:       a.store,
		Events:      sink,
		Metrics:     a.metrics,
		Clipboard:   clipboard.Copy,
	}
	if rc.Cues {
		deps.Cues = beep.Cues{}
	}
	if rc.FrameRate > 0 {
		deps.Frames = level.Ticker(rc.FrameRate)
	}
	return studio.New(deps, studio.Options{
		Format:        rc.Format,
		SampleRate:    rc.SampleRate,
		ChunkInterval: rc.ChunkInterval(),
		LevelWindow:   rc.LevelWindowSize,
	})
}

// initCrashLog appends Go runtime crash output to crash_log.txt.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}
