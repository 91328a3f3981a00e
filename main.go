package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"klutch/audio"
	"klutch/config"
	"klutch/live"
	"klutch/log"
	"klutch/screen"
	"klutch/session"
	"klutch/shutdown"
	"klutch/vision"
)

var version = "dev"

func main() {
	cfgFlags := config.Register(flag.CommandLine)
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("klutch %s\n", version)
		return
	}

	cfg, err := cfgFlags.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logDir, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve log dir: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	initCrashLog(logDir)

	if err := run(context.Background(), cfg); err != nil {
		if errors.Is(err, audio.ErrSelectionCancelled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "klutch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	defer actx.Close()

	device, err := pickDevice(actx, cfg)
	if err != nil {
		return err
	}

	classifier, err := vision.NewGeminiClassifier(ctx, cfg.APIKey, cfg.ClassifierModel)
	if err != nil {
		return err
	}

	dialer := live.NewDialer(live.Config{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Voice:    cfg.Voice,
		Persona:  cfg.Persona,
	})

	ctrl := session.NewController(session.Config{
		Audio:          actx,
		InputDevice:    device,
		Screen:         screen.NewDisplaySource(0),
		Dial:           dialer,
		Classifier:     classifier,
		Sink:           &consoleSink{},
		ReconnectDelay: cfg.ReconnectDelay,
	})

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	go func() {
		<-sig
		ctrl.Exit()
	}()

	log.SessionStart(cfg.Model, cfg.Voice, deviceName(device))
	return ctrl.Run(ctx)
}

func pickDevice(actx audio.Context, cfg config.Config) (*audio.DeviceInfo, error) {
	if cfg.Setup {
		return audio.SelectDevice(actx)
	}
	if cfg.Device == "" {
		return nil, nil // system default
	}
	devices, err := actx.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	want := strings.ToLower(cfg.Device)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no microphone matching %q", cfg.Device)
}

func deviceName(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "system default"
	}
	if audio.IsBluetooth(dev.Name) {
		return dev.Name + " (BT!)"
	}
	return dev.Name
}

func initCrashLog(logDir string) {
	f, err := os.OpenFile(filepath.Join(logDir, "crash_log.txt"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warnf("crash log unavailable: %v", err)
		return
	}
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		log.Warnf("crash log unavailable: %v", err)
	}
}

// consoleSink renders session events as plain stderr lines so the
// tool stays usable over ssh or inside a game overlay terminal.
type consoleSink struct{}

func (consoleSink) Status(state session.State, detail string) {
	if detail != "" {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", state, detail)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s]\n", state)
}

func (consoleSink) Level(float64) {}

func (consoleSink) Caption(text string) {
	fmt.Fprintf(os.Stderr, "  > %s\n", text)
}

func (consoleSink) FrameRate(int) {}

func (consoleSink) ContextLabel(label string) {
	fmt.Fprintf(os.Stderr, "context: %s\n", label)
}

func (consoleSink) Advisories(tips []string) {
	for _, tip := range tips {
		fmt.Fprintf(os.Stderr, "  tip: %s\n", tip)
	}
}

func (consoleSink) Muted(muted bool) {
	if muted {
		fmt.Fprintln(os.Stderr, "mic muted")
	} else {
		fmt.Fprintln(os.Stderr, "mic live")
	}
}
