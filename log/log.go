package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	captionFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: KLUTCH_LOG_PATH environment variable
	envPath := os.Getenv("KLUTCH_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	captionPath := filepath.Join(dir, "caption_log.txt")
	captionFile, err = os.OpenFile(captionPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if captionFile != nil {
		captionFile.Close()
		captionFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// CaptionText appends model speech text to caption_log.txt.
func CaptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	captionFile.WriteString(line)
}

func SessionStart(model, voice, inputDevice string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("model", model).
		Str("voice", voice).
		Str("input_device", inputDevice).
		Msg("session_start")
}

func SessionEnd(reconnects int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("reconnects", reconnects).
		Msg("session_end")
}

type SessionMetricsData struct {
	DurationS     float64
	SentBlocks    int
	SentAudioKB   float64
	SentAudioS    float64
	SentFrames    int
	SentFramesKB  float64
	RecvAudioKB   float64
	RecvAudioS    float64
	Interruptions int
	Reconnects    int
	Classifies    int
}

func SessionMetrics(m SessionMetricsData) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("duration_s", m.DurationS).
		Int("sent_blocks", m.SentBlocks).
		Float64("sent_audio_kb", m.SentAudioKB).
		Float64("sent_audio_s", m.SentAudioS).
		Int("sent_frames", m.SentFrames).
		Float64("sent_frames_kb", m.SentFramesKB).
		Float64("recv_audio_kb", m.RecvAudioKB).
		Float64("recv_audio_s", m.RecvAudioS).
		Int("interruptions", m.Interruptions).
		Int("reconnects", m.Reconnects).
		Int("classifies", m.Classifies).
		Msg("session_metrics")
}
