// Package config collects the session settings from flags and
// environment variables and validates them before anything opens a
// device or dials out.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is everything the session needs from the outside world.
// Precedence per field: flag, then KLUTCH_* environment variable,
// then default.
type Config struct {
	APIKey  string `validate:"required"`
	Model   string `validate:"required"`
	Voice   string `validate:"required"`
	Persona string
	// Endpoint overrides the default websocket URL, mainly for
	// pointing at a local stub.
	Endpoint string `validate:"omitempty,url"`
	// ClassifierModel is the cheaper model used for frame
	// classification, separate from the live conversation model.
	ClassifierModel string `validate:"required"`

	Device  string
	Setup   bool
	LogPath string

	ReconnectDelay time.Duration `validate:"min=100ms,max=1m"`
}

const defaultPersona = "You are a calm, encouraging gaming copilot. " +
	"Watch the screen, listen to the player, and give short spoken tips. " +
	"Never talk over the action for more than one sentence at a time."

// Flags holds the registered command line flags until Parse has run.
type Flags struct {
	apiKey          *string
	model           *string
	voice           *string
	persona         *string
	endpoint        *string
	classifierModel *string
	device          *string
	setup           *bool
	logPath         *string
	reconnect       *time.Duration
}

// Register installs the session flags on fs. Call before fs.Parse.
func Register(fs *flag.FlagSet) *Flags {
	return &Flags{
		apiKey:          fs.String("apikey", "", "Gemini API key (or KLUTCH_API_KEY / GEMINI_API_KEY)"),
		model:           fs.String("model", "", "Live conversation model"),
		voice:           fs.String("voice", "", "Prebuilt voice name"),
		persona:         fs.String("persona", "", "System instruction for the session"),
		endpoint:        fs.String("endpoint", "", "Override the live websocket endpoint"),
		classifierModel: fs.String("classifier-model", "", "Model for screen classification"),
		device:          fs.String("device", "", "Use named microphone device"),
		setup:           fs.Bool("setup", false, "Select microphone device (otherwise uses system default)"),
		logPath:         fs.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)"),
		reconnect:       fs.Duration("reconnect", 3*time.Second, "Delay before reconnect attempts"),
	}
}

// Load resolves the parsed flags against the environment and
// validates the result.
func (f *Flags) Load() (Config, error) {
	cfg := Config{
		APIKey:          pick(*f.apiKey, "KLUTCH_API_KEY", ""),
		Model:           pick(*f.model, "KLUTCH_MODEL", "gemini-2.5-flash-native-audio-preview-12-2025"),
		Voice:           pick(*f.voice, "KLUTCH_VOICE", "Kore"),
		Persona:         pick(*f.persona, "KLUTCH_PERSONA", defaultPersona),
		Endpoint:        pick(*f.endpoint, "KLUTCH_ENDPOINT", ""),
		ClassifierModel: pick(*f.classifierModel, "KLUTCH_CLASSIFIER_MODEL", "gemini-2.5-flash"),
		Device:          *f.device,
		Setup:           *f.setup,
		LogPath:         *f.logPath,
		ReconnectDelay:  *f.reconnect,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, describe(err)
	}
	return cfg, nil
}

func pick(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

// describe turns validator errors into something a person can act on.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var parts []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "url":
			parts = append(parts, fmt.Sprintf("%s must be a URL", strings.ToLower(fe.Field())))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return fmt.Errorf("config: %s", strings.Join(parts, "; "))
}
