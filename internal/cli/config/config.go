// Package config merges configuration from defaults, an optional config
// file, environment variables and command-line flags, validates the result
// and derives the final engine options.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fclaiba/PDFConvertor/internal/convert"
	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

const (
	EnvPrefix         = "PDFCONVERTOR"
	DefaultConfigName = "pdfconvertor"
)

// Settings is the fully resolved CLI configuration: the engine options plus
// the CLI-only converter backend selection.
type Settings struct {
	converter.Options `mapstructure:",squash"`

	// Engine selects the conversion backend ("soffice" or "gotenberg").
	Engine string `mapstructure:"engine"`
	// GotenbergURL is the base URL of the Gotenberg service, required when
	// Engine is "gotenberg".
	GotenbergURL string `mapstructure:"gotenbergUrl"`
}

// LoadAndValidate loads configuration from all sources (defaults, file, env,
// flags), validates the merged result and derives the remaining values. The
// positional args become the input paths. Returns the populated Settings and
// the logger built from the effective verbosity.
func LoadAndValidate(cfgFile, appVersion string, flags *pflag.FlagSet, args []string) (Settings, *slog.Logger, error) {
	var cfg Settings
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags")
		} else {
			used := cfgFile
			if used == "" {
				used = DefaultConfigName + ".yaml (searched paths)"
			}
			return cfg, tempLogger, fmt.Errorf("error reading config file '%s': %w", used, err)
		}
	} else {
		cfg.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", cfg.ConfigFilePath))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Flag names differ from the config keys; aliases map them onto the
	// mapstructure tags of Settings.
	aliases := map[string]string{
		"outputDir":            "output",
		"maxWorkers":           "workers",
		"perJobTimeoutSeconds": "timeout",
		"maxFileSizeBytes":     "max-file-size",
		"outputQuality":        "quality",
		"supportedExtensions":  "ext",
		"gotenbergUrl":         "gotenberg-url",
		"reportFile":           "report",
		"reportFormat":         "report-format",
		"outputFormat":         "output-format",
	}
	for key, flagName := range aliases {
		if flag := flags.Lookup(flagName); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return cfg, tempLogger, fmt.Errorf("error binding flag '--%s': %w", flagName, err)
			}
		}
	}
	for _, name := range []string{"recursive", "force", "verbose", "engine"} {
		if flag := flags.Lookup(name); flag != nil {
			if err := v.BindPFlag(name, flag); err != nil {
				return cfg, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
			}
		}
	}

	cfg.AppVersion = appVersion

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Positional args always win over any inputs listed in the config file.
	if len(args) > 0 {
		cfg.Inputs = args
	}

	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	cfg.Logger = handler

	if err := validateAndDerive(&cfg, logger, flags); err != nil {
		return cfg, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", cfg.ConfigFilePath),
		slog.String("engine", cfg.Engine),
		slog.Int("inputs", len(cfg.Inputs)),
		slog.Bool("verbose", cfg.Verbose),
	)

	return cfg, logger, nil
}

// setDefaults establishes the default configuration values in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("outputDir", converter.DefaultOutputDir)
	v.SetDefault("recursive", converter.DefaultRecursive)
	v.SetDefault("supportedExtensions", converter.DefaultSupportedExtensions())
	v.SetDefault("maxFileSizeBytes", converter.DefaultMaxFileSizeBytes)
	v.SetDefault("maxWorkers", 0) // 0 selects an automatic count
	v.SetDefault("perJobTimeoutSeconds", int(converter.DefaultJobTimeout.Seconds()))
	v.SetDefault("outputQuality", string(converter.DefaultQuality))
	v.SetDefault("force", false)
	v.SetDefault("outputFormat", string(converter.DefaultOutputFormat))
	v.SetDefault("reportFile", "")
	v.SetDefault("reportFormat", "json")
	v.SetDefault("verbose", false)
	v.SetDefault("engine", convert.EngineSoffice)
	v.SetDefault("gotenbergUrl", "")
}

// validateAndDerive performs semantic validation on the merged configuration
// and computes derived fields. Errors wrap converter.ErrConfigValidation.
func validateAndDerive(cfg *Settings, logger *slog.Logger, flags *pflag.FlagSet) error {
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("%w: at least one input file or directory is required", converter.ErrConfigValidation)
	}

	absOutput, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve absolute output path '%s': %w", converter.ErrConfigValidation, cfg.OutputDir, err)
	}
	cfg.OutputDir = absOutput

	if cfg.MaxFileSizeBytes < 1024 {
		return fmt.Errorf("%w: maxFileSizeBytes must be at least 1024, got %d", converter.ErrConfigValidation, cfg.MaxFileSizeBytes)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: maxWorkers must be >= 0, got %d", converter.ErrConfigValidation, cfg.Workers)
	}
	if cfg.PerJobTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: perJobTimeoutSeconds must be > 0, got %d", converter.ErrConfigValidation, cfg.PerJobTimeoutSeconds)
	}
	cfg.JobTimeout = time.Duration(cfg.PerJobTimeoutSeconds) * time.Second

	quality, err := converter.ParseQuality(string(cfg.Quality))
	if err != nil {
		return fmt.Errorf("%w: %w", converter.ErrConfigValidation, err)
	}
	cfg.Quality = quality

	switch cfg.OutputFormat {
	case converter.OutputFormatText, converter.OutputFormatJSON:
	default:
		return fmt.Errorf("%w: invalid output format '%s' (expected text or json)", converter.ErrConfigValidation, cfg.OutputFormat)
	}

	switch cfg.ReportFormat {
	case "json", "yaml":
	default:
		return fmt.Errorf("%w: invalid report format '%s' (expected json or yaml)", converter.ErrConfigValidation, cfg.ReportFormat)
	}

	if len(cfg.SupportedExtensions) == 0 {
		cfg.SupportedExtensions = converter.DefaultSupportedExtensions()
	}
	for i, ext := range cfg.SupportedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			return fmt.Errorf("%w: empty entry in supportedExtensions", converter.ErrConfigValidation)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.SupportedExtensions[i] = ext
	}

	switch cfg.Engine {
	case convert.EngineSoffice:
	case convert.EngineGotenberg:
		if cfg.GotenbergURL == "" {
			return fmt.Errorf("%w: --gotenberg-url is required when --engine=gotenberg", converter.ErrConfigValidation)
		}
		cfg.GotenbergURL = strings.TrimRight(cfg.GotenbergURL, "/")
	default:
		return fmt.Errorf("%w: unknown engine '%s' (expected %s or %s)",
			converter.ErrConfigValidation, cfg.Engine, convert.EngineSoffice, convert.EngineGotenberg)
	}

	// The TUI only makes sense on an interactive terminal and conflicts with
	// verbose log output on the same stream.
	noTui := false
	if flag := flags.Lookup("no-tui"); flag != nil {
		noTui, _ = flags.GetBool("no-tui")
	}
	cfg.TuiEnabled = !noTui && !cfg.Verbose && term.IsTerminal(int(os.Stderr.Fd()))
	if cfg.Verbose && !noTui {
		logger.Debug("Verbose mode enabled, TUI disabled")
	}

	return nil
}
