// Package config resolves gavel settings from a YAML config file,
// GAVEL_* environment variables, and CLI flags, in ascending precedence.
// Each resolved value records where it came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries CLI flag values into resolution. Empty strings
// mean the flag was not set.
type ResolveOptions struct {
	ConfigPath string

	CLIDBPath        string
	CLIDataDir       string
	CLIModelPath     string
	CLITokenizerPath string
	CLIORTLibrary    string
	CLIListenAddr    string
	CLISeed          string
	CLIInterval      string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath        ResolvedValue `json:"db_path"`
	DataDir       ResolvedValue `json:"data_dir"`
	ModelPath     ResolvedValue `json:"model_path"`
	TokenizerPath ResolvedValue `json:"tokenizer_path"`
	ORTLibrary    ResolvedValue `json:"onnxruntime_library"`
	ListenAddr    ResolvedValue `json:"listen_addr"`
	Seed          ResolvedValue `json:"seed"`
	Interval      ResolvedValue `json:"retrain_interval"`
}

type fileConfig struct {
	DBPath  string `yaml:"db_path"`
	DataDir string `yaml:"data_dir"`
	Model   struct {
		Path          string `yaml:"path"`
		TokenizerPath string `yaml:"tokenizer_path"`
		ORTLibrary    string `yaml:"onnxruntime_library"`
	} `yaml:"model"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Retrain struct {
		Seed     string `yaml:"seed"`
		Interval string `yaml:"interval"`
	} `yaml:"retrain"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gavel", "config.yaml")
}

// Defaults used when neither config file, environment, nor CLI set a value.
const (
	DefaultDataDir    = "~/.gavel/data"
	DefaultListenAddr = ":5000"
	DefaultSeed       = "42"
	DefaultInterval   = "1h"
)

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.DataDir, cfg.DataDir, SourceConfig, path)
		apply(&out.ModelPath, cfg.Model.Path, SourceConfig, path)
		apply(&out.TokenizerPath, cfg.Model.TokenizerPath, SourceConfig, path)
		apply(&out.ORTLibrary, cfg.Model.ORTLibrary, SourceConfig, path)
		apply(&out.ListenAddr, cfg.Server.ListenAddr, SourceConfig, path)
		apply(&out.Seed, cfg.Retrain.Seed, SourceConfig, path)
		apply(&out.Interval, cfg.Retrain.Interval, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "GAVEL_DB")
	applyEnv(&out.DBPath, "GAVEL_DB_PATH")
	applyEnv(&out.DataDir, "GAVEL_DATA_DIR")
	applyEnv(&out.ModelPath, "GAVEL_MODEL")
	applyEnv(&out.TokenizerPath, "GAVEL_TOKENIZER")
	applyEnv(&out.ORTLibrary, "GAVEL_ONNXRUNTIME")
	applyEnv(&out.ListenAddr, "GAVEL_LISTEN")
	applyEnv(&out.Seed, "GAVEL_SEED")
	applyEnv(&out.Interval, "GAVEL_RETRAIN_INTERVAL")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.DataDir, opts.CLIDataDir, SourceCLI, "--data-dir")
	apply(&out.ModelPath, opts.CLIModelPath, SourceCLI, "--model")
	apply(&out.TokenizerPath, opts.CLITokenizerPath, SourceCLI, "--tokenizer")
	apply(&out.ORTLibrary, opts.CLIORTLibrary, SourceCLI, "--onnxruntime")
	apply(&out.ListenAddr, opts.CLIListenAddr, SourceCLI, "--listen")
	apply(&out.Seed, opts.CLISeed, SourceCLI, "--seed")
	apply(&out.Interval, opts.CLIInterval, SourceCLI, "--interval")

	applyDefault(&out.DataDir, DefaultDataDir)
	applyDefault(&out.ListenAddr, DefaultListenAddr)
	applyDefault(&out.Seed, DefaultSeed)
	applyDefault(&out.Interval, DefaultInterval)

	out.DBPath.Value = expandUserPath(out.DBPath.Value)
	out.DataDir.Value = expandUserPath(out.DataDir.Value)
	out.ModelPath.Value = expandUserPath(out.ModelPath.Value)
	out.TokenizerPath.Value = expandUserPath(out.TokenizerPath.Value)
	out.ORTLibrary.Value = expandUserPath(out.ORTLibrary.Value)

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func applyDefault(dst *ResolvedValue, value string) {
	if strings.TrimSpace(dst.Value) == "" {
		*dst = ResolvedValue{Value: value, Source: SourceDefault, From: "built-in default"}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
