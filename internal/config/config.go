package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultChunkSeconds = 15
	DefaultSampleRate   = 16000
	defaultUploadMB     = 512
	defaultAddr         = "127.0.0.1:5001"
	defaultStateDir     = ".local/state/tingxie"
	defaultConfigDir    = ".config/tingxie"

	// The three ModelScope directories the recognition worker needs.
	DefaultASRModelDir  = "speech_seaco_paraformer_large_asr_nat-zh-cn-16k-common-vocab8404-pytorch"
	DefaultVADModelDir  = "speech_fsmn_vad_zh-cn-16k-common-pytorch"
	DefaultPuncModelDir = "punc_ct-transformer_cn-en-common-vocab471067-large"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Paths struct {
		StateDir       string `toml:"state_dir"`
		TranscriptsDir string `toml:"transcripts_dir"`
		LogPath        string `toml:"log_path"`
		PidPath        string `toml:"pid_path"`
		ConfigPath     string `toml:"-"`
	} `toml:"paths"`

	Models struct {
		CacheDir string `toml:"cache_dir"` // ModelScope cache root
		ASRDir   string `toml:"asr_dir"`   // relative to cache_dir/models/iic unless absolute
		VADDir   string `toml:"vad_dir"`
		PuncDir  string `toml:"punc_dir"`
	} `toml:"models"`

	Engine struct {
		WorkerCommand     string            `toml:"worker_command"`
		WorkerArgs        string            `toml:"worker_args"` // extra args, shell-quoted
		StartupTimeoutSec float64           `toml:"startup_timeout_sec"`
		Env               map[string]string `toml:"env"`
	} `toml:"engine"`

	Media struct {
		FFmpegPath   string `toml:"ffmpeg_path"`
		ChunkSeconds int    `toml:"chunk_seconds"`
		SampleRate   int    `toml:"sample_rate"`
		ExtraArgs    string `toml:"extra_args"` // appended to normalize invocations, shell-quoted
	} `toml:"media"`

	Pipeline struct {
		TimeoutSec float64 `toml:"timeout_sec"` // 0 disables the per-run budget
	} `toml:"pipeline"`

	Server struct {
		Addr        string `toml:"addr"`
		MaxUploadMB int    `toml:"max_upload_mb"`
	} `toml:"server"`

	Hook struct {
		Command    string            `toml:"command"`
		Args       []string          `toml:"args"`
		TimeoutSec float64           `toml:"timeout_sec"`
		Env        map[string]string `toml:"env"`
	} `toml:"hook"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Metrics struct {
		Enabled bool `toml:"enabled"`
	} `toml:"metrics"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDir)

	cfg := &Config{}

	cfg.Paths.StateDir = stateDir
	cfg.Paths.TranscriptsDir = filepath.Join(stateDir, "transcripts")
	cfg.Paths.LogPath = filepath.Join(stateDir, "tingxie.log")
	cfg.Paths.PidPath = filepath.Join(stateDir, "tingxie.pid")

	cfg.Models.CacheDir = filepath.Join(stateDir, "modelscope_cache")
	cfg.Models.ASRDir = DefaultASRModelDir
	cfg.Models.VADDir = DefaultVADModelDir
	cfg.Models.PuncDir = DefaultPuncModelDir

	cfg.Engine.WorkerCommand = "funasr-worker"
	cfg.Engine.StartupTimeoutSec = 120
	cfg.Engine.Env = map[string]string{}

	cfg.Media.FFmpegPath = "ffmpeg"
	cfg.Media.ChunkSeconds = DefaultChunkSeconds
	cfg.Media.SampleRate = DefaultSampleRate

	cfg.Server.Addr = defaultAddr
	cfg.Server.MaxUploadMB = defaultUploadMB

	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Metrics.Enabled = true

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, cfg.Paths.TranscriptsDir, filepath.Dir(cfg.Paths.LogPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ModelDirs resolves the three required model directories. Relative entries
// resolve under <cache_dir>/models/iic, matching the ModelScope cache layout.
func (c *Config) ModelDirs() (asrDir, vadDir, puncDir string) {
	root := filepath.Join(c.Models.CacheDir, "models", "iic")
	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(root, dir)
	}
	return resolve(c.Models.ASRDir), resolve(c.Models.VADDir), resolve(c.Models.PuncDir)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TINGXIE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TINGXIE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TINGXIE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TINGXIE_CHUNK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Media.ChunkSeconds = n
		}
	}
	if v := os.Getenv("TINGXIE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v != "0" && strings.ToLower(v) != "false"
	}
}
