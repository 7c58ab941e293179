// Package doctor checks the environment a transcription deployment needs.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tingxie/internal/config"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	asrDir, vadDir, puncDir := cfg.ModelDirs()
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkFFmpeg(cfg.Media.FFmpegPath),
		checkCommand("worker", cfg.Engine.WorkerCommand),
		checkDir("asr model", asrDir),
		checkDir("vad model", vadDir),
		checkDir("punc model", puncDir),
		checkWritable("transcripts", cfg.Paths.TranscriptsDir),
	}
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkDir(label, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("missing: %s", path)}
	}
	if !info.IsDir() {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("not a directory: %s", path)}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkCommand(label, cmd string) Result {
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; point at an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkFFmpeg(binary string) Result {
	if binary == "" {
		binary = "ffmpeg"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: "ffmpeg", Pass: false, Detail: "ffmpeg not found; install it and/or set media.ffmpeg_path"}
	}
	out, err := exec.Command(resolved, "-version").Output()
	if err != nil {
		return Result{Name: "ffmpeg", Pass: false, Detail: fmt.Sprintf("found at %s but -version failed: %v", resolved, err)}
	}
	first := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	return Result{Name: "ffmpeg", Pass: true, Detail: first}
}

func checkWritable(label, dir string) Result {
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	_ = os.Remove(probe)
	return Result{Name: label, Pass: true, Detail: dir}
}
