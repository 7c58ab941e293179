package main

import (
	"fmt"
	"os"

	"tingxie/internal/control"
	"tingxie/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "tingxie",
		Short: "Tingxie — local Chinese speech-to-text transcription service",
		Long: `Tingxie converts uploaded video or audio into Chinese text, fully offline:
ffmpeg extracts and normalizes the audio, a local FunASR worker recognizes each
15-second chunk, and the fused transcript is saved with punctuation restored.

Key commands:
  start|stop|restart         Daemon lifecycle (upload UI at http://127.0.0.1:5001)
  transcribe <file>          One-shot transcription from the command line
  batch <dir>                Fuse an existing directory of chunk_*.wav segments
  status [--json]|health     Daemon liveness and recent transcripts
  doctor                     Check ffmpeg, worker, and model directories
  models list|check          Inspect the local ModelScope model directories
  service install|uninstall|status   systemd user unit helper (Linux)
  tail-log|test-hook         Log tail, manual hook run

Notable flags/env:
  --addr <host:port>         Listen address for this run
  --metrics                  Enable /metrics (Prometheus text)
  Env overrides: TINGXIE_ADDR, TINGXIE_LOG_LEVEL/FORMAT,
                 TINGXIE_CHUNK_SECONDS, TINGXIE_METRICS_ENABLED`,
		Example: `  tingxie start --addr 127.0.0.1:5001
  tingxie transcribe lecture.mp4
  tingxie batch /tmp/segments -o lecture.txt
  tingxie doctor
  tingxie models check
  tingxie service install --env TINGXIE_METRICS_ENABLED=1
  tingxie status --json`,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("Tingxie v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/tingxie/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewServiceCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewBatchCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))

	// Hidden internal serve command used by start.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	return root.Execute()
}
