package control

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tingxie/internal/config"
	"tingxie/internal/hook"
	"tingxie/internal/logging"
	"tingxie/internal/media"
	"tingxie/internal/pipeline"

	"github.com/spf13/cobra"
)

// NewTranscribeCmd runs the full pipeline on one media file.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <media-file>",
		Short: "Transcribe a video or audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			pipe, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			input := media.Input{Path: path, DisplayName: filepath.Base(path)}
			sum, err := pipe.Run(cmd.Context(), input)
			if err != nil {
				return err
			}

			fmt.Println(sum.Text)
			fmt.Fprintf(cmd.ErrOrStderr(), "transcript: %s (%d segments, %.1fs audio, %.1fs elapsed)\n",
				sum.TranscriptPath, sum.Segments, sum.AudioDuration.Seconds(), sum.Elapsed.Seconds())

			if output, _ := cmd.Flags().GetString("output"); output != "" {
				if err := os.WriteFile(output, []byte(sum.Text+"\n"), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			}

			fireHook, _ := cmd.Flags().GetBool("hook")
			if fireHook {
				r := hook.NewRunner(cfg, logger)
				if !r.Enabled() {
					return fmt.Errorf("no hook configured; set hook.command in %s", cfg.Paths.ConfigPath)
				}
				job := hook.Job{
					TranscriptPath: sum.TranscriptPath,
					Text:           sum.Text,
					DisplayName:    input.DisplayName,
					Timestamp:      time.Now(),
				}
				return r.Run(cmd.Context(), job)
			}
			return nil
		},
	}
	cmd.Flags().Bool("hook", false, "run the configured hook on the finished transcript")
	cmd.Flags().StringP("output", "o", "", "also write the transcript to this file")
	return cmd
}
