package control

import (
	"fmt"
	"os"
	"path/filepath"

	"tingxie/internal/config"
	"tingxie/internal/logging"
	"tingxie/internal/pipeline"

	"github.com/spf13/cobra"
)

// NewBatchCmd transcribes a directory of pre-segmented WAV chunks.
func NewBatchCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <segments-dir>",
		Short: "Transcribe an existing directory of chunk_*.wav segments",
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

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			text, err := pipe.TranscribeSegments(cmd.Context(), dir)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				fmt.Println(text)
				return nil
			}
			if err := os.WriteFile(output, []byte(text+"\n"), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "write the fused transcript to a file instead of stdout")
	return cmd
}
