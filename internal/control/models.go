package control

import (
	"fmt"
	"os"

	"tingxie/internal/config"

	"github.com/spf13/cobra"
)

// NewModelsCmd wires up the models subcommands (list/check).
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the local ModelScope model directories",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsCheckCmd(cfgPath))
	return cmd
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured model directories and their presence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			asrDir, vadDir, puncDir := cfg.ModelDirs()
			for _, m := range []struct {
				role string
				dir  string
			}{
				{"asr", asrDir},
				{"vad", vadDir},
				{"punc", puncDir},
			} {
				state := "missing"
				if info, err := os.Stat(m.dir); err == nil && info.IsDir() {
					state = "present"
				}
				fmt.Printf("%-5s %-8s %s\n", m.role, state, m.dir)
			}
			return nil
		},
	}
}

func newModelsCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fail if any model directory is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			asrDir, vadDir, puncDir := cfg.ModelDirs()
			missing := 0
			for _, dir := range []string{asrDir, vadDir, puncDir} {
				if info, err := os.Stat(dir); err != nil || !info.IsDir() {
					fmt.Printf("missing: %s\n", dir)
					missing++
				}
			}
			if missing > 0 {
				return fmt.Errorf("%d model directories missing; download them with modelscope into %s", missing, cfg.Models.CacheDir)
			}
			fmt.Println("all model directories present")
			return nil
		},
	}
}
