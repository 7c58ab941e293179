package control

import (
	"fmt"
	"os"
	"strings"

	"tingxie/internal/config"
	"tingxie/internal/service"

	"github.com/spf13/cobra"
)

const serviceName = "tingxie"

func newServiceInstallCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install systemd user unit (Linux)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			envPairs, _ := cmd.Flags().GetStringArray("env")
			env := make(map[string]string)
			for _, p := range envPairs {
				parts := strings.SplitN(p, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("bad env %q, want KEY=VAL", p)
				}
				env[parts[0]] = parts[1]
			}
			params := service.UnitParams{
				Name:        serviceName,
				Description: "Tingxie local speech transcription service",
				Binary:      exe,
				Config:      cfg.Paths.ConfigPath,
				Env:         env,
			}
			path, err := service.WriteUnit(params)
			if err != nil {
				return err
			}
			fmt.Printf("systemd unit written: %s\n", path)
			fmt.Println("Reload:  systemctl --user daemon-reload")
			fmt.Printf("Enable:  systemctl --user enable --now %s\n", serviceName)
			fmt.Printf("Stop:    systemctl --user stop %s\n", serviceName)
			return nil
		},
	}
	cmd.Flags().StringArray("env", nil, "Env to set in the unit (KEY=VAL)")
	return cmd
}

func newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove systemd user unit (Linux)",
		RunE: func(cmd *cobra.Command, args []string) error {
			unit := service.UnitPath(serviceName)
			_ = os.Remove(unit)
			fmt.Printf("removed %s (if present); stop with: systemctl --user stop %s\n", unit, serviceName)
			return nil
		},
	}
}

func newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show systemd unit path and whether it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := service.Status(serviceName)
			fmt.Printf("unit: %s\n", path)
			if ok {
				fmt.Println("status: present (enable with: systemctl --user enable --now", serviceName+")")
			} else {
				fmt.Println("status: missing (install via: tingxie service install)")
			}
			return nil
		},
	}
}
