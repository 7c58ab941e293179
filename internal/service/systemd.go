// Package service provides systemd user unit generation for Linux.
package service

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const unitTemplate = `[Unit]
Description={{.Description}}
After=network.target

[Service]
Type=simple
ExecStart={{.Binary}} serve --config {{.Config}}
Restart=on-failure
RestartSec=5
{{- range $k, $v := .Env }}
Environment={{$k}}={{$v}}
{{- end }}

[Install]
WantedBy=default.target
`

type UnitParams struct {
	Name        string
	Description string
	Binary      string
	Config      string
	Env         map[string]string
}

// UnitPath returns the user unit path for a service name.
func UnitPath(name string) string {
	return filepath.Join(userUnitDir(), fmt.Sprintf("%s.service", name))
}

func userUnitDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "systemd", "user")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "systemd", "user")
}

// WriteUnit writes a user-level systemd unit.
func WriteUnit(params UnitParams) (string, error) {
	if err := os.MkdirAll(filepath.Dir(params.Config), 0o755); err != nil {
		return "", err
	}
	unitDir := userUnitDir()
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(unitDir, fmt.Sprintf("%s.service", params.Name))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	tpl := template.Must(template.New("systemd").Parse(unitTemplate))
	if err := tpl.Execute(f, params); err != nil {
		return "", err
	}
	return path, nil
}

// Status reports the unit path and whether it exists.
func Status(name string) (string, bool) {
	path := UnitPath(name)
	_, err := os.Stat(path)
	return path, err == nil
}
