package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteUnit(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	params := UnitParams{
		Name:        "tingxie",
		Description: "Tingxie transcription service",
		Binary:      "/usr/local/bin/tingxie",
		Config:      filepath.Join(dir, "tingxie", "config.toml"),
		Env:         map[string]string{"TINGXIE_ADDR": "127.0.0.1:5001"},
	}
	path, err := WriteUnit(params)
	if err != nil {
		t.Fatalf("WriteUnit: %v", err)
	}
	if path != UnitPath("tingxie") {
		t.Fatalf("path = %s, want %s", path, UnitPath("tingxie"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read unit: %v", err)
	}
	unit := string(data)
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/tingxie serve --config") {
		t.Fatalf("missing ExecStart:\n%s", unit)
	}
	if !strings.Contains(unit, "Environment=TINGXIE_ADDR=127.0.0.1:5001") {
		t.Fatalf("missing Environment line:\n%s", unit)
	}
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if _, ok := Status("tingxie"); ok {
		t.Fatal("unit should be absent")
	}
	if _, err := WriteUnit(UnitParams{Name: "tingxie", Binary: "/bin/true", Config: filepath.Join(dir, "c.toml")}); err != nil {
		t.Fatalf("WriteUnit: %v", err)
	}
	if _, ok := Status("tingxie"); !ok {
		t.Fatal("unit should be present")
	}
}
