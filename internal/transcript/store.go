// Package transcript persists fused transcripts under sanitized names.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const suffix = "_transcript.txt"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9\p{Han}._-]+`)

// Store writes transcripts into a fixed directory. Two uploads with the same
// sanitized name overwrite each other, last write wins.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// SanitizeName reduces an uploaded display name to a safe filename stem:
// directory components stripped, extension dropped, unsafe runs collapsed to
// a single underscore.
func SanitizeName(name string) string {
	// Uploads may carry either separator regardless of our platform.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._-")
	if name == "" {
		return "upload"
	}
	return name
}

// FileName returns the stored filename for a display name.
func FileName(displayName string) string {
	return SanitizeName(displayName) + suffix
}

// Save writes text as the transcript for displayName and returns the path.
// The write goes through a temp file and rename so a concurrent download
// never reads a half-written transcript.
func (s *Store) Save(displayName, text string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(s.Dir, FileName(displayName))
	tmp, err := os.CreateTemp(s.Dir, ".transcript-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return dest, nil
}

// Resolve maps a requested download filename to a path inside the store,
// rejecting traversal attempts and absent files.
func (s *Store) Resolve(name string) (string, error) {
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid transcript name %q", name)
	}
	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// List returns stored transcript filenames, newest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type stamped struct {
		name string
		mod  int64
	}
	out := make([]stamped, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, stamped{e.Name(), info.ModTime().UnixNano()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].mod > out[j].mod })
	names := make([]string, len(out))
	for i, s := range out {
		names[i] = s.name
	}
	return names, nil
}
