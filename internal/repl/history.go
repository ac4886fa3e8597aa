package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const DefaultHistoryLimit = 1000

// History is the line history persisted between REPL runs. The zero path
// disables persistence.
type History struct {
	path    string
	limit   int
	entries []string
}

func NewHistory(path string, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{path: path, limit: limit}
}

// Load reads the history file. A missing file is not an error; loaded
// reports whether anything was read.
func (h *History) Load() (loaded bool, err error) {
	if h.path == "" {
		return false, nil
	}
	f, err := os.Open(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history load failed (%s): %w", h.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			h.entries = append(h.entries, line)
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("history load failed (%s): %w", h.path, err)
	}
	h.trim()
	return len(h.entries) > 0, nil
}

// Add appends line unless it repeats the previous entry.
func (h *History) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	h.trim()
}

func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

// Save rewrites the history file.
func (h *History) Save() error {
	if h.path == "" {
		return nil
	}
	if dir := filepath.Dir(h.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("history save failed (%s): %w", h.path, err)
		}
	}
	var b strings.Builder
	for _, e := range h.entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(h.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("history save failed (%s): %w", h.path, err)
	}
	return nil
}

func (h *History) trim() {
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]string(nil), h.entries[over:]...)
	}
}
