// Package git keeps local credentials and database files out of version control.
package git

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// IsRepository reports whether dir is inside a Git work tree.
func IsRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// UpdateGitignore appends the missing entries to dir/.gitignore and returns
// the ones it added.
func UpdateGitignore(dir string, entries []string) ([]string, error) {
	path := filepath.Join(dir, ".gitignore")

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open or create .gitignore: %w", err)
	}
	defer file.Close()

	existing := make(map[string]bool)
	endsWithNewline := true
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		existing[strings.TrimSpace(line)] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading .gitignore: %w", err)
	}
	if info, err := file.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, info.Size()-1); err == nil {
			endsWithNewline = last[0] == '\n'
		}
	}

	var added []string
	for _, entry := range entries {
		if existing[entry] {
			continue
		}
		line := entry + "\n"
		if !endsWithNewline {
			line = "\n" + line
			endsWithNewline = true
		}
		if _, err := file.WriteString(line); err != nil {
			return added, fmt.Errorf("failed to write to .gitignore: %w", err)
		}
		existing[entry] = true
		added = append(added, entry)
	}
	return added, nil
}
