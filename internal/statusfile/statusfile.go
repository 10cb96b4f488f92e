// Package statusfile maintains the "last updated" marker lines kept for
// every brand in a shared text file.
package statusfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"novawatch/internal/fsutil"
)

// Prefix is the start of a brand's marker line.
func Prefix(brand string) string {
	return fmt.Sprintf("**Last updated for `%s`**:", brand)
}

// Line is a brand's complete marker line, without the line break.
func Line(brand, date string) string {
	return fmt.Sprintf("%s %s", Prefix(brand), date)
}

// Apply returns `contents` with the brand's marker set to `date`. The first
// line that starts with the marker prefix is replaced, if there is none the
// marker is appended after a blank line.
func Apply(contents, brand, date string) string {
	prefix := Prefix(brand)
	line := Line(brand, date)

	lines := strings.SplitAfter(contents, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, prefix) {
			lines[i] = line + "\n"
			return strings.Join(lines, "")
		}
	}
	return contents + "\n" + line + "\n"
}

// Patch applies the brand's marker to the file at path, a missing file is
// treated as empty. The file is replaced through a rename so an interrupted
// write cannot truncate it, concurrent writers can still lose updates.
func Patch(path, brand, date string) error {
	contents, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read status file: %w", err)
	}

	patched := Apply(string(contents), brand, date)
	err = fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, patched)
		return err
	})
	if err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}
