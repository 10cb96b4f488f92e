// Package fsutil holds the file writing helpers shared by the sinks.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic creates the parent directory of `path`, streams `write`
// into a temporary file next to it and renames it over `path`. A failure at
// any point leaves the previous contents of `path` intact.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	buffered := bufio.NewWriter(tmp)
	err = write(buffered)
	if err != nil {
		return err
	}
	err = buffered.Flush()
	if err != nil {
		return err
	}
	err = tmp.Sync()
	if err != nil {
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	err = os.Chmod(tmpName, 0o644)
	if err != nil {
		return err
	}
	err = os.Rename(tmpName, path)
	if err != nil {
		return err
	}
	committed = true
	return nil
}
