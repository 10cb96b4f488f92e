package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// localName turns `dir/name.ext` into `dir/name.local.ext`.
func localName(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readLayer[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfigOver reads a configuration file over `defaults`, `name` should
// come with a file extension. The following files are merged, higher number
// wins:
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// Zero values in the files never override a default. os.ErrNotExist is
// returned when neither file exists.
func ReadConfigOver[T any](name string, defaults T) (T, error) {
	out := defaults
	allNotFound := true

	for _, path := range []string{name, localName(name)} {
		layer, found, err := readLayer[T](path)
		if err != nil {
			return defaults, err
		}
		if !found {
			continue
		}
		err = mergo.Merge(&out, layer, mergo.WithOverride)
		if err != nil {
			return defaults, err
		}
		if path != name {
			slog.Info("merging config with local overrides", "local", path)
		}
		allNotFound = false
	}

	if allNotFound {
		return defaults, os.ErrNotExist
	}
	return out, nil
}
