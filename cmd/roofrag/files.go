package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/siherrmann/roofrag/helper"
)

// readJSON decodes the file at path into a value of type T.
func readJSON[T any](path string) (T, error) {
	var value T
	data, err := os.ReadFile(path) // #nosec G304 -- paths are CLI arguments
	if err != nil {
		return value, helper.NewError("read "+path, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, helper.NewError("decode "+path, err)
	}
	return value, nil
}

// writeJSON writes value as indented JSON, replacing the file atomically.
func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return helper.NewError("encode "+path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return helper.NewError("create "+dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return helper.NewError("write "+path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return helper.NewError("write "+path, err)
	}
	if err := tmp.Close(); err != nil {
		return helper.NewError("write "+path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return helper.NewError("write "+path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
