// Package fsutil writes groups of files so that an encoding or staging
// failure leaves every target untouched.
package fsutil

import (
	"os"
	"path/filepath"

	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
)

// File is a rendered file waiting to be written.
type File struct {
	Path string
	Data []byte
}

// WriteAll stages every file in a temp file next to its target and renames
// the temp files into place only once all of them were staged.
func WriteAll(files []File) error {
	staged := make([]string, 0, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for _, f := range files {
		tmp, err := stage(f)
		if err != nil {
			cleanup()
			return err
		}
		staged = append(staged, tmp)
	}

	for i, f := range files {
		if err := os.Rename(staged[i], f.Path); err != nil {
			cleanup()
			return errors.WrapIO("rename", f.Path, err)
		}
	}
	return nil
}

// WriteFile writes one file through a temp file and rename.
func WriteFile(path string, data []byte) error {
	return WriteAll([]File{{Path: path, Data: data}})
}

func stage(f File) (string, error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return "", errors.WrapIO("create", "temp file", err)
	}
	defer func() { _ = tmp.Close() }()
	tmpPath := tmp.Name()

	if _, err := tmp.Write(f.Data); err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.WrapIO("write", f.Path, err)
	}
	if err := tmp.Chmod(constants.FilePermissions); err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.WrapIO("chmod", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.WrapIO("close", f.Path, err)
	}
	return tmpPath, nil
}
