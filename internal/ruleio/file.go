package ruleio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/virtualpaper/console/internal/domain"
)

// ReadFile decodes a bundle file, picking the format from its extension
func ReadFile(path string) ([]domain.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Decode(data, FormatFromPath(path))
}

// WriteFile encodes bundle to path.
// Uses atomic write pattern: temp file → sync → rename
func WriteFile(path string, bundle Bundle) error {
	data, err := Encode(bundle, FormatFromPath(path))
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return atomicWrite(path, data)
}

func atomicWrite(targetPath string, data []byte) error {
	// Same directory keeps the rename on one filesystem
	tempFile, err := os.CreateTemp(filepath.Dir(targetPath), ".rules-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to rename temp file to target: %w", err)
	}

	success = true
	return nil
}
