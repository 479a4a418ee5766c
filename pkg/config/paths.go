package config

import "path/filepath"

// LastImagePath is the frame the vision worker overwrites on every capture.
func (c *Config) LastImagePath() string {
	return filepath.Join(c.System.EphemeralDir, "vision.jpg")
}

// CropImagePath is the per-pylon crop fed to the OCR session.
func (c *Config) CropImagePath() string {
	return filepath.Join(c.System.EphemeralDir, "crop.jpg")
}

// SnapshotDir holds images kept for alert notifications.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.System.PersistentDir, "img")
}

// AudioDir is the root of the per-language speech cue files.
func (c *Config) AudioDir() string {
	return filepath.Join(c.System.AssetDir, "audio")
}
