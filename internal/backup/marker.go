package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// MarkerFilename is the metadata marker file written as the last staging
// step. A staging directory without it is never a valid backup.
const MarkerFilename = "METADATA.json"

// WriteMarker persists the marker into the staging directory. Callers must
// only invoke this after all dumps and copies have succeeded.
func WriteMarker(stagingPath string, marker *Marker) error {
	path := filepath.Join(stagingPath, MarkerFilename)

	file, err := os.Create(path)
	if err != nil {
		return NewArchiveError("failed to create marker file", err).WithContext("path", path)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(marker); err != nil {
		return NewArchiveError("failed to encode marker", err).WithContext("path", path)
	}

	return nil
}

// ReadMarker loads the marker from a staging directory
func ReadMarker(stagingPath string) (*Marker, error) {
	path := filepath.Join(stagingPath, MarkerFilename)

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var marker Marker
	if err := json.NewDecoder(file).Decode(&marker); err != nil {
		return nil, err
	}

	return &marker, nil
}

// HasMarker reports whether a staging directory contains the marker file
func HasMarker(stagingPath string) bool {
	info, err := os.Stat(filepath.Join(stagingPath, MarkerFilename))
	return err == nil && info.Mode().IsRegular()
}
