package canopywatch

import (
	"encoding/json"
	"os"
)

// WriteJson serialises data to a JSON file at path. Grounded on the
// teacher's json.go WriteJson, with the TileDB VFS plumbing stripped:
// every raster in this domain is opened through godal (which carries its
// own VSI layer), so summary JSON output uses an ordinary local path.
func WriteJson(path string, data any) (int, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(path, jsn, 0o644); err != nil {
		return 0, err
	}

	return len(jsn), nil
}

// JsonDumps constructs a JSON string of the supplied data.
func JsonDumps(data any) (string, error) {
	jsn, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return string(jsn), nil
}

// JsonIndentDumps constructs a JSON string of the supplied data using an
// indentation of four spaces.
func JsonIndentDumps(data any) (string, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "", err
	}

	return string(jsn), nil
}
