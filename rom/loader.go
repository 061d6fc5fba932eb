package rom

import (
	"fmt"
	"os"
)

// LoadControlFile reads path and opens it as a control ROM image,
// matching ParseSIDFile's path-to-bytes-to-parse split (sid_parser.go)
// generalized to the two ROM images this package handles.
func LoadControlFile(path string, acceptUnknown bool) (*ControlROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rom: read control ROM %q: %w", path, err)
	}
	return OpenControl(data, acceptUnknown)
}

// LoadPCMFile reads path and opens it as a PCM ROM image.
func LoadPCMFile(path string, acceptUnknown bool) (*PCMROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rom: read PCM ROM %q: %w", path, err)
	}
	return OpenPCM(data, acceptUnknown)
}
