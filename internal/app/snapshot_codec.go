package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// SnapshotFormat selects the on-disk snapshot encoding.
type SnapshotFormat string

const (
	SnapshotFormatJSON SnapshotFormat = "json"
	SnapshotFormatCBOR SnapshotFormat = "cbor"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	var err error
	cborEnc, err = encOptions.EncMode()
	if err != nil {
		panic("app: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("app: CBOR decoder initialization failed: " + err.Error())
	}
}

// ParseSnapshotFormat normalizes a format name; empty means JSON.
func ParseSnapshotFormat(raw string) (SnapshotFormat, error) {
	switch SnapshotFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SnapshotFormatJSON:
		return SnapshotFormatJSON, nil
	case SnapshotFormatCBOR:
		return SnapshotFormatCBOR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// EncodeSnapshot serializes snap in the requested format.
func EncodeSnapshot(snap Snapshot, format SnapshotFormat) ([]byte, error) {
	switch format {
	case "", SnapshotFormatJSON:
		encoded, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode snapshot json: %w", err)
		}
		return append(encoded, '\n'), nil
	case SnapshotFormatCBOR:
		encoded, err := cborEnc.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot cbor: %w", err)
		}
		return encoded, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// DecodeSnapshot parses content in the requested format.
func DecodeSnapshot(content []byte, format SnapshotFormat) (Snapshot, error) {
	var snap Snapshot
	switch format {
	case "", SnapshotFormatJSON:
		if err := json.Unmarshal(content, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot json: %w", err)
		}
	case SnapshotFormatCBOR:
		if err := cborDec.Unmarshal(content, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot cbor: %w", err)
		}
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return snap, nil
}
