// Package dump serializes stack snapshots to CBOR for post-mortem
// inspection.
package dump

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"jsstack/pkg/stack"
)

// Canonical mode keeps dumps of the same stack byte-identical.
var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dump: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Dump is the file format: a snapshot plus where it was taken.
type Dump struct {
	Reason   string         `cbor:"reason"`
	Trace    []string       `cbor:"trace"`
	Snapshot stack.Snapshot `cbor:"snapshot"`
}

// Marshal serializes d to CBOR bytes.
func Marshal(d *Dump) ([]byte, error) {
	return encMode.Marshal(d)
}

// Unmarshal deserializes a Dump from CBOR bytes.
func Unmarshal(data []byte) (*Dump, error) {
	var d Dump
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("dump: unmarshal: %w", err)
	}
	return &d, nil
}

// WriteFile writes d to path.
func WriteFile(path string, d *Dump) error {
	data, err := Marshal(d)
	if err != nil {
		return fmt.Errorf("dump: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	return nil
}

// ReadFile reads a dump written by WriteFile.
func ReadFile(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}
	return Unmarshal(data)
}
