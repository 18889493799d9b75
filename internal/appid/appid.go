// Package appid defines the application identity used throughout agora:
// the triple (name, block, version) that uniquely identifies a managed
// application and keys the Application Manager's registry.
package appid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/teranos/agora/internal/errors"
)

// ID is the immutable (name, block, version) triple. Zero value is not
// valid; always construct via Parse or New.
type ID struct {
	Name    string
	Block   string
	Version string
}

// New builds an ID from its three components, validating each is
// non-empty and free of the path/canonical-form separators.
func New(name, block, version string) (ID, error) {
	id := ID{Name: name, Block: block, Version: version}
	if err := id.validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}

func (id ID) validate() error {
	for _, part := range []string{id.Name, id.Block, id.Version} {
		if part == "" {
			return errors.New("application id components must be non-empty")
		}
		if strings.ContainsAny(part, "^/") {
			return errors.Newf("application id component %q must not contain '^' or '/'", part)
		}
	}
	return nil
}

// String returns the canonical form "name^block^version", used as the
// Manager's map key and as the MQTT application-identifier segment.
func (id ID) String() string {
	return id.Name + "^" + id.Block + "^" + id.Version
}

// Path returns the filesystem-path form "name/block/version", used to
// address the application's directory under the storage root and the
// plugin workspace root.
func (id ID) Path() string {
	return filepath.Join(id.Name, id.Block, id.Version)
}

// Parse decodes a canonical "name^block^version" string, as found in the
// second segment of an MQTT topic.
func Parse(canonical string) (ID, error) {
	parts := strings.Split(canonical, "^")
	if len(parts) != 3 {
		return ID{}, errors.Newf("invalid application id %q: expected name^block^version", canonical)
	}
	return New(parts[0], parts[1], parts[2])
}

// Ensure fmt.Stringer is satisfied for %s formatting in logs.
var _ fmt.Stringer = ID{}
