package launcher

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/teranos/agora/internal/errors"
)

// DefaultEntryScript is the fixed entry point every installed plugin
// directory must provide, per §4.6.
const DefaultEntryScript = "generate_model.sh"

// Manifest describes one installed plugin, read from a plugin.toml in
// the plugin's installed directory, mirroring the teacher's PluginConfig
// struct-tag style.
type Manifest struct {
	Name        string `toml:"name"`
	EntryScript string `toml:"entry_script"`
	Description string `toml:"description"`
}

// LoadManifest reads plugin.toml from dir, defaulting EntryScript to
// DefaultEntryScript when the manifest omits it.
func LoadManifest(dir string) (Manifest, error) {
	path := filepath.Join(dir, "plugin.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to read plugin manifest %q", path)
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to parse plugin manifest %q", path)
	}
	if m.EntryScript == "" {
		m.EntryScript = DefaultEntryScript
	}
	return m, nil
}
