package storage

import (
	"os"
	"path/filepath"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/errors"
)

// ModelArtifactStore exposes a filesystem path per (application, metric)
// that the model plugin reads and writes directly — the artifact itself
// is opaque to agora (§4.5: "the store exposes a filesystem path that
// plugins read/write directly").
type ModelArtifactStore struct {
	root string
}

func NewModelArtifactStore(storageRoot string) *ModelArtifactStore {
	return &ModelArtifactStore{root: storageRoot}
}

func (s *ModelArtifactStore) GetType() string { return StorageType }

// GetModelArtifactName returns the container path for the named metric's
// model artifact.
func (s *ModelArtifactStore) GetModelArtifactName(id appid.ID, metric string) string {
	return filepath.Join(s.root, id.Path(), "models", metric+".model")
}

func (s *ModelArtifactStore) GetModelParametersName(id appid.ID, metric string) string {
	return filepath.Join(s.root, id.Path(), "models", metric+".params.csv")
}

// Exists reports whether a model artifact has been produced for metric.
func (s *ModelArtifactStore) Exists(id appid.ID, metric string) (bool, error) {
	_, err := os.Stat(s.GetModelArtifactName(id, metric))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat model artifact for metric %q", metric)
}

// EnsureDir creates the artifact's parent directory so the plugin has
// somewhere to write before it runs.
func (s *ModelArtifactStore) EnsureDir(id appid.ID, metric string) error {
	dir := filepath.Dir(s.GetModelArtifactName(id, metric))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create model directory for metric %q", metric)
	}
	return nil
}

func (s *ModelArtifactStore) Erase(id appid.ID, metric string) error {
	if err := eraseContainer(s.GetModelArtifactName(id, metric)); err != nil {
		return err
	}
	return eraseContainer(s.GetModelParametersName(id, metric))
}
