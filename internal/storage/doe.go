package storage

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/model"
)

// DoEStore persists the design-of-experiments row set and the scalar
// total_configurations counter of §4.5.
type DoEStore struct {
	root string
}

func NewDoEStore(storageRoot string) *DoEStore {
	return &DoEStore{root: storageRoot}
}

func (s *DoEStore) appDir(id appid.ID) string { return filepath.Join(s.root, id.Path()) }

func (s *DoEStore) GetType() string { return StorageType }

func (s *DoEStore) GetDoEName(id appid.ID) string {
	return filepath.Join(s.appDir(id), "doe.csv")
}

func (s *DoEStore) GetDoEParametersName(id appid.ID) string {
	return filepath.Join(s.appDir(id), "doe_parameters.csv")
}

func (s *DoEStore) GetTotalConfigurationsName(id appid.ID) string {
	return filepath.Join(s.appDir(id), "total_configurations.csv")
}

// configurationToValue canonicalizes a Configuration map into a single
// deterministic string, sorted by key, so row order in the csv is the
// only thing that needs to carry DoEModel.order.
func configurationToValue(cfg model.Configuration) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+cfg[k])
	}
	return strings.Join(parts, ";")
}

func configurationFromValue(s string) model.Configuration {
	cfg := make(model.Configuration)
	if s == "" {
		return cfg
	}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		cfg[k] = v
	}
	return cfg
}

// Store atomically replaces the doe container with m's rows, in
// DoEModel.Rows' deterministic order, and the total_configurations
// scalar.
func (s *DoEStore) Store(id appid.ID, m *model.DoEModel, totalConfigurations int) error {
	rows := m.Rows()
	csvRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		csvRows = append(csvRows, []string{r.ConfigurationID, configurationToValue(r.Configuration), strconv.Itoa(r.RemainingExplorations)})
	}
	if err := writeCSVAtomic(s.GetDoEName(id), []string{"configuration_id", "configuration", "remaining_explorations"}, csvRows); err != nil {
		return err
	}

	return writeCSVAtomic(s.GetTotalConfigurationsName(id), []string{"total"}, [][]string{{strconv.Itoa(totalConfigurations)}})
}

// Load rebuilds a DoEModel from the persisted rows and returns the
// total_configurations scalar (0 if never stored). Rows are inserted in
// their on-disk order.
func (s *DoEStore) Load(id appid.ID) (*model.DoEModel, int, error) {
	_, rows, err := readCSV(s.GetDoEName(id))
	if err != nil {
		return nil, 0, err
	}

	m := model.NewDoEModel()
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		remaining, _ := strconv.Atoi(row[2])
		m.Insert(row[0], configurationFromValue(row[1]), remaining)
	}

	_, totalRows, err := readCSV(s.GetTotalConfigurationsName(id))
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(totalRows) > 0 && len(totalRows[0]) > 0 {
		total, _ = strconv.Atoi(totalRows[0][0])
	}

	return m, total, nil
}

func (s *DoEStore) Erase(id appid.ID) error {
	for _, path := range []string{s.GetDoEName(id), s.GetTotalConfigurationsName(id)} {
		if err := eraseContainer(path); err != nil {
			return err
		}
	}
	return nil
}
