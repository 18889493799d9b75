package model

import (
	"sort"

	"github.com/teranos/agora/internal/errors"
)

// Configuration is a mapping from knob name to a string-encoded value.
type Configuration map[string]string

// Clone returns an independent copy, used whenever a configuration is
// handed out to a caller that might mutate it (e.g. JSON-encoding for the
// explore topic).
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// DoERow is one row of the design-of-experiments plan: a configuration
// plus the number of explorations still required across the fleet.
type DoERow struct {
	ConfigurationID    string
	Configuration      Configuration
	RemainingExplorations int
}

// DoEModel is the insertion-ordered mapping of §3's doe_model, with a
// round-robin cursor ("next") that survives deletion of the entry it
// currently points to — the Go substitute for the source's
// iterator-preserving std::map erase, per §9.
type DoEModel struct {
	rows  map[string]*DoERow
	order []string // insertion order; the round-robin cursor and Lookup walk it
	next  int       // index into order; -1 means "at end"
}

// NewDoEModel returns an empty model with the cursor at end().
func NewDoEModel() *DoEModel {
	return &DoEModel{rows: make(map[string]*DoERow), next: -1}
}

// Insert adds a row. If the cursor was at end() (no surviving rows), it
// is reset to the newly inserted row, matching "resettable to begin on
// structural changes" from §9. A row with no remaining explorations is
// not kept: inserting one removes any existing row with that id.
func (d *DoEModel) Insert(id string, cfg Configuration, remaining int) {
	if remaining <= 0 {
		d.remove(id)
		return
	}
	if _, exists := d.rows[id]; exists {
		d.rows[id].Configuration = cfg
		d.rows[id].RemainingExplorations = remaining
		return
	}
	d.rows[id] = &DoERow{ConfigurationID: id, Configuration: cfg, RemainingExplorations: remaining}
	d.order = append(d.order, id)
	if d.next == -1 {
		d.next = len(d.order) - 1
	}
}

// Len returns the number of surviving rows (remaining > 0).
func (d *DoEModel) Len() int {
	return len(d.rows)
}

// Empty reports whether every row has been exhausted.
func (d *DoEModel) Empty() bool {
	return len(d.rows) == 0
}

// Lookup returns the row matching a configuration, used by
// process_observation to check the observation's configuration against
// doe.required_explorations.
func (d *DoEModel) Lookup(cfg Configuration) (*DoERow, bool) {
	for _, id := range d.order {
		row, ok := d.rows[id]
		if !ok {
			continue
		}
		if configurationsEqual(row.Configuration, cfg) {
			return row, true
		}
	}
	return nil, false
}

func configurationsEqual(a, b Configuration) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// UpdateConfig decrements the remaining-explorations count for the row
// with the given configuration id and removes it when it reaches zero,
// advancing the round-robin cursor to the successor if it pointed at the
// removed row (§4.2's doe.update_config).
func (d *DoEModel) UpdateConfig(configurationID string) error {
	row, ok := d.rows[configurationID]
	if !ok {
		return errors.Newf("doe: unknown configuration id %q", configurationID)
	}
	row.RemainingExplorations--
	if row.RemainingExplorations > 0 {
		return nil
	}
	d.remove(configurationID)
	return nil
}

func (d *DoEModel) remove(configurationID string) {
	removedIdx := -1
	for i, id := range d.order {
		if id == configurationID {
			removedIdx = i
			break
		}
	}
	if removedIdx == -1 {
		return
	}
	delete(d.rows, configurationID)
	d.order = append(d.order[:removedIdx], d.order[removedIdx+1:]...)

	switch {
	case len(d.order) == 0:
		d.next = -1
	case d.next > removedIdx:
		d.next--
	case d.next == removedIdx:
		if d.next >= len(d.order) {
			d.next = 0
		}
	}
}

// Next returns the row the round-robin cursor currently points to, or
// false if the cursor is at end() (no surviving rows).
func (d *DoEModel) Next() (*DoERow, bool) {
	if d.next < 0 || d.next >= len(d.order) {
		return nil, false
	}
	return d.rows[d.order[d.next]], true
}

// Advance moves the cursor to the next surviving row, wrapping to the
// first row past the end — fair round-robin across all surviving
// configurations regardless of deletions in between (§4.2).
func (d *DoEModel) Advance() {
	if len(d.order) == 0 {
		d.next = -1
		return
	}
	d.next = (d.next + 1) % len(d.order)
}

// Rows returns a stable-ordered snapshot, used by the storage layer to
// serialize the model and by tests to assert invariants.
func (d *DoEModel) Rows() []DoERow {
	out := make([]DoERow, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.rows[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConfigurationID < out[j].ConfigurationID })
	return out
}
