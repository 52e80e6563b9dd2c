package colormodel

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelSet holds the reference histograms of every person as seen by one
// camera, Models[i] belongs to person i
type ModelSet struct {
	Camera int          `yaml:"camera"`
	Models []*Histogram `yaml:"models"`
}

// NewModelSet wraps freshly built histograms of a camera.  perm pairs every
// person with the label whose histogram becomes that person's model
func NewModelSet(cam int, hists []*Histogram, perm Permutation) (*ModelSet, error) {

	if len(hists) != len(perm) {
		return nil, fmt.Errorf("%w: %d histograms for %d persons", ErrModelCount, len(hists), len(perm))
	}

	if !perm.Valid() {
		return nil, fmt.Errorf("invalid permutation %v", perm)
	}

	m := &ModelSet{
		Camera: cam,
		Models: make([]*Histogram, len(hists)),
	}

	for person, label := range perm {
		h := hists[label].Clone()
		h.ID = person
		m.Models[person] = h
	}

	return m, nil
}

// Len returns the number of persons in the set
func (m *ModelSet) Len() int {
	return len(m.Models)
}

// LoadModelSet reads a model set written by Save, models are ordered by id
func LoadModelSet(path string) (*ModelSet, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("read model set: %w", err)
	}

	var m ModelSet

	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model set %s: %w", path, err)
	}

	sort.SliceStable(m.Models, func(i, j int) bool {
		return m.Models[i].ID < m.Models[j].ID
	})

	for i, h := range m.Models {
		if h.ID != i {
			return nil, fmt.Errorf("model set %s: missing person %d", path, i)
		}
	}

	return &m, nil
}

// Save writes the model set to a YAML file
func (m *ModelSet) Save(path string) error {

	data, err := yaml.Marshal(m)

	if err != nil {
		return fmt.Errorf("marshal model set: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model set: %w", err)
	}

	return nil
}
