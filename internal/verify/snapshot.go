package verify

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// snapshotFile records the expected rewrite output per invalid snippet of
// one rule, stored as <snapshot-dir>/<rule-id>.yml.
type snapshotFile struct {
	ID        string            `yaml:"id"`
	Snapshots map[string]string `yaml:"snapshots"`
}

func snapshotPath(dir, ruleID string) string {
	return filepath.Join(dir, ruleID+".yml")
}

// loadSnapshots reads a rule's snapshot file. A missing file yields an empty
// set; update mode fills it in.
func loadSnapshots(dir, ruleID string) (*snapshotFile, error) {
	sf := &snapshotFile{ID: ruleID, Snapshots: map[string]string{}}

	raw, err := os.ReadFile(snapshotPath(dir, ruleID))
	if os.IsNotExist(err) {
		return sf, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, sf); err != nil {
		return nil, err
	}
	if sf.Snapshots == nil {
		sf.Snapshots = map[string]string{}
	}
	return sf, nil
}

func (sf *snapshotFile) save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	out, err := yaml.Marshal(sf)
	if err != nil {
		return err
	}
	return os.WriteFile(snapshotPath(dir, sf.ID), out, 0o644)
}
