package verify

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sift/internal/errs"
)

// TestCase is one rule's test document: snippets that must not match and
// snippets that must.
type TestCase struct {
	ID      string   `yaml:"id"`
	Valid   []string `yaml:"valid"`
	Invalid []string `yaml:"invalid"`
}

// LoadCases reads every *.yml / *.yaml test case under the given directories.
// Two cases for the same rule id are an error. A directory that does not
// exist contributes no cases; the caller warns when none are found.
func LoadCases(dirs []string) ([]TestCase, error) {
	var cases []TestCase
	seen := map[string]string{}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isYAML(path) {
				return nil
			}
			tc, err := loadCaseFile(path)
			if err != nil {
				return err
			}
			if prev, dup := seen[tc.ID]; dup {
				return errs.Newf(errs.RuleLoadError,
					"duplicate test case for rule %q in %s and %s", tc.ID, prev, path)
			}
			seen[tc.ID] = path
			cases = append(cases, tc)
			return nil
		})
		if err != nil {
			if _, ok := err.(*errs.Error); ok {
				return nil, err
			}
			return nil, errs.Wrap(errs.RuleLoadError, "cannot read test cases from "+dir, err)
		}
	}
	return cases, nil
}

func loadCaseFile(path string) (TestCase, error) {
	var tc TestCase
	raw, err := os.ReadFile(path)
	if err != nil {
		return tc, errs.Wrap(errs.RuleLoadError, "cannot read "+path, err)
	}
	if err := yaml.Unmarshal(raw, &tc); err != nil {
		return tc, errs.Wrap(errs.RuleLoadError, "invalid test case in "+path, err)
	}
	if tc.ID == "" {
		return tc, errs.New(errs.RuleLoadError, "test case in "+path+" has no id")
	}
	return tc, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}
