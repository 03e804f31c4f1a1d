package lang

import (
	"encoding/json"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// InferFromProject guesses the dominant language of a project root so that
// ad-hoc runs can omit the language flag. Manifest files are checked first;
// when none is found the recognized source extensions under root are counted
// (top two directory levels only).
func InferFromProject(root string) (Language, bool) {
	if l, ok := inferFromManifests(root); ok {
		return l, ok
	}
	return inferFromSources(root)
}

func inferFromManifests(root string) (Language, bool) {
	if fileExists(filepath.Join(root, "go.mod")) {
		return Go, true
	}
	if ok, l := nodeManifest(root); ok {
		return l, true
	}
	if cargo := filepath.Join(root, "Cargo.toml"); fileExists(cargo) {
		var manifest struct {
			Package struct {
				Name string `toml:"name"`
			} `toml:"package"`
		}
		if data, err := os.ReadFile(cargo); err == nil && toml.Unmarshal(data, &manifest) == nil {
			return Rust, true
		}
	}
	if py := filepath.Join(root, "pyproject.toml"); fileExists(py) {
		var manifest struct {
			Project struct {
				Name string `toml:"name"`
			} `toml:"project"`
		}
		if data, err := os.ReadFile(py); err == nil && toml.Unmarshal(data, &manifest) == nil {
			return Python, true
		}
	}
	if fileExists(filepath.Join(root, "setup.py")) || fileExists(filepath.Join(root, "requirements.txt")) {
		return Python, true
	}
	if fileExists(filepath.Join(root, "pom.xml")) || fileExists(filepath.Join(root, "build.gradle")) {
		return Java, true
	}
	if fileExists(filepath.Join(root, "build.gradle.kts")) {
		return Kotlin, true
	}
	return "", false
}

// nodeManifest distinguishes TypeScript from JavaScript projects: a parsable
// package.json plus a tsconfig.json means TypeScript.
func nodeManifest(root string) (bool, Language) {
	pkg := filepath.Join(root, "package.json")
	data, err := os.ReadFile(pkg)
	if err != nil {
		return false, ""
	}
	var manifest map[string]interface{}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return false, ""
	}
	if fileExists(filepath.Join(root, "tsconfig.json")) {
		return true, TypeScript
	}
	return true, JavaScript
}

func inferFromSources(root string) (Language, bool) {
	counts := make(map[Language]int)
	countDir(root, counts, 2)

	var best Language
	bestCount := 0
	for _, l := range All {
		if counts[l] > bestCount {
			best = l
			bestCount = counts[l]
		}
	}
	return best, bestCount > 0
}

func countDir(dir string, counts map[Language]int, depth int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if depth > 1 && name[0] != '.' && name != "node_modules" && name != "vendor" && name != "target" {
				countDir(filepath.Join(dir, name), counts, depth-1)
			}
			continue
		}
		if l, ok := FromExtension(filepath.Ext(name)); ok {
			counts[l]++
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
