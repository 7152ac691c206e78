package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/schema"
)

// DefaultProjectsFile is the projects file looked up in the working directory
const DefaultProjectsFile = "acurast.json"

// ErrProjectNotFound is returned when a named project is not in the file
var ErrProjectNotFound = errors.New("project not found")

// LoadProjects loads and parses a projects file. When v is set the document
// is validated against the projects schema first.
func LoadProjects(path string, v *schema.Validator) (*model.ProjectsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects file: %w", err)
	}

	if v != nil {
		if err := v.ValidateBytes(data); err != nil {
			return nil, fmt.Errorf("projects file %s is invalid: %s", path, strings.Join(schema.Problems(err), "; "))
		}
	}

	file, err := ParseProjects(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse projects file %s: %w", path, err)
	}
	return file, nil
}

// ParseProjects parses a projects document, trying JSON first, then YAML
func ParseProjects(data []byte) (*model.ProjectsFile, error) {
	var file model.ProjectsFile

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &file); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	if file.Projects == nil {
		file.Projects = map[string]model.ProjectConfig{}
	}
	for name, cfg := range file.Projects {
		if cfg.ProjectName == "" {
			cfg.ProjectName = name
			file.Projects[name] = cfg
		}
	}
	return &file, nil
}

// SaveProjects writes a projects file (JSON or YAML based on extension)
func SaveProjects(path string, file *model.ProjectsFile) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(file)
	default:
		data, err = json.MarshalIndent(file, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode projects file: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write projects file to %s: %w", path, err)
	}
	return nil
}

// Names returns the project names of a file, sorted
func Names(file *model.ProjectsFile) []string {
	names := make([]string, 0, len(file.Projects))
	for name := range file.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectProject returns the named project. An empty name selects the only
// project of the file.
func SelectProject(file *model.ProjectsFile, name string) (model.ProjectConfig, error) {
	if name == "" {
		switch len(file.Projects) {
		case 0:
			return model.ProjectConfig{}, fmt.Errorf("%w: the projects file is empty", ErrProjectNotFound)
		case 1:
			for _, cfg := range file.Projects {
				return cfg, nil
			}
		default:
			return model.ProjectConfig{}, fmt.Errorf("multiple projects defined, choose one of: %s", strings.Join(Names(file), ", "))
		}
	}

	cfg, ok := file.Projects[name]
	if !ok {
		return model.ProjectConfig{}, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return cfg, nil
}

// AddProject adds cfg under its project name. Existing projects are never
// replaced.
func AddProject(file *model.ProjectsFile, cfg model.ProjectConfig) error {
	if cfg.ProjectName == "" {
		return fmt.Errorf("project name is required")
	}
	if !model.ValidProjectName(cfg.ProjectName) {
		return fmt.Errorf("invalid project name %q: use letters, digits, '.', '_' or '-' and no leading '.'", cfg.ProjectName)
	}
	if file.Projects == nil {
		file.Projects = map[string]model.ProjectConfig{}
	}
	if _, exists := file.Projects[cfg.ProjectName]; exists {
		return fmt.Errorf("project %s already exists", cfg.ProjectName)
	}
	file.Projects[cfg.ProjectName] = cfg
	return nil
}
