package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/opforge/opforge/pkg/buildload"
)

const (
	// SettingsFileName declares the projects that make up a build.
	SettingsFileName = "settings.hcl"

	// BuildFileName describes a single project.
	BuildFileName = "build.yaml"
)

// hclSettingsFile is the decoded form of settings.hcl.
type hclSettingsFile struct {
	RootProjectName string   `hcl:"root_project_name,optional"`
	Include         []string `hcl:"include,optional"`
}

// Settings is the evaluated settings of a build rooted at RootDir.
type Settings struct {
	RootDir      string
	SettingsFile string
	RootProject  *Descriptor
}

// ReadSettings evaluates the settings file in rootDir. A missing settings
// file yields a single-project build named after the directory.
func ReadSettings(rootDir string) (*Settings, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build directory %s: %w", rootDir, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read build directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build directory %s is not a directory", absRoot)
	}

	settingsPath := filepath.Join(absRoot, SettingsFileName)
	var parsed hclSettingsFile

	if _, err := os.Stat(settingsPath); err == nil {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(settingsPath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", settingsPath, diags)
		}
		diags = gohcl.DecodeBody(file.Body, nil, &parsed)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode settings file %s: %w", settingsPath, diags)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		settingsPath = ""
	} else {
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}

	rootName := parsed.RootProjectName
	if rootName == "" {
		rootName = filepath.Base(absRoot)
	}

	root := &Descriptor{
		name: rootName,
		path: ":",
		dir:  absRoot,
	}
	for _, include := range parsed.Include {
		segments, err := splitProjectPath(include)
		if err != nil {
			return nil, err
		}
		root.include(segments)
	}

	return &Settings{
		RootDir:      absRoot,
		SettingsFile: settingsPath,
		RootProject:  root,
	}, nil
}

// splitProjectPath accepts "lib/core", "lib:core" and ":lib:core".
func splitProjectPath(include string) ([]string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(include), "/", ":")
	normalized = strings.Trim(normalized, ":")
	if normalized == "" {
		return nil, fmt.Errorf("invalid include %q: empty project path", include)
	}

	segments := strings.Split(normalized, ":")
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return nil, fmt.Errorf("invalid include %q: bad segment %q", include, s)
		}
	}
	return segments, nil
}

// Descriptor is a project declared in the settings file.
type Descriptor struct {
	name     string
	path     string
	dir      string
	children []*Descriptor
}

// Name implements buildload.ProjectDescriptor.
func (d *Descriptor) Name() string { return d.name }

// Path implements buildload.ProjectDescriptor.
func (d *Descriptor) Path() string { return d.path }

// ProjectDir implements buildload.ProjectDescriptor.
func (d *Descriptor) ProjectDir() string { return d.dir }

// BuildFile implements buildload.ProjectDescriptor.
func (d *Descriptor) BuildFile() string { return filepath.Join(d.dir, BuildFileName) }

// Children implements buildload.ProjectDescriptor.
func (d *Descriptor) Children() []buildload.ProjectDescriptor {
	children := make([]buildload.ProjectDescriptor, 0, len(d.children))
	for _, c := range d.children {
		children = append(children, c)
	}
	return children
}

// Find returns the descriptor with the given logical path.
func (d *Descriptor) Find(path string) (*Descriptor, bool) {
	if d.path == path {
		return d, true
	}
	for _, c := range d.children {
		if found, ok := c.Find(path); ok {
			return found, true
		}
	}
	return nil, false
}

// include adds the project at segments below d, creating intermediate projects.
func (d *Descriptor) include(segments []string) {
	current := d
	for _, name := range segments {
		current = current.child(name)
	}
}

func (d *Descriptor) child(name string) *Descriptor {
	for _, c := range d.children {
		if c.name == name {
			return c
		}
	}
	c := &Descriptor{
		name: name,
		path: childPath(d.path, name),
		dir:  filepath.Join(d.dir, name),
	}
	d.children = append(d.children, c)
	return c
}

func childPath(parent, name string) string {
	if parent == ":" {
		return ":" + name
	}
	return parent + ":" + name
}
