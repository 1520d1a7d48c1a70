package buildload

import (
	"errors"
	"path/filepath"
	"sort"
)

// BuildStructureDetails marks a build structure loading operation.
type BuildStructureDetails struct{}

// BuildStructureResult is the immutable snapshot produced when a build's
// project structure has been loaded.
type BuildStructureResult struct {
	RootProject ProjectSnapshot `json:"root_project" yaml:"root_project"`
	BuildPath   string          `json:"build_path" yaml:"build_path"`
}

// ProjectSnapshot is one node of the snapshot tree. Children are unique and
// sorted by name.
type ProjectSnapshot struct {
	Name         string            `json:"name" yaml:"name"`
	Path         string            `json:"path" yaml:"path"`
	IdentityPath string            `json:"identity_path" yaml:"identity_path"`
	ProjectDir   string            `json:"project_dir" yaml:"project_dir"`
	BuildFile    string            `json:"build_file" yaml:"build_file"`
	Children     []ProjectSnapshot `json:"children" yaml:"children"`
}

// ErrNoRootProject is returned when a build has no root project to snapshot.
var ErrNoRootProject = errors.New("build has no root project")

// NewBuildStructureResult snapshots the loaded project tree of build.
func NewBuildStructureResult(build Build) (*BuildStructureResult, error) {
	root := build.RootProject()
	if root == nil {
		return nil, ErrNoRootProject
	}
	return &BuildStructureResult{
		RootProject: ConvertProject(root),
		BuildPath:   build.IdentityPath(),
	}, nil
}

// ConvertProject copies project and its descendants into a snapshot tree.
func ConvertProject(project Project) ProjectSnapshot {
	return ProjectSnapshot{
		Name:         project.Name(),
		Path:         project.Path(),
		IdentityPath: project.IdentityPath(),
		ProjectDir:   absolute(project.ProjectDir()),
		BuildFile:    absolute(project.BuildFile()),
		Children:     convertChildren(project.ChildProjects()),
	}
}

// convertChildren converts children, drops duplicate identities and sorts the
// remainder by name.
func convertChildren(children []Project) []ProjectSnapshot {
	seen := make(map[string]struct{}, len(children))
	snapshots := make([]ProjectSnapshot, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		if _, dup := seen[child.IdentityPath()]; dup {
			continue
		}
		seen[child.IdentityPath()] = struct{}{}
		snapshots = append(snapshots, ConvertProject(child))
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})
	return snapshots
}

func absolute(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Find returns the descendant snapshot with the given logical path.
func (p ProjectSnapshot) Find(path string) (ProjectSnapshot, bool) {
	if p.Path == path {
		return p, true
	}
	for _, child := range p.Children {
		if found, ok := child.Find(path); ok {
			return found, true
		}
	}
	return ProjectSnapshot{}, false
}

// Count returns the number of projects in the tree rooted at p.
func (p ProjectSnapshot) Count() int {
	n := 1
	for _, child := range p.Children {
		n += child.Count()
	}
	return n
}
