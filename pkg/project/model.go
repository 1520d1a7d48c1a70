package project

import (
	"context"
	"sync"

	"github.com/opforge/opforge/pkg/buildload"
)

// Project is a loaded project of a filesystem build.
type Project struct {
	name         string
	path         string
	identityPath string
	dir          string
	buildFile    string
	parent       *Project
	children     []*Project
	spec         *BuildSpec
}

// Name implements buildload.Project.
func (p *Project) Name() string { return p.name }

// Path implements buildload.Project.
func (p *Project) Path() string { return p.path }

// IdentityPath implements buildload.Project.
func (p *Project) IdentityPath() string { return p.identityPath }

// ProjectDir implements buildload.Project.
func (p *Project) ProjectDir() string { return p.dir }

// BuildFile implements buildload.Project.
func (p *Project) BuildFile() string { return p.buildFile }

// ChildProjects implements buildload.Project.
func (p *Project) ChildProjects() []buildload.Project {
	children := make([]buildload.Project, 0, len(p.children))
	for _, c := range p.children {
		children = append(children, c)
	}
	return children
}

// Parent returns the parent project, nil for the root.
func (p *Project) Parent() *Project { return p.parent }

// Spec returns the evaluated build file, nil before evaluation.
func (p *Project) Spec() *BuildSpec { return p.spec }

// Description returns the project description from its build file.
func (p *Project) Description() string {
	if p.spec == nil {
		return ""
	}
	return p.spec.Description
}

// Walk visits p and all its descendants depth first.
func (p *Project) Walk(fn func(*Project)) {
	fn(p)
	for _, c := range p.children {
		c.Walk(fn)
	}
}

// Build is an in-memory build whose project tree is attached by Loader.
type Build struct {
	identityPath string
	listeners    buildload.BuildListener

	mu             sync.RWMutex
	root           *Project
	defaultProject *Project
}

// NewBuild creates a build with the given identity path (":" for the root build).
func NewBuild(identityPath string, listeners buildload.BuildListener) *Build {
	if identityPath == "" {
		identityPath = ":"
	}
	return &Build{
		identityPath: identityPath,
		listeners:    listeners,
	}
}

// IdentityPath implements buildload.Build.
func (b *Build) IdentityPath() string { return b.identityPath }

// RootProject implements buildload.Build.
func (b *Build) RootProject() buildload.Project {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.root == nil {
		return nil
	}
	return b.root
}

// Listeners implements buildload.Build.
func (b *Build) Listeners() buildload.BuildListener {
	if b.listeners == nil {
		return noopListener{}
	}
	return b.listeners
}

// Root returns the concrete root project, nil before loading.
func (b *Build) Root() *Project {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.root
}

// DefaultProject returns the project selected as default during loading.
func (b *Build) DefaultProject() *Project {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.defaultProject
}

// Project returns the loaded project with the given logical path.
func (b *Build) Project(path string) (*Project, bool) {
	root := b.Root()
	if root == nil {
		return nil, false
	}
	var found *Project
	root.Walk(func(p *Project) {
		if found == nil && p.path == path {
			found = p
		}
	})
	return found, found != nil
}

func (b *Build) attach(root, defaultProject *Project) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.root = root
	b.defaultProject = defaultProject
}

// identityPath joins a build path and a project path.
func identityPath(buildPath, projectPath string) string {
	switch {
	case buildPath == ":" || buildPath == "":
		return projectPath
	case projectPath == ":":
		return buildPath
	default:
		return buildPath + projectPath
	}
}

type noopListener struct{}

func (noopListener) ProjectsLoaded(_ context.Context, _ buildload.Build) {}
