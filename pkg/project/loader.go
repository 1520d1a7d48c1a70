package project

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/opforge/opforge/pkg/buildload"
	"github.com/opforge/opforge/pkg/operations"
	"github.com/opforge/opforge/pkg/telemetry"
)

// ErrUnsupportedBuild is returned when Loader is asked to load a build it did not create.
var ErrUnsupportedBuild = errors.New("build is not a filesystem build")

// Loader loads the project tree of a filesystem build. Build files are
// evaluated in parallel on the shared worker pool. It logs through the
// logger carried by the context, see telemetry.FromContext.
type Loader struct {
	processor *operations.Processor
	validate  *validator.Validate
}

// NewLoader creates a loader that evaluates build files on processor.
func NewLoader(processor *operations.Processor) *Loader {
	return &Loader{
		processor: processor,
		validate:  validator.New(),
	}
}

// Load implements buildload.BuildLoader.
func (l *Loader) Load(ctx context.Context, rootProject, defaultProject buildload.ProjectDescriptor, build buildload.Build) error {
	b, ok := build.(*Build)
	if !ok {
		return ErrUnsupportedBuild
	}
	if rootProject == nil {
		return fmt.Errorf("cannot load build %s: no root project descriptor", b.IdentityPath())
	}

	logger := telemetry.FromContext(ctx).
		NewComponentLogger("loader").
		WithBuild(b.IdentityPath())
	if id := operations.CurrentOperationID(ctx); id != "" {
		logger = logger.WithOperationID(id)
	}

	root := instantiate(rootProject, nil, b.IdentityPath())

	var projects []*Project
	root.Walk(func(p *Project) {
		projects = append(projects, p)
	})

	const queueName = "evaluate build files"
	queueLogger := logger.WithQueue(queueName)
	queue := operations.NewQueue(l.processor, queueName, func(p *Project) error {
		return l.evaluate(p, queueLogger)
	})
	for _, p := range projects {
		if err := queue.Add(p); err != nil {
			return fmt.Errorf("failed to schedule build file of %s: %w", p.path, err)
		}
	}
	if err := queue.Wait(); err != nil {
		return fmt.Errorf("failed to evaluate build files: %w", err)
	}

	selected := root
	if defaultProject != nil {
		root.Walk(func(p *Project) {
			if p.path == defaultProject.Path() {
				selected = p
			}
		})
	}

	b.attach(root, selected)

	zl := logger.Zerolog()
	zl.Debug().
		Str("root_project", root.name).
		Int("projects", len(projects)).
		Msg("Build structure loaded")

	return nil
}

// instantiate creates the live project for descriptor and its descendants.
func instantiate(descriptor buildload.ProjectDescriptor, parent *Project, buildPath string) *Project {
	p := &Project{
		name:         descriptor.Name(),
		path:         descriptor.Path(),
		identityPath: identityPath(buildPath, descriptor.Path()),
		dir:          descriptor.ProjectDir(),
		buildFile:    descriptor.BuildFile(),
		parent:       parent,
	}
	for _, child := range descriptor.Children() {
		p.children = append(p.children, instantiate(child, p, buildPath))
	}
	return p
}

// evaluate checks the project directory and reads the project's build file.
// Each project is evaluated by exactly one worker.
func (l *Loader) evaluate(p *Project, logger *telemetry.Logger) error {
	info, err := os.Stat(p.dir)
	if err != nil {
		return fmt.Errorf("project %s: directory %s does not exist", p.path, p.dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("project %s: %s is not a directory", p.path, p.dir)
	}

	spec, err := ReadBuildFile(p.buildFile, l.validate)
	if err != nil {
		return fmt.Errorf("project %s: %w", p.path, err)
	}
	p.spec = spec

	zl := logger.Zerolog()
	zl.Trace().Str("project", p.path).Str("build_file", p.buildFile).Msg("Build file evaluated")
	return nil
}
