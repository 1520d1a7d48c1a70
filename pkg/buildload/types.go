package buildload

import "context"

// ProjectDescriptor is a project declared by the build settings, before it is loaded.
type ProjectDescriptor interface {
	Name() string
	Path() string
	ProjectDir() string
	BuildFile() string
	Children() []ProjectDescriptor
}

// Project is a loaded project in the live project model.
type Project interface {
	Name() string
	Path() string
	IdentityPath() string
	ProjectDir() string
	BuildFile() string
	ChildProjects() []Project
}

// BuildListener receives build lifecycle broadcasts.
type BuildListener interface {
	ProjectsLoaded(ctx context.Context, build Build)
}

// Build is the build whose project structure is being loaded.
type Build interface {
	// IdentityPath identifies the build within a composite build, ":" for the root build.
	IdentityPath() string

	// RootProject returns the root of the project tree, or nil before loading.
	RootProject() Project

	// Listeners returns the broadcaster for build lifecycle events.
	Listeners() BuildListener
}

// BuildLoader creates the project model of a build from its descriptors.
type BuildLoader interface {
	Load(ctx context.Context, rootProject, defaultProject ProjectDescriptor, build Build) error
}
