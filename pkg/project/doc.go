// Package project provides a filesystem-backed project model.
//
// A build is a directory with an optional settings.hcl:
//
//	root_project_name = "shop"
//	include = ["app", "lib/core"]
//
// Each included path becomes a project below the root; intermediate projects
// ("lib" above) are created implicitly. Every project directory may contain a
// build.yaml describing the project:
//
//	description: Core domain library
//	version: 1.4.0
//	tags: [library]
//
// Loader implements buildload.BuildLoader for this layout.
package project
