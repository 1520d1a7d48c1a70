// Package buildload instruments loading of a build's project structure.
//
// NotifyingBuildLoader decorates any BuildLoader. Loading runs as a
// "Loading Build" operation carrying BuildStructureDetails; on success the
// operation result is a BuildStructureResult, an immutable snapshot of the
// project tree whose children are deduplicated and sorted by name at every
// level. After the operation finishes, successfully or not, the build's
// listeners receive ProjectsLoaded exactly once.
package buildload
