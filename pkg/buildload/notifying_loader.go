package buildload

import (
	"context"

	"github.com/opforge/opforge/pkg/operations"
)

// LoadingBuildOperation is the display name of the build loading operation.
const LoadingBuildOperation = "Loading Build"

// NotifyingBuildLoader runs another BuildLoader as an instrumented operation
// whose result is the snapshot of the loaded project structure. Listeners are
// told the projects are loaded once the operation has finished, even when
// loading failed.
type NotifyingBuildLoader struct {
	loader   BuildLoader
	executor *operations.Executor
}

// NewNotifyingBuildLoader wraps loader.
func NewNotifyingBuildLoader(loader BuildLoader, executor *operations.Executor) *NotifyingBuildLoader {
	return &NotifyingBuildLoader{
		loader:   loader,
		executor: executor,
	}
}

// Load implements BuildLoader.
func (l *NotifyingBuildLoader) Load(ctx context.Context, rootProject, defaultProject ProjectDescriptor, build Build) error {
	return l.executor.Decorate(ctx,
		func(ctx context.Context) error {
			return l.loader.Load(ctx, rootProject, defaultProject, build)
		},
		operations.Decoration{
			Describe: func() *operations.DescriptorBuilder {
				return operations.DisplayName(LoadingBuildOperation).
					Progress(LoadingBuildOperation).
					Details(BuildStructureDetails{})
			},
			Result: func(ctx context.Context) (interface{}, error) {
				result, err := NewBuildStructureResult(build)
				if err != nil {
					return nil, err
				}
				return result, nil
			},
			Finally: func(ctx context.Context, _ error) {
				build.Listeners().ProjectsLoaded(ctx, build)
			},
		},
	)
}
