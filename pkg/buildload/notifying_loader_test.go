package buildload

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opforge/opforge/pkg/operations"
)

// mockBuild is a Build whose root project is attached by mockLoader.
type mockBuild struct {
	mu       sync.Mutex
	root     Project
	timeline []string
	loaded   int
}

func (b *mockBuild) IdentityPath() string { return ":" }

func (b *mockBuild) RootProject() Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.root
}

func (b *mockBuild) Listeners() BuildListener { return b }

func (b *mockBuild) ProjectsLoaded(ctx context.Context, build Build) {
	b.record("projectsLoaded")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded++
}

func (b *mockBuild) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeline = append(b.timeline, event)
}

// timelineListener writes operation notifications into the build's timeline.
type timelineListener struct {
	build *mockBuild
}

func (l timelineListener) Started(ctx context.Context, op operations.OperationInfo) {
	l.build.record("started:" + op.Descriptor.DisplayName)
}

func (l timelineListener) Finished(ctx context.Context, op operations.OperationInfo, outcome operations.Outcome) {
	if outcome.Failed() {
		l.build.record("failed:" + op.Descriptor.DisplayName)
		return
	}
	l.build.record("finished:" + op.Descriptor.DisplayName)
}

// mockLoader attaches a fixed project tree or fails.
type mockLoader struct {
	root Project
	err  error
}

func (l *mockLoader) Load(ctx context.Context, rootProject, defaultProject ProjectDescriptor, build Build) error {
	b := build.(*mockBuild)
	b.record("load")
	if l.err != nil {
		return l.err
	}
	b.mu.Lock()
	b.root = l.root
	b.mu.Unlock()
	return nil
}

func TestNotifyingBuildLoader_Success(t *testing.T) {
	root := newMockProject(nil, "root")
	newMockProject(root, "b")
	newMockProject(root, "a")

	build := &mockBuild{}
	recorder := operations.NewRecorder()
	exec := operations.NewExecutor(operations.WithListener(operations.MultiListener{
		recorder, timelineListener{build: build},
	}))

	loader := NewNotifyingBuildLoader(&mockLoader{root: root}, exec)
	require.NoError(t, loader.Load(context.Background(), nil, nil, build))

	assert.Equal(t, []string{
		"started:Loading Build",
		"load",
		"finished:Loading Build",
		"projectsLoaded",
	}, build.timeline)
	assert.Equal(t, 1, build.loaded)

	op, ok := recorder.Find("Loading Build")
	require.True(t, ok)
	assert.Equal(t, "Loading Build", op.Info.Descriptor.ProgressDisplayName)
	assert.IsType(t, BuildStructureDetails{}, op.Info.Descriptor.Details)

	result, ok := op.Outcome.Result.(*BuildStructureResult)
	require.True(t, ok)
	assert.Equal(t, ":", result.BuildPath)
	assert.Equal(t, "root", result.RootProject.Name)
	assert.Equal(t, []string{"a", "b"}, childNames(result.RootProject))
}

func TestNotifyingBuildLoader_FailureStillNotifies(t *testing.T) {
	build := &mockBuild{}
	recorder := operations.NewRecorder()
	exec := operations.NewExecutor(operations.WithListener(operations.MultiListener{
		recorder, timelineListener{build: build},
	}))
	illegalState := errors.New("illegal state: settings not evaluated")

	loader := NewNotifyingBuildLoader(&mockLoader{err: illegalState}, exec)
	err := loader.Load(context.Background(), nil, nil, build)

	assert.Same(t, illegalState, err)
	assert.Equal(t, 1, build.loaded)
	assert.Equal(t, []string{
		"started:Loading Build",
		"load",
		"failed:Loading Build",
		"projectsLoaded",
	}, build.timeline)

	op, ok := recorder.Find("Loading Build")
	require.True(t, ok)
	assert.False(t, op.Outcome.HasResult)
	assert.Same(t, illegalState, op.Outcome.Err)
}

func TestNotifyingBuildLoader_MissingRootFailsOperation(t *testing.T) {
	build := &mockBuild{}
	exec := operations.NewExecutor()

	loader := NewNotifyingBuildLoader(&mockLoader{}, exec)
	err := loader.Load(context.Background(), nil, nil, build)

	assert.ErrorIs(t, err, ErrNoRootProject)
	assert.Equal(t, 1, build.loaded)
}
