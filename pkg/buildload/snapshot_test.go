package buildload

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProject is an in-memory Project. When shuffle is set, every call to
// ChildProjects returns the children in a new random order.
type mockProject struct {
	name     string
	path     string
	identity string
	dir      string
	children []Project
	shuffle  *rand.Rand
}

func (p *mockProject) Name() string         { return p.name }
func (p *mockProject) Path() string         { return p.path }
func (p *mockProject) IdentityPath() string { return p.identity }
func (p *mockProject) ProjectDir() string   { return p.dir }
func (p *mockProject) BuildFile() string    { return filepath.Join(p.dir, "build.yaml") }

func (p *mockProject) ChildProjects() []Project {
	children := append([]Project{}, p.children...)
	if p.shuffle != nil {
		p.shuffle.Shuffle(len(children), func(i, j int) {
			children[i], children[j] = children[j], children[i]
		})
	}
	return children
}

func newMockProject(parent *mockProject, name string) *mockProject {
	if parent == nil {
		return &mockProject{name: name, path: ":", identity: ":", dir: "/work/" + name}
	}
	path := parent.path + ":" + name
	if parent.path == ":" {
		path = ":" + name
	}
	child := &mockProject{
		name:     name,
		path:     path,
		identity: path,
		dir:      filepath.Join(parent.dir, name),
		shuffle:  parent.shuffle,
	}
	parent.children = append(parent.children, child)
	return child
}

func childNames(p ProjectSnapshot) []string {
	names := make([]string, 0, len(p.Children))
	for _, c := range p.Children {
		names = append(names, c.Name)
	}
	return names
}

func assertSortedEverywhere(t *testing.T, p ProjectSnapshot) {
	t.Helper()
	for i := 1; i < len(p.Children); i++ {
		assert.Less(t, p.Children[i-1].Name, p.Children[i].Name, "children of %s", p.Path)
	}
	for _, c := range p.Children {
		assertSortedEverywhere(t, c)
	}
}

func TestConvertProject_SortsChildrenByName(t *testing.T) {
	root := newMockProject(nil, "root")
	newMockProject(root, "b")
	newMockProject(root, "a")
	newMockProject(root, "c")

	snapshot := ConvertProject(root)

	assert.Equal(t, "root", snapshot.Name)
	assert.Equal(t, ":", snapshot.Path)
	assert.Equal(t, []string{"a", "b", "c"}, childNames(snapshot))
	assert.Equal(t, ":a", snapshot.Children[0].Path)
	assert.Equal(t, "/work/root/a/build.yaml", snapshot.Children[0].BuildFile)
	assert.NotNil(t, snapshot.Children[0].Children)
	assert.Empty(t, snapshot.Children[0].Children)
}

func TestConvertProject_DeterministicUnderReordering(t *testing.T) {
	root := newMockProject(nil, "root")
	root.shuffle = rand.New(rand.NewSource(7))
	for _, name := range []string{"web", "api", "core", "zeta", "lib"} {
		child := newMockProject(root, name)
		for _, sub := range []string{"y", "x", "m"} {
			newMockProject(child, sub)
		}
	}

	first := ConvertProject(root)
	second := ConvertProject(root)

	assert.Equal(t, first, second)
	assertSortedEverywhere(t, first)
	assert.Equal(t, 1+5+15, first.Count())
}

func TestConvertProject_DropsDuplicateChildren(t *testing.T) {
	root := newMockProject(nil, "root")
	a := newMockProject(root, "a")
	root.children = append(root.children, a, nil)

	snapshot := ConvertProject(root)
	assert.Equal(t, []string{"a"}, childNames(snapshot))
}

func TestConvertProject_RelativeDirsBecomeAbsolute(t *testing.T) {
	project := &mockProject{name: "rel", path: ":", identity: ":", dir: "rel"}
	snapshot := ConvertProject(project)

	assert.True(t, filepath.IsAbs(snapshot.ProjectDir))
	assert.True(t, filepath.IsAbs(snapshot.BuildFile))
}

func TestProjectSnapshot_Find(t *testing.T) {
	root := newMockProject(nil, "root")
	lib := newMockProject(root, "lib")
	newMockProject(lib, "core")

	snapshot := ConvertProject(root)

	found, ok := snapshot.Find(":lib:core")
	require.True(t, ok)
	assert.Equal(t, "core", found.Name)

	_, ok = snapshot.Find(":missing")
	assert.False(t, ok)
}
