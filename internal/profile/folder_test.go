package profile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(name string) *Folder {
	return &Folder{Profile: &Profile{
		metadata: Metadata{DisplayName: name},
		config:   Config{Options: &TunOptions{}},
		dir:      "/profiles/" + name,
	}}
}

func group(name string, children ...*Folder) *Folder {
	return &Folder{Group: &Group{DisplayName: name, Path: "/profiles/" + name, Children: children}}
}

func TestFolder_ProfileCount(t *testing.T) {
	tests := []struct {
		name   string
		folder *Folder
		want   int
	}{
		{"nil", nil, 0},
		{"leaf", leaf("a"), 1},
		{"flat group", group("g", leaf("a"), leaf("b")), 2},
		{"nested", group("root", group("x", leaf("a"), group("y", leaf("b"), leaf("c"))), leaf("d")), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.folder.ProfileCount())
			assert.Len(t, tt.folder.Profiles(), tt.want)
		})
	}
}

func TestFolder_Walk(t *testing.T) {
	tree := group("root", group("eu", leaf("ams"), group("de", leaf("ber"))), leaf("tyo"))

	var visited []string
	tree.Walk(func(path []string, node *Folder) {
		visited = append(visited, strings.Join(append(path, node.DisplayName()), "/"))
	})

	assert.Equal(t, []string{
		"root",
		"root/eu",
		"root/eu/ams",
		"root/eu/de",
		"root/eu/de/ber",
		"root/tyo",
	}, visited)
}

func TestFolder_WalkPathsAreIndependent(t *testing.T) {
	tree := group("root", group("a", leaf("one"), leaf("two")), group("b", leaf("three")))

	paths := map[string][]string{}
	tree.Walk(func(path []string, node *Folder) {
		if !node.IsGroup() {
			paths[node.DisplayName()] = path
		}
	})

	assert.Equal(t, []string{"root", "a"}, paths["one"])
	assert.Equal(t, []string{"root", "a"}, paths["two"])
	assert.Equal(t, []string{"root", "b"}, paths["three"])
}

func TestFolder_Lookup(t *testing.T) {
	tree := group("root", group("eu", leaf("ams")), leaf("tyo"))

	p, ok := tree.Lookup("ams")
	require.True(t, ok)
	assert.Equal(t, "ams", p.DisplayName())

	_, ok = tree.Lookup("eu")
	assert.False(t, ok, "groups are not profiles")

	var empty *Folder
	_, ok = empty.Lookup("ams")
	assert.False(t, ok)
}

func TestFolder_Infos(t *testing.T) {
	tree := group("root", group("eu", leaf("ams")), leaf("tyo"))

	assert.Equal(t, []Info{
		{Name: "ams", Mode: ModeTun, Group: []string{"root", "eu"}, Dir: "/profiles/ams"},
		{Name: "tyo", Mode: ModeTun, Group: []string{"root"}, Dir: "/profiles/tyo"},
	}, tree.Infos())
}

func TestLoadError(t *testing.T) {
	cause := errors.New("permission denied")
	err := error(newLoadError(ErrIO, filepath.FromSlash("/p/x"), cause))

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrConfigParse)
	assert.Equal(t, "filesystem error: "+filepath.FromSlash("/p/x")+": permission denied", err.Error())

	wrapped := errors.Wrap(err, "loading profiles")
	assert.True(t, errors.Is(wrapped, ErrIO))

	bare := newLoadError(ErrEmptyGroup, "/p", nil)
	assert.Equal(t, "empty profile group: /p", bare.Error())
}

func TestRedactArgs(t *testing.T) {
	in := []string{"--local-addr", "127.0.0.1:1080", "--password", "hunter2", "-v"}
	out := RedactArgs(in)

	assert.Equal(t, []string{"--local-addr", "127.0.0.1:1080", "--password", "*hidden*", "-v"}, out)
	assert.Equal(t, "hunter2", in[3], "input is not modified")
	assert.Equal(t, []string{"--password"}, RedactArgs([]string{"--password"}))
}
