package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "index")
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "watch")
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "version")
}

func TestRootCommandFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"top", "add", "subtract", "filepath-only", "no-indexing"} {
		assert.NotNil(t, root.Flags().Lookup(name), name)
	}
	for _, name := range []string{"config", "debug", "offline", "indexing-batch-size", "exclude-dir"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	assert.Equal(t, "t", root.Flags().Lookup("top").Shorthand)
	assert.Equal(t, "a", root.Flags().Lookup("add").Shorthand)
	assert.Equal(t, "s", root.Flags().Lookup("subtract").Shorthand)
	assert.Equal(t, "f", root.Flags().Lookup("filepath-only").Shorthand)
	assert.Equal(t, "n", root.Flags().Lookup("no-indexing").Shorthand)
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"search"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))

	err := root.Execute()
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetArgs([]string{"version"})
	root.SetOut(out)
	root.SetErr(out)

	require.NoError(t, root.Execute())
}
