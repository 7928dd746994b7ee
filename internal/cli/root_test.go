package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommandHelp(t *testing.T) {
	stdout, _, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"infer", "validate", "transform", "diff", "import", "process", "serve", "relay", "test"} {
		assert.Contains(t, stdout, sub)
	}
	assert.Contains(t, stdout, "--format")
	assert.Contains(t, stdout, "--db")
}

func TestRootCommandInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "validate", "testdata/orders.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommandSubcommandsHaveShortHelp(t *testing.T) {
	root := NewRootCommand()
	for _, cmd := range root.Commands() {
		assert.NotEmpty(t, cmd.Short, "command %s has no short description", cmd.Name())
	}
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("text"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
