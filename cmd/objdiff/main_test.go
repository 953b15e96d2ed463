package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestRootCmd(t *testing.T) {
	dir := t.TempDir()
	srcJSON := writeFile(t, dir, "a.json", `{"name": "a", "tags": ["x", "y"], "size": 1}`)
	targetYAML := writeFile(t, dir, "b.yaml", `
name: b
tags:
  - x
size: 1
extra: true
`)

	cases := []struct {
		description string
		args        []string
		expect      string
	}{
		{"plain",
			[]string{srcJSON, targetYAML},
			"+extra: true\n~name: \"a\" -> \"b\"\ntags:\n  -1: \"y\"\n",
		},
		{"stats",
			[]string{"--stats", srcJSON, targetYAML},
			"+extra: true\n~name: \"a\" -> \"b\"\ntags:\n  -1: \"y\"\n0 elements. 1 add. 1 remove. 1 update.\n",
		},
		{"slices as arrays",
			[]string{"--slices-as-arrays", "--verify", srcJSON, targetYAML},
			"+extra: true\n~name: \"a\" -> \"b\"\n#tags: 2 -> 1\n  -1: \"y\"\n",
		},
		{"no changes",
			[]string{"--verify", "--hash-equality", srcJSON, srcJSON},
			"",
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			cmd := newRootCmd(out, errOut)
			cmd.SetArgs(append([]string{"--color", "never"}, c.args...))
			require.NoError(t, cmd.Execute(), errOut.String())
			assert.Equal(t, c.expect, out.String())
		})
	}
}

func TestRootCmdVerbose(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "a: 1\n")
	b := writeFile(t, dir, "b.yaml", "a: 2\n")

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCmd(out, errOut)
	cmd.SetArgs([]string{"-v", "--color", "never", a, b})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "~a: 1 -> 2\n", out.String())
	assert.Contains(t, errOut.String(), "computed diff")
}

func TestRootCmdErrors(t *testing.T) {
	dir := t.TempDir()
	obj := writeFile(t, dir, "obj.json", `{"a": 1}`)
	list := writeFile(t, dir, "list.json", `[1]`)
	bad := writeFile(t, dir, "bad.yaml", "a: [1")

	cases := []struct {
		description string
		args        []string
	}{
		{"missing argument", []string{obj}},
		{"missing file", []string{obj, filepath.Join(dir, "nope.json")}},
		{"invalid document", []string{obj, bad}},
		{"incomparable documents", []string{obj, list}},
		{"bad color mode", []string{"--color", "sometimes", obj, obj}},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			cmd := newRootCmd(out, errOut)
			cmd.SetArgs(c.args)
			assert.Error(t, cmd.Execute())
		})
	}
}
