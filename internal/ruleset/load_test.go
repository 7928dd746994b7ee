package ruleset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/schema"
	"github.com/edtacey/jsonmapper/internal/upsert"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

const ordersYAML = `
valueMappings:
  - id: status-codes
    matchType: exact
    table:
      - {pattern: A, value: active}
      - {pattern: I, value: inactive}
    defaultValue: unknown
entities:
  - id: orders
    name: Order
    sourceSchema:
      type: object
      properties:
        orderId: {type: string}
        status: {type: string}
    targetSchema:
      type: object
      properties:
        id: {type: string}
        state: {type: string}
      required: [id]
    rules:
      - {id: r1, sourcePath: orderId, targetPath: id}
      - {id: r2, sourcePath: status, targetPath: state, kind: valueMapping, valueMapId: status-codes}
    upsert:
      uniqueFields: [id]
      conflictResolution: merge
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orders.yaml", ordersYAML)

	b, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, b.Entities, 1)

	e, ok := b.Entity("orders")
	require.True(t, ok)
	assert.Equal(t, "Order", e.Name)
	require.Len(t, e.Rules, 2)
	assert.Equal(t, rules.KindValueMapping, e.Rules[1].Kind())
	assert.True(t, e.Rules[0].Active)
	assert.Equal(t, upsert.ResolveMerge, e.Upsert.ConflictResolution)

	obj, ok := e.TargetSchema.Schema.(*schema.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "state"}, obj.Names())

	require.Len(t, b.ValueMappings, 1)
	assert.Equal(t, valuemap.MatchExact, b.ValueMappings[0].MatchType)

	res := e.Check(b.ValueMappings...)
	assert.True(t, res.Valid, "unexpected errors: %v", res.Errors)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bundle.json", `{
		"entities": [{
			"id": "people",
			"rules": [{"sourcePath": "n", "targetPath": "name", "kind": "template", "template": "${first} ${last}"}],
			"upsert": {"uniqueFields": ["name"]},
			"valueMappings": [{"id": "local", "matchType": "range", "table": [{"pattern": "0-9", "value": 1}]}]
		}]
	}`)

	b, err := LoadFile(path)
	require.NoError(t, err)
	e, ok := b.Entity("people")
	require.True(t, ok)
	assert.Nil(t, e.SourceSchema.Schema)
	assert.Equal(t, rules.KindTemplate, e.Rules[0].Kind())
	require.Len(t, b.AllValueMappings(), 1)
	assert.Equal(t, 1.0, b.AllValueMappings()[0].Table[0].Value)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"unsupported extension", "bundle.txt", "x", ErrCodeGeneric},
		{"bad yaml", "bad.yaml", "entities: [", ErrCodeDecode},
		{"missing id", "noid.yaml", "entities:\n  - name: x\n", ErrCodeDecode},
		{"duplicate id", "dup.yaml", "entities:\n  - id: a\n  - id: a\n", ErrCodeDecode},
		{"bad policy", "policy.yaml", "entities:\n  - id: a\n    upsert: {conflictResolution: explode}\n", ErrCodeDecode},
		{"bad value mapping", "vm.yaml", "valueMappings:\n  - id: x\n    matchType: fuzzy\n", ErrCodeDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, dir, tt.file, tt.content))
			var le *LoadError
			require.True(t, errors.As(err, &le), "expected LoadError, got %v", err)
			assert.Equal(t, tt.code, le.Code)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadCUEDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.cue", `package mappings

valueMapping: "status-codes": {
	matchType: "exact"
	table: [{pattern: "A", value: "active"}]
}

entity: orders: {
	name: "Order"
	sourceSchema: {
		type: "object"
		properties: {
			orderId: type: "string"
			status: type:  "string"
		}
	}
	rules: [
		{sourcePath: "orderId", targetPath: "id"},
		{sourcePath: "status", targetPath: "state", kind: "valueMapping", valueMapId: "status-codes"},
	]
	upsert: uniqueFields: ["id"]
}
`)

	b, err := LoadCUEDir(dir)
	require.NoError(t, err)
	e, ok := b.Entity("orders")
	require.True(t, ok, "entity id defaults to its label")
	assert.Equal(t, "Order", e.Name)
	require.Len(t, e.Rules, 2)

	obj := e.SourceSchema.Schema.(*schema.Object)
	assert.Equal(t, []string{"orderId", "status"}, obj.Names())

	require.Len(t, b.ValueMappings, 1)
	assert.Equal(t, "status-codes", b.ValueMappings[0].ID)

	via, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, via.Entities, 1)
}

func TestLoadCUEDir_Errors(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		_, err := LoadCUEDir(t.TempDir())
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, ErrCodeNoFiles, le.Code)
	})

	t.Run("conflicting values", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bad.cue", "package mappings\n\nentity: a: name: \"x\"\nentity: a: name: \"y\"\n")
		_, err := LoadCUEDir(dir)
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Contains(t, []string{ErrCodeBuildFailed, ErrCodeDecode, ErrCodeGeneric}, le.Code)
	})

	t.Run("syntax error", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bad.cue", "package mappings\n\nentity: {\n")
		_, err := LoadCUEDir(dir)
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Contains(t, []string{ErrCodeLoadFailed, ErrCodeBuildFailed}, le.Code)
	})

	t.Run("nothing defined", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "empty.cue", "package mappings\n\nother: 1\n")
		_, err := LoadCUEDir(dir)
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, ErrCodeGeneric, le.Code)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope"))
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, ErrCodeNotFound, le.Code)
	})
}
