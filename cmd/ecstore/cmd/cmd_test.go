package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"pkg.world.dev/world-engine/assert"

	"pkg.world.dev/world-engine/ecstore/cmd/ecstore/cmd"
	"pkg.world.dev/world-engine/ecstore/codec"
	"pkg.world.dev/world-engine/ecstore/snapshot"
)

const schemaFile = `
[[component]]
path = "core::test::ser_test3"
type = "String"
attributes = ["Serializable"]

[[component]]
path = "core::test::count"
type = "U32"
attributes = ["Serializable"]
`

const goodSnapshot = `{"0:0:0":{},"0:1:0":{"core::test::ser_test3":"hi","core::test::count":3}}`

const badSnapshot = `{
	"0:0:0": {},
	"0:1:0": {"core::test::ser_test3": "hi", "core::test::count": "oops"},
	"0:2:0": {"core::test::missing": 1}
}`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ECSTORE_LOG_LEVEL", "error")
	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	schema := writeFile(t, "schema.toml", schemaFile)
	bad := writeFile(t, "bad.json", badSnapshot)

	out, err := run(t, "validate", schema, bad)
	assert.NilError(t, err)
	require.Contains(t, out, `warning: entity 0:1:0 component "core::test::count"`)
	require.Contains(t, out, `warning: entity 0:2:0 component "core::test::missing"`)
	require.Contains(t, out, "3 entities, 2 archetypes, 2 warnings")

	_, err = run(t, "validate", "--strict", schema, bad)
	assert.ErrorIs(t, err, snapshot.ErrInvalidSnapshot)

	good := writeFile(t, "good.json", goodSnapshot)
	out, err = run(t, "validate", "--strict", schema, good)
	assert.NilError(t, err)
	require.Contains(t, out, "2 entities, 2 archetypes, 0 warnings")
}

func TestDiff(t *testing.T) {
	a := writeFile(t, "a.json", goodSnapshot)
	b := writeFile(t, "b.json", `{"0:0:0":{},"0:1:0":{"core::test::count":4,"core::test::ser_test3":"hi"}}`)

	out, err := run(t, "diff", a, b)
	assert.NilError(t, err)
	require.JSONEq(t, `[{"op":"replace","path":"/0:1:0/core::test::count","value":4}]`, out)
}

func TestSchema(t *testing.T) {
	schema := writeFile(t, "schema.toml", schemaFile)
	out, err := run(t, "schema", schema)
	assert.NilError(t, err)

	schemas, err := codec.Decode[map[string]map[string]any]([]byte(out))
	assert.NilError(t, err)
	assert.Equal(t, 2, len(schemas))
	assert.Equal(t, "string", schemas["core::test::ser_test3"]["type"])
	assert.Equal(t, "integer", schemas["core::test::count"]["type"])
}

func TestPublishThenFetch(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("ECSTORE_REDIS_ADDRESS", mr.Addr())
	t.Setenv("ECSTORE_REPLICATION_KEY", "cmdtest")
	schema := writeFile(t, "schema.toml", schemaFile)
	good := writeFile(t, "good.json", goodSnapshot)

	out, err := run(t, "publish", schema, good)
	assert.NilError(t, err)
	require.Contains(t, out, "published 2 entities with 0 warnings")
	assert.Check(t, mr.Exists("cmdtest:snapshot"))

	out, err = run(t, "fetch", schema)
	assert.NilError(t, err)
	assert.Equal(t, goodSnapshot, strings.TrimSpace(out))
}

func TestBadConfigFails(t *testing.T) {
	t.Setenv("ECSTORE_LOG_LEVEL", "loud")
	root := cmd.NewRootCmd()
	root.SetArgs([]string{"diff", "a", "b"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	assert.ErrorContains(t, root.Execute(), "invalid log_level")
}

func TestQuery(t *testing.T) {
	schema := writeFile(t, "schema.toml", schemaFile)
	snap := writeFile(t, "snap.json", goodSnapshot)

	out, err := run(t, "query", schema, snap, "CONTAINS(core::test::count)")
	assert.NilError(t, err)
	assert.Equal(t, "0:1:0\n", out)

	out, err = run(t, "query", schema, snap, "EXACT(core::test::count)")
	assert.NilError(t, err)
	assert.Equal(t, "", out)

	_, err = run(t, "query", schema, snap, "CONTAINS(core::test::missing)")
	assert.Check(t, err != nil)
}
