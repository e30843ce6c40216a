package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, tablesDir string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "befly-sync.yaml")
	content := `
reconcile:
  sources:
    - dir: ` + tablesDir + `
      prefix: addon_
database:
  database: befly
logger:
  level: warn
  output:
    type: file
    file:
      path: ` + filepath.Join(dir, "sync.log") + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadOptions(t *testing.T) {
	tables := t.TempDir()
	options, err := loadOptions(writeConfig(t, tables))
	require.NoError(t, err)

	assert.Equal(t, "mysql", options.Database.Driver)
	assert.Equal(t, 3306, options.Database.Port)
	assert.Equal(t, 5*time.Second, options.Database.Timeout)
	assert.Equal(t, "befly:schema-sync", options.Reconcile.LockKey)
	assert.True(t, options.Reconcile.EnableMetrics)
	assert.Equal(t, 768, options.Dialect.MaxIndexLength)
	assert.Equal(t, "none", options.Lock.Type)
	assert.Equal(t, 500*time.Millisecond, options.Watch.Debounce)
	assert.Equal(t, "addon_", options.Reconcile.Sources[0].Prefix)
}

func TestLoadOptionsRedisLockRequiresRedis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reconcile:
  sources:
    - dir: tables
lock:
  type: redis
`), 0644))
	_, err := loadOptions(path)
	assert.Error(t, err)
}

func TestLoadOptionsRejectsSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reconcile:
  sources:
    - dir: tables
database:
  driver: sqlite
  database: ":memory:"
`), 0644))
	_, err := loadOptions(path)
	assert.Error(t, err)
}

func TestLoadOptionsExample(t *testing.T) {
	options, err := loadOptions("config.example.yaml")
	require.NoError(t, err)
	assert.Len(t, options.Reconcile.Sources, 2)
	assert.True(t, options.Reconcile.Sources[1].Optional)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	var cli = CLI
	parser, err := kong.New(&cli, kong.Name("befly-sync"), kong.Writers(&out, &out), kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return out.String(), err
	}
	err = kctx.Run(&cli.Globals)
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	tables := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tables, "userProfile.json"), []byte(`{
		"nickname": "昵称|string|1|32|null|1|null",
		"age": "年龄|number|0|150|18|0|null"
	}`), 0644))
	config := writeConfig(t, tables)

	out, err := run(t, "--config", config, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "addon_user_profile\t2 field(s)")

	require.NoError(t, os.WriteFile(filepath.Join(tables, "order.json"), []byte(`{"id": "编号|number|null|null|null|0|null"}`), 0644))
	_, err = run(t, "--config", config, "check")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "befly-sync")
}
