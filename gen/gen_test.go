package gen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `package demo

import "testing"

func isolatedGlobalState(t *testing.T) {
	t.Log("runs in its own process")
}

func isolatedBenchSpin(b *testing.B) {
	for i := 0; i < b.N; i++ {
	}
}

// wrong signature: extra parameter
func isolatedHelper(t *testing.T, extra int) {}

// suffix not exportable: would produce a name the harness ignores
func isolatedlower(t *testing.T) {}

func TestOrdinary(t *testing.T) {}
`

func writeFixture(t *testing.T, name, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	return dir
}

func TestScanFindsIsolatedBodies(t *testing.T) {
	dir := writeFixture(t, "demo_test.go", fixture)
	bodies, err := Scan(dir, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, bodies, 2)

	// deterministic order: wrapper name
	assert.Equal(t, "BenchmarkSpin", bodies[0].Wrapper)
	assert.Equal(t, "isolatedBenchSpin", bodies[0].Func)
	assert.True(t, bodies[0].Bench)

	assert.Equal(t, "TestGlobalState", bodies[1].Wrapper)
	assert.Equal(t, "isolatedGlobalState", bodies[1].Func)
	assert.False(t, bodies[1].Bench)
	assert.Equal(t, "demo", bodies[1].Package)
	assert.Equal(t, "demo_test.go", bodies[1].File)
}

func TestScanSkipsGeneratedOutput(t *testing.T) {
	dir := writeFixture(t, "demo_test.go", fixture)
	cfg := DefaultConfig()
	stale := `package demo

import "testing"

func isolatedStale(t *testing.T) {}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.Output), []byte(stale), 0o644))
	bodies, err := Scan(dir, cfg)
	require.NoError(t, err)
	assert.Len(t, bodies, 2)
}

func TestGenerateWritesWrapperFile(t *testing.T) {
	dir := writeFixture(t, "demo_test.go", fixture)
	cfg := DefaultConfig()
	bodies, err := Generate(dir, cfg)
	require.NoError(t, err)
	assert.Len(t, bodies, 2)

	out, err := os.ReadFile(filepath.Join(dir, cfg.Output))
	require.NoError(t, err)
	src := string(out)
	assert.Contains(t, src, "// Code generated by forktest gen. DO NOT EDIT.")
	assert.Contains(t, src, "package demo")
	assert.Contains(t, src, "func TestGlobalState(t *testing.T) {")
	assert.Contains(t, src, "forktest.RunTest(t, isolatedGlobalState)")
	assert.Contains(t, src, "func BenchmarkSpin(b *testing.B) {")
	assert.Contains(t, src, "forktest.RunBenchmark(b, isolatedBenchSpin)")
}

func TestGenerateRemovesStaleOutput(t *testing.T) {
	dir := writeFixture(t, "plain_test.go", "package demo\n\nimport \"testing\"\n\nfunc TestOrdinary(t *testing.T) {}\n")
	cfg := DefaultConfig()
	out := filepath.Join(dir, cfg.Output)
	require.NoError(t, os.WriteFile(out, []byte("package demo\n"), 0o644))

	bodies, err := Generate(dir, cfg)
	require.NoError(t, err)
	assert.Empty(t, bodies)
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateRejectsMixedPackages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_test.go"),
		[]byte("package demo\n\nimport \"testing\"\n\nfunc isolatedA(t *testing.T) {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_test.go"),
		[]byte("package demo_test\n\nimport \"testing\"\n\nfunc isolatedB(t *testing.T) {}\n"), 0o644))

	_, err := Generate(dir, DefaultConfig())
	assert.ErrorContains(t, err, "span packages")
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile),
		[]byte("output: wrappers_test.go\n"), 0o644))
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "wrappers_test.go", cfg.Output)
	assert.Equal(t, DefaultConfig().TestPrefix, cfg.TestPrefix)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile),
		[]byte("outptu: oops_test.go\n"), 0o644))
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfigValidatesOutputName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile),
		[]byte("output: wrappers.go\n"), 0o644))
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "invalid")
}
