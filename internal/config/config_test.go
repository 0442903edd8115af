package config

import (
	"os"
	"path/filepath"
	"testing"

	"abfunnel/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAlpha, cfg.Analysis.Alpha)
	assert.Equal(t, DefaultLiftThreshold, cfg.Analysis.LiftThreshold)
	assert.Equal(t, DefaultTenureThresholdDays, cfg.Analysis.TenureThresholdDays)
	assert.True(t, cfg.Analysis.StrictVariation)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Empty(t, cfg.Source)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
paths:
  data: /srv/data
files:
  events: web.txt
  profiles: demo.txt
  assignments: experiment.txt
analysis:
  alpha: 0.01
  session_rule: deepest
output:
  format: json
`)
	t.Setenv("LIFT_THRESHOLD", "0.02")
	t.Setenv("OUTPUT_FORMAT", "markdown")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, 0.01, cfg.Analysis.Alpha)
	assert.Equal(t, 0.02, cfg.Analysis.LiftThreshold)
	assert.Equal(t, "deepest", cfg.Analysis.SessionRule)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.Equal(t, filepath.Join("/srv/data", "web.txt"), cfg.EventsPath())
	assert.Equal(t, filepath.Join("/srv/data", "demo.txt"), cfg.ProfilesPath())
	assert.Equal(t, filepath.Join("/srv/data", "experiment.txt"), cfg.AssignmentsPath())
}

func TestLoad_SearchesParentDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config.yaml", "analysis:\n  sample_size: 7\n")
	child := filepath.Join(root, "notebooks")
	require.NoError(t, os.Mkdir(child, 0o755))
	chdir(t, child)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Analysis.SampleSize)
}

func TestLoad_MissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"alpha zero":      func(c *Config) { c.Analysis.Alpha = 0 },
		"alpha one":       func(c *Config) { c.Analysis.Alpha = 1 },
		"lift too large":  func(c *Config) { c.Analysis.LiftThreshold = 1.5 },
		"negative tenure": func(c *Config) { c.Analysis.TenureThresholdDays = -1 },
		"zero sample":     func(c *Config) { c.Analysis.SampleSize = 0 },
		"unknown rule":    func(c *Config) { c.Analysis.SessionRule = "median" },
		"unknown format":  func(c *Config) { c.Output.Format = "pdf" },
		"empty separator": func(c *Config) { c.Files.Separator = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}

	assert.NoError(t, Validate(Default()))
}

func TestResolveKeepsAbsolutePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.Data = "data"
	cfg.Files.Events = "/abs/web.txt"
	assert.Equal(t, "/abs/web.txt", cfg.EventsPath())
	assert.Equal(t, "", cfg.ProfilesPath())
}
