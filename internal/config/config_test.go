package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/exam-pdf-importer/internal/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeBatch, cfg.Mode)
	assert.Equal(t, "raw_pdfs", cfg.InputDir)
	assert.Equal(t, "public/data", cfg.OutputDir)
	assert.Equal(t, "/assets/q", cfg.AssetsURLPrefix)
	assert.Equal(t, []string{"v1"}, cfg.PreserveDatasets)
	assert.True(t, cfg.Images)
	assert.InDelta(t, 2.0, cfg.Zoom, 1e-9)
	assert.Equal(t, 20*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 60*time.Second, cfg.IndexTimeout)
	assert.Equal(t, 200, cfg.MaxQuestion)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Zero(t, cfg.MemoryLimitMB)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "exam-pdf-importer", cfg.ServerName)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.InputDir = root
	cfg.OutputDir = filepath.Join(root, "out", "data")
	cfg.AssetsDir = filepath.Join(root, "out", "assets")
	cfg.ReportPath = filepath.Join(root, "reports", "import_report.json")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid batch config", mutate: func(*Config) {}},
		{name: "stdio needs no input dir", mutate: func(c *Config) {
			c.Mode = ModeStdio
			c.InputDir = ""
		}},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "server" }, wantErr: "Mode"},
		{name: "batch without input dir", mutate: func(c *Config) { c.InputDir = "" }, wantErr: "InputDir"},
		{name: "missing input dir", mutate: func(c *Config) {
			c.InputDir = filepath.Join(c.OutputDir, "nope")
		}, wantErr: "cannot access input directory"},
		{name: "zero zoom", mutate: func(c *Config) { c.Zoom = 0 }, wantErr: "Zoom"},
		{name: "huge zoom", mutate: func(c *Config) { c.Zoom = 9 }, wantErr: "Zoom"},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: "Workers"},
		{name: "question ceiling", mutate: func(c *Config) { c.MaxQuestion = 0 }, wantErr: "MaxQuestion"},
		{name: "non-positive file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "MaxFileSize"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "LogLevel"},
		{name: "memory limit", mutate: func(c *Config) { c.MemoryLimitMB = 2048 }},
		{name: "negative memory limit", mutate: func(c *Config) { c.MemoryLimitMB = -1 }, wantErr: "MemoryLimitMB"},
		{name: "zero timeout", mutate: func(c *Config) { c.RenderTimeout = 0 }, wantErr: "timeouts must be positive"},
		{name: "images without assets dir", mutate: func(c *Config) { c.AssetsDir = "" }, wantErr: "assets directory"},
		{name: "text only without assets dir", mutate: func(c *Config) {
			c.Images = false
			c.AssetsDir = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigValidateCreatesDirectories(t *testing.T) {
	cfg := validConfig(t)
	cfg.ReviewPath = filepath.Join(cfg.InputDir, "review", "r.xlsx")
	require.NoError(t, cfg.Validate())

	for _, dir := range []string{
		cfg.OutputDir, cfg.AssetsDir, filepath.Dir(cfg.ReportPath), filepath.Dir(cfg.ReviewPath),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestLogOptions(t *testing.T) {
	var out, errOut bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogFile = "import.log"

	opts := cfg.LogOptions(&out, &errOut)
	assert.Equal(t, logging.FormatJSON, opts.Format)
	assert.Same(t, &out, opts.Output)
	assert.Equal(t, "import.log", opts.File)
	assert.Equal(t, 50, opts.MaxSizeMB)

	cfg.Mode = ModeStdio
	opts = cfg.LogOptions(&out, &errOut)
	assert.Equal(t, logging.FormatText, opts.Format)
	assert.Same(t, &errOut, opts.Output)
}

func TestImagingConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Zoom = 3
	cfg.AssetsURLPrefix = "https://cdn.example.com/q"

	ic := cfg.Imaging()
	assert.Equal(t, cfg.AssetsDir, ic.AssetsDir)
	assert.Equal(t, "https://cdn.example.com/q", ic.URLPrefix)
	assert.InDelta(t, 3.0, ic.Zoom, 1e-9)
	assert.Equal(t, cfg.RenderTimeout, ic.RenderTimeout)
	assert.Equal(t, cfg.MaxQuestion, ic.MaxQuestion)
}

func TestImportOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.Subject = "室內裝修"
	cfg.ReviewPath = "scripts/review.xlsx"

	opts := cfg.ImportOptions()
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, "室內裝修", opts.Subject)
	assert.True(t, opts.Images)
	assert.Equal(t, cfg.Imaging(), opts.Imaging)
	assert.Equal(t, cfg.OutputDir, opts.OutputDir)
	assert.Equal(t, cfg.ReportPath, opts.ReportPath)
	assert.Equal(t, "scripts/review.xlsx", opts.ReviewPath)
	assert.Equal(t, []string{"v1"}, opts.PreserveDatasets)
	assert.Equal(t, cfg.MaxFileSize, opts.MaxFileSize)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"v1", "v2", "demo"}, splitList([]string{"v1, v2", "demo", " "}))
	assert.Empty(t, splitList(nil))
}
