package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/exam-pdf-importer/internal/imaging"
	"github.com/a3tai/exam-pdf-importer/internal/importer"
	"github.com/a3tai/exam-pdf-importer/internal/logging"
)

const (
	// Mode constants
	ModeBatch = "batch"
	ModeStdio = "stdio"

	// Default values
	DefaultInputDir      = "raw_pdfs"
	DefaultOutputDir     = "public/data"
	DefaultAssetsDir     = "public/assets/q"
	DefaultReportPath    = "scripts/import_report.json"
	DefaultLogLevel      = "info"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB
	DefaultWorkers       = 1
	DefaultPreserved     = "v1"
	DefaultEnvFile       = ".env"
	EnvPrefix            = "EXAM_IMPORT"
	DefaultDirPerm       = 0o750
	logRotateSizeMB      = 50
	logRotateBackups     = 3
	logRotateMaxAgeDays  = 28
	defaultServerName    = "exam-pdf-importer"
	defaultServerVersion = "1.0.0"
)

// ErrVersionRequested is returned by LoadFromFlags when --version is given.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the importer and its tool server.
type Config struct {
	Mode string `validate:"oneof=batch stdio"`

	// Input and output
	InputDir         string `validate:"required_if=Mode batch"`
	OutputDir        string `validate:"required"`
	AssetsDir        string
	AssetsURLPrefix  string `validate:"required"`
	ReportPath       string `validate:"required"`
	ReviewPath       string
	PreserveDatasets []string

	// Image extraction
	Images        bool
	Zoom          float64 `validate:"gt=0,lte=8"`
	RenderTimeout time.Duration
	IndexTimeout  time.Duration
	MaxQuestion   int `validate:"min=1,max=9999"`
	FontPath      string

	// Parsing
	KeywordsFile string
	Subject      string
	Workers      int   `validate:"min=1,max=64"`
	MaxFileSize  int64 `validate:"gt=0"`

	// MemoryLimitMB is the Go runtime soft memory limit; 0 leaves it unset.
	MemoryLimitMB int `validate:"min=0"`

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string `validate:"oneof=debug info warn error"`
	LogFile    string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:             ModeBatch,
		InputDir:         DefaultInputDir,
		OutputDir:        DefaultOutputDir,
		AssetsDir:        DefaultAssetsDir,
		AssetsURLPrefix:  imaging.DefaultURLPrefix,
		ReportPath:       DefaultReportPath,
		PreserveDatasets: []string{DefaultPreserved},
		Images:           true,
		Zoom:             imaging.DefaultZoom,
		RenderTimeout:    imaging.DefaultRenderTimeout,
		IndexTimeout:     imaging.DefaultIndexTimeout,
		MaxQuestion:      imaging.DefaultMaxQuestion,
		Workers:          DefaultWorkers,
		MaxFileSize:      DefaultMaxFileSize,
		Version:          defaultServerVersion,
		ServerName:       defaultServerName,
		LogLevel:         DefaultLogLevel,
	}
}

// LoadFromFlags loads .env, then layers defaults, EXAM_IMPORT_* environment
// variables and command line flags, in that order of precedence.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadEnvFile reads EXAM_IMPORT_ENV_FILE, or .env in the working directory.
// A missing file is not an error; variables already set are kept.
func loadEnvFile() error {
	path := os.Getenv(EnvPrefix + "_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("input-dir", cfg.InputDir)
	viper.SetDefault("output-dir", cfg.OutputDir)
	viper.SetDefault("assets-dir", cfg.AssetsDir)
	viper.SetDefault("assets-url-prefix", cfg.AssetsURLPrefix)
	viper.SetDefault("report-path", cfg.ReportPath)
	viper.SetDefault("review-path", cfg.ReviewPath)
	viper.SetDefault("preserve-datasets", cfg.PreserveDatasets)
	viper.SetDefault("images", cfg.Images)
	viper.SetDefault("zoom", cfg.Zoom)
	viper.SetDefault("render-timeout", cfg.RenderTimeout)
	viper.SetDefault("index-timeout", cfg.IndexTimeout)
	viper.SetDefault("max-question", cfg.MaxQuestion)
	viper.SetDefault("font-path", cfg.FontPath)
	viper.SetDefault("keywords-file", cfg.KeywordsFile)
	viper.SetDefault("subject", cfg.Subject)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("memory-limit", cfg.MemoryLimitMB)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("log-file", cfg.LogFile)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'batch' imports a directory, 'stdio' serves MCP tools on standard I/O")
	pflag.String("input-dir", cfg.InputDir, "Directory containing exam PDFs")
	pflag.String("output-dir", cfg.OutputDir, "Directory for questions_<id>.json and index.json")
	pflag.String("assets-dir", cfg.AssetsDir, "Directory for rendered question images")
	pflag.String("assets-url-prefix", cfg.AssetsURLPrefix, "URL prefix written into asset references")
	pflag.String("report-path", cfg.ReportPath, "Path of the import report JSON")
	pflag.String("review-path", cfg.ReviewPath, "Optional path of the review workbook (.xlsx)")
	pflag.StringSlice("preserve-datasets", cfg.PreserveDatasets, "Dataset ids kept from an existing index.json")
	pflag.Bool("images", cfg.Images, "Render crops for questions that refer to a figure")
	pflag.Float64("zoom", cfg.Zoom, "Render magnification")
	pflag.Duration("render-timeout", cfg.RenderTimeout, "Time limit for a single crop render")
	pflag.Duration("index-timeout", cfg.IndexTimeout, "Time limit for building the anchor index of a document")
	pflag.Int("max-question", cfg.MaxQuestion, "Highest question number searched when anchoring images")
	pflag.String("font-path", cfg.FontPath, "TrueType font used to draw text in crops")
	pflag.String("keywords-file", cfg.KeywordsFile, "YAML keyword tables overriding the built-in ones")
	pflag.String("subject", cfg.Subject, "Subject written into every record")
	pflag.Int("workers", cfg.Workers, "Documents processed in parallel")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("memory-limit", cfg.MemoryLimitMB, "Soft memory limit in MB for the whole process (0 = unlimited)")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("log-file", cfg.LogFile, "Also write logs to this file, rotated by size")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	pflag.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nExam PDF Importer - converts exam PDFs into question datasets\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                       # import raw_pdfs into public/data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input-dir=pdfs --review-path=r.xlsx # import with a review workbook\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --images=false --workers=4            # text only, four documents at a time\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio                          # serve MCP tools\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s_<FLAG>  any flag, upper case with '-' as '_' (e.g. %s_INPUT_DIR)\n", EnvPrefix, EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_ENV_FILE  env file loaded before flags (default .env)\n", EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.InputDir = viper.GetString("input-dir")
	cfg.OutputDir = viper.GetString("output-dir")
	cfg.AssetsDir = viper.GetString("assets-dir")
	cfg.AssetsURLPrefix = viper.GetString("assets-url-prefix")
	cfg.ReportPath = viper.GetString("report-path")
	cfg.ReviewPath = viper.GetString("review-path")
	cfg.PreserveDatasets = splitList(viper.GetStringSlice("preserve-datasets"))
	cfg.Images = viper.GetBool("images")
	cfg.Zoom = viper.GetFloat64("zoom")
	cfg.RenderTimeout = viper.GetDuration("render-timeout")
	cfg.IndexTimeout = viper.GetDuration("index-timeout")
	cfg.MaxQuestion = viper.GetInt("max-question")
	cfg.FontPath = viper.GetString("font-path")
	cfg.KeywordsFile = viper.GetString("keywords-file")
	cfg.Subject = viper.GetString("subject")
	cfg.Workers = viper.GetInt("workers")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.MemoryLimitMB = viper.GetInt("memory-limit")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.LogFile = viper.GetString("log-file")
}

// splitList accepts both repeated values and a single comma separated value,
// which is how list environment variables arrive.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks ranges and creates the output directories.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", f.Field(), f.Tag(), f.Value())
		}
		return err
	}

	if c.RenderTimeout <= 0 || c.IndexTimeout <= 0 {
		return errors.New("render and index timeouts must be positive")
	}
	if c.Images && c.AssetsDir == "" {
		return errors.New("assets directory cannot be empty when images are enabled")
	}

	if c.Mode == ModeBatch {
		info, err := os.Stat(c.InputDir)
		if err != nil {
			return fmt.Errorf("cannot access input directory %s: %w", c.InputDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("input path %s is not a directory", c.InputDir)
		}
	}

	dirs := []string{c.OutputDir, filepath.Dir(c.ReportPath)}
	if c.Images {
		dirs = append(dirs, c.AssetsDir)
	}
	if c.ReviewPath != "" {
		dirs = append(dirs, filepath.Dir(c.ReviewPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsBatchMode returns true for a one-shot directory import.
func (c *Config) IsBatchMode() bool {
	return c.Mode == ModeBatch
}

// IsStdioMode returns true if the tool server runs on standard I/O
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// LogOptions returns logger settings for this mode. Stdio mode logs text to
// errOut since stdout carries the protocol.
func (c *Config) LogOptions(out, errOut io.Writer) logging.Options {
	opts := logging.Options{
		Level:      c.LogLevel,
		Format:     logging.FormatJSON,
		Output:     out,
		File:       c.LogFile,
		MaxSizeMB:  logRotateSizeMB,
		MaxBackups: logRotateBackups,
		MaxAgeDays: logRotateMaxAgeDays,
	}
	if c.IsStdioMode() {
		opts.Format = logging.FormatText
		opts.Output = errOut
	}
	return opts
}

// Imaging returns the crop settings.
func (c *Config) Imaging() imaging.Config {
	return imaging.Config{
		AssetsDir:     c.AssetsDir,
		URLPrefix:     c.AssetsURLPrefix,
		Zoom:          c.Zoom,
		RenderTimeout: c.RenderTimeout,
		IndexTimeout:  c.IndexTimeout,
		MaxQuestion:   c.MaxQuestion,
	}
}

// ImportOptions returns the importer settings.
func (c *Config) ImportOptions() importer.Options {
	return importer.Options{
		Subject:          c.Subject,
		Images:           c.Images,
		Imaging:          c.Imaging(),
		FontPath:         c.FontPath,
		Workers:          c.Workers,
		OutputDir:        c.OutputDir,
		ReportPath:       c.ReportPath,
		ReviewPath:       c.ReviewPath,
		PreserveDatasets: c.PreserveDatasets,
		MaxFileSize:      c.MaxFileSize,
	}
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, InputDir: %s, OutputDir: %s, Images: %t, Workers: %d, LogLevel: %s}",
		c.Mode, c.InputDir, c.OutputDir, c.Images, c.Workers, c.LogLevel)
}
