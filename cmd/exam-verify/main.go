package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/a3tai/exam-pdf-importer/internal/config"
	"github.com/a3tai/exam-pdf-importer/internal/imaging"
	"github.com/a3tai/exam-pdf-importer/internal/logging"
	"github.com/a3tai/exam-pdf-importer/internal/report"
	"github.com/a3tai/exam-pdf-importer/internal/verify"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// Exit codes.
const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

type options struct {
	dataDir   string
	publicDir string
	assetsDir string
	urlPrefix string
	format    string
	logLevel  string
	noWrite   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  opts.logLevel,
		Format: logging.FormatText,
		Output: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer closer.Close()

	v := verify.New(verify.Options{
		DataDir:   opts.dataDir,
		PublicDir: opts.publicDir,
		AssetsDir: opts.assetsDir,
		URLPrefix: opts.urlPrefix,
	}, logger)
	result, err := v.Verify()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if !opts.noWrite {
		if err := result.Write(opts.dataDir); err != nil {
			fmt.Fprintf(stderr, "Error writing result: %v\n", err)
			return exitUsage
		}
	}

	if err := outputResult(stdout, opts.format, result); err != nil {
		fmt.Fprintf(stderr, "Error outputting result: %v\n", err)
		return exitUsage
	}

	if !result.OK {
		return exitInvalid
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("exam-verify", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dataDir, "data-dir", config.DefaultOutputDir, "Data directory holding meta.json, index.json and the datasets")
	fs.StringVar(&opts.publicDir, "public-dir", "", "Directory root-relative asset URLs resolve against (default: parent of data-dir)")
	fs.StringVar(&opts.assetsDir, "assets-dir", "", "Directory figures were written to, when outside public-dir")
	fs.StringVar(&opts.urlPrefix, "assets-url-prefix", imaging.DefaultURLPrefix, "URL prefix that maps to assets-dir")
	fs.StringVar(&opts.format, "format", formatText, "Output format: text, json")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.noWrite, "no-write", false, "Do not write verify_result.json")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: exam-verify [options]\n\n")
		fmt.Fprintf(stderr, "Verify a published data directory before deployment.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExit status is 0 when the data is valid, 1 when problems were found and 2 on errors.\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		opts.dataDir = fs.Arg(0)
	}
	if opts.format != formatText && opts.format != formatJSON {
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func outputResult(w io.Writer, format string, res *verify.Result) error {
	if format == formatJSON {
		data, err := report.EncodeJSON(res)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	status := "OK"
	if !res.OK {
		status = "FAILED"
	}
	fmt.Fprintf(w, "Verification %s\n", status)
	fmt.Fprintf(w, "  Data version:    %s\n", res.DataVersion)
	fmt.Fprintf(w, "  Datasets:        %d\n", res.DatasetCount)
	fmt.Fprintf(w, "  Total questions: %d\n", res.TotalQuestions)
	if len(res.Problems) > 0 {
		fmt.Fprintf(w, "\nProblems (%d):\n", len(res.Problems))
		for _, p := range res.Problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		if res.Truncated {
			fmt.Fprintf(w, "  - ... further problems not listed\n")
		}
	}
	return nil
}
