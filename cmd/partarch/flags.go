package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Flags holds all command-line flags
type Flags struct {
	Output   string
	Force    bool
	Metadata bool
	Verbose  bool
	Quiet    bool

	Config    string
	Tables    string // comma-separated subset of configured tables
	ChunkSize int    // MB; 0 = from config

	CreateConfig string

	Version bool
	Help    bool

	// Partitions - позиционные аргументы
	Partitions []string
}

// ParseFlags parses args (without the program name). Short and long forms
// share one variable: -o and --output are the same flag.
func ParseFlags(args []string) (*Flags, error) {
	flags := &Flags{}
	fs := flag.NewFlagSet("partarch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&flags.Output, "o", ".", "")
	fs.StringVar(&flags.Output, "output", ".", "Output root directory")
	fs.BoolVar(&flags.Force, "f", false, "")
	fs.BoolVar(&flags.Force, "force", false, "Overwrite existing output files and parts")
	fs.BoolVar(&flags.Metadata, "m", false, "")
	fs.BoolVar(&flags.Metadata, "metadata", false, "Write the resolved query next to each file")
	fs.BoolVar(&flags.Verbose, "v", false, "")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Debug logging")
	fs.BoolVar(&flags.Quiet, "q", false, "")
	fs.BoolVar(&flags.Quiet, "quiet", false, "Warnings and errors only")

	fs.StringVar(&flags.Config, "config", DefaultConfigFile, "Configuration file")
	fs.StringVar(&flags.Tables, "tables", "", "Comma-separated list of tables to export")
	fs.IntVar(&flags.ChunkSize, "chunk-size", 0, "Split files larger than this many MB")

	fs.StringVar(&flags.CreateConfig, "create-config", "", "Write a sample config for sqlite|postgres|mysql|mssql")

	fs.BoolVar(&flags.Version, "version", false, "Show version")
	fs.BoolVar(&flags.Help, "h", false, "")
	fs.BoolVar(&flags.Help, "help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			flags.Help = true
			return flags, nil
		}
		return nil, &UsageError{Err: err}
	}

	if flags.Verbose && flags.Quiet {
		return nil, &UsageError{Err: fmt.Errorf("--verbose and --quiet are mutually exclusive")}
	}

	if flags.ChunkSize < 0 {
		return nil, &UsageError{Err: fmt.Errorf("--chunk-size must be positive, got %d", flags.ChunkSize)}
	}

	flags.Partitions = fs.Args()
	return flags, nil
}

// TableFilter возвращает список таблиц из --tables
func (f *Flags) TableFilter() []string {
	if strings.TrimSpace(f.Tables) == "" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(f.Tables, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
