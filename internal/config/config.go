// Package config resolves mftmactime's CLI flags (spec.md §6), with
// environment variable overrides (MFTMACTIME_* prefix) taking precedence
// over flag defaults but never over an explicitly-passed flag, and
// validates the result into the fatal error kinds of spec.md §7.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Options mirrors the CLI flag table of spec.md §6, one field per flag.
type Options struct {
	InputPath     string // -f
	OutputPath    string // -o
	DriveLetter   string // -m
	EmitFileName  bool   // -n
	Timezone      string // -tz
	ResidentDir   string // -r
	UsnSource     string // -u
	PartitionOff  int64  // -s
	ScratchDir    string // -d
	YaraSource    string // -y
	YaraCompiled  string // -yc
	YaraOnlyDir   string // -ry
	PrintVersion  bool   // -V
}

// ErrorKind names one of spec.md §7's fatal error kinds.
type ErrorKind string

const (
	ErrInputMissing      ErrorKind = "InputMissing"
	ErrInputUnsupported  ErrorKind = "InputUnsupported"
	ErrRawImageNoScratch ErrorKind = "RawImageWithoutScratch"
	ErrInvalidTimeZone   ErrorKind = "InvalidTimeZone"
	ErrYaraLoad          ErrorKind = "YaraLoadError"
)

// ValidationError pairs a fatal error kind with its message; cmd/mftmactime
// maps this to exit code 1 (spec.md §7).
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Parse builds an Options from args (normally os.Args[1:]), applying
// MFTMACTIME_* environment overrides for any flag left at its default,
// except -s and -V, which are never read from the environment.
func Parse(fs *flag.FlagSet, args []string) (*Options, error) {
	opts := &Options{DriveLetter: "C"}

	fs.StringVar(&opts.InputPath, "f", "", "MFT artifact or raw NTFS image")
	fs.StringVar(&opts.OutputPath, "o", "", "output CSV path")
	fs.StringVar(&opts.DriveLetter, "m", "C", "drive letter prefix")
	fs.BoolVar(&opts.EmitFileName, "n", false, "also emit $FILE_NAME events")
	fs.StringVar(&opts.Timezone, "tz", "", "output IANA timezone (default UTC)")
	fs.StringVar(&opts.ResidentDir, "r", "", "dump resident $DATA under this dir")
	fs.StringVar(&opts.UsnSource, "u", "", "USN source (journal file or raw NTFS image)")
	fs.Int64Var(&opts.PartitionOff, "s", 0, "partition offset in raw image")
	fs.StringVar(&opts.ScratchDir, "d", "", "scratch dir for extracted MFT/USN")
	fs.StringVar(&opts.YaraSource, "y", "", "YARA source rules")
	fs.StringVar(&opts.YaraCompiled, "yc", "", "precompiled YARA rules")
	fs.StringVar(&opts.YaraOnlyDir, "ry", "", "dump resident files only on YARA match")
	fs.BoolVar(&opts.PrintVersion, "V", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	applyEnvOverrides(fs, opts)
	return opts, nil
}

// applyEnvOverrides fills any flag the user did NOT pass explicitly (other
// than -s and -V) from its MFTMACTIME_<FLAG> environment variable, mirroring the teacher's
// env-prefix convention (DITTOFS_* there, MFTMACTIME_* here).
func applyEnvOverrides(fs *flag.FlagSet, opts *Options) {
	v := viper.New()
	v.SetEnvPrefix("MFTMACTIME")
	v.AutomaticEnv()

	passed := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { passed[f.Name] = true })

	stringEnv := func(name string, dst *string) {
		if passed[name] {
			return
		}
		if val := v.GetString(envKey(name)); val != "" {
			*dst = val
		}
	}
	boolEnv := func(name string, dst *bool) {
		if passed[name] {
			return
		}
		if v.IsSet(envKey(name)) {
			*dst = v.GetBool(envKey(name))
		}
	}

	stringEnv("f", &opts.InputPath)
	stringEnv("o", &opts.OutputPath)
	stringEnv("m", &opts.DriveLetter)
	boolEnv("n", &opts.EmitFileName)
	stringEnv("tz", &opts.Timezone)
	stringEnv("r", &opts.ResidentDir)
	stringEnv("u", &opts.UsnSource)
	stringEnv("d", &opts.ScratchDir)
	stringEnv("y", &opts.YaraSource)
	stringEnv("yc", &opts.YaraCompiled)
	stringEnv("ry", &opts.YaraOnlyDir)
}

func envKey(flagName string) string {
	switch flagName {
	case "yc":
		return "YARA_COMPILED"
	case "ry":
		return "YARA_ONLY_DIR"
	case "tz":
		return "TZ"
	case "f":
		return "INPUT"
	case "o":
		return "OUTPUT"
	case "m":
		return "DRIVE_LETTER"
	case "n":
		return "EMIT_FILENAME"
	case "r":
		return "RESIDENT_DIR"
	case "u":
		return "USN_SOURCE"
	case "d":
		return "SCRATCH_DIR"
	case "y":
		return "YARA_SOURCE"
	default:
		return flagName
	}
}

// Validate checks opts against spec.md §7's fatal error kinds. inputKind is
// "mft", "ntfs", or "unsupported" as returned by internal/ntfsvol.Classify;
// pass "" to skip the classification-dependent checks (e.g. before -f has
// been resolved).
func Validate(opts *Options, inputKind string) error {
	if opts.InputPath == "" {
		return &ValidationError{Kind: ErrInputMissing, Message: "Input file is required"}
	}
	if opts.OutputPath == "" {
		return &ValidationError{Kind: ErrInputMissing, Message: "Output path is required"}
	}
	if inputKind == "unsupported" {
		return &ValidationError{Kind: ErrInputUnsupported, Message: "Input file format is not recognized as MFT or NTFS"}
	}
	if inputKind == "ntfs" && opts.ScratchDir == "" {
		return &ValidationError{Kind: ErrRawImageNoScratch, Message: "Dump path is required for RAW Evidence"}
	}
	if opts.Timezone != "" {
		if _, err := time.LoadLocation(opts.Timezone); err != nil {
			return &ValidationError{Kind: ErrInvalidTimeZone, Message: fmt.Sprintf("invalid timezone %q: %v", opts.Timezone, err)}
		}
	}
	return nil
}

// Location resolves opts.Timezone (already validated) to a *time.Location,
// defaulting to UTC.
func Location(opts *Options) *time.Location {
	if opts.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
