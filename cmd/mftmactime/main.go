// Command mftmactime produces a mactime-format CSV filesystem timeline
// from a Windows NTFS MFT artifact and, optionally, a USN change journal.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kero99/mftmactime/internal/bodyfile"
	"github.com/kero99/mftmactime/internal/cli/output"
	"github.com/kero99/mftmactime/internal/cli/timeutil"
	"github.com/kero99/mftmactime/internal/config"
	"github.com/kero99/mftmactime/internal/logger"
	"github.com/kero99/mftmactime/internal/mftrecord"
	"github.com/kero99/mftmactime/internal/ntfsvol"
	"github.com/kero99/mftmactime/internal/resident"
	"github.com/kero99/mftmactime/internal/timeline"
	"github.com/kero99/mftmactime/internal/usn"
)

var version = "dev"

const usageHeader = `mftmactime - NTFS MFT/USN forensic timeline builder

Usage:
  mftmactime -f <mft|image> -o <out.csv> [flags]
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		printer := output.NewPrinter(os.Stderr, output.FormatTable, true)
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			printer.Error(verr.Message)
		} else {
			printer.Error(err.Error())
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	start := time.Now()
	fs := flag.NewFlagSet("mftmactime", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usageHeader)
		fs.PrintDefaults()
	}

	opts, err := config.Parse(fs, args)
	if err != nil {
		return err
	}

	if opts.PrintVersion {
		fmt.Printf("mftmactime %s\n", version)
		return nil
	}

	if err := logger.Init(logger.Config{Level: "INFO", Format: "text", Output: "stderr"}); err != nil {
		return err
	}

	inputKind, err := classifyInput(opts)
	if err != nil {
		return err
	}
	if err := config.Validate(opts, string(inputKind)); err != nil {
		return err
	}

	driveLetter := byte('C')
	if len(opts.DriveLetter) > 0 {
		driveLetter = opts.DriveLetter[0]
	}

	residentHandler, err := setupResident(opts)
	if err != nil {
		return &config.ValidationError{Kind: config.ErrYaraLoad, Message: err.Error()}
	}
	if residentHandler != nil {
		defer residentHandler.Close()
	}

	builder := timeline.NewBuilder(timeline.Config{
		DriveLetter: driveLetter,
		Separator:   string(filepath.Separator),
		EmitX30:     opts.EmitFileName,
		Resident:    residentHandlerOrNil(residentHandler),
	})

	mftPath, err := resolveMftPath(opts, inputKind)
	if err != nil {
		return err
	}

	events, err := runMftPass(mftPath, builder)
	if err != nil {
		return err
	}

	usnInode, usnFound := builder.UsnInode()
	if usnPath, ok := resolveUsnPath(opts, usnInode, usnFound); ok {
		usnEvents, err := runUsnPass(usnPath, builder.PathIdx)
		if err != nil {
			logger.Warn("usn pass ended early", logger.Err(err))
		}
		events = append(events, usnEvents...)
	} else if opts.UsnSource != "" {
		logger.Warn("no $UsnJrnl inode discovered during MFT pass; skipping USN processing")
	}

	events = append(events, builder.Flush()...)

	bodyfile.Sort(events)

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := bodyfile.Write(out, events, config.Location(opts)); err != nil {
		return err
	}

	printSummary(events, residentHandler, opts.OutputPath, time.Since(start))
	return nil
}

func classifyInput(opts *config.Options) (ntfsvol.Kind, error) {
	if opts.InputPath == "" {
		return ntfsvol.KindUnsupported, nil
	}
	kind, err := ntfsvol.Classify(opts.InputPath, opts.PartitionOff)
	if err != nil {
		return ntfsvol.KindUnsupported, &config.ValidationError{Kind: config.ErrInputMissing, Message: fmt.Sprintf("cannot open input: %v", err)}
	}
	return kind, nil
}

func resolveMftPath(opts *config.Options, kind ntfsvol.Kind) (string, error) {
	if kind == ntfsvol.KindMFT {
		return opts.InputPath, nil
	}
	return ntfsvol.DumpByInode(opts.InputPath, opts.PartitionOff, 0, opts.ScratchDir, "MFT")
}

func resolveUsnPath(opts *config.Options, usnInode uint64, usnFound bool) (string, bool) {
	if opts.UsnSource == "" {
		return "", false
	}
	kind, err := ntfsvol.Classify(opts.UsnSource, opts.PartitionOff)
	if err != nil {
		return "", false
	}
	if kind != ntfsvol.KindNTFS {
		return opts.UsnSource, true
	}
	if !usnFound {
		return "", false
	}
	path, err := ntfsvol.DumpByInode(opts.UsnSource, opts.PartitionOff, int64(usnInode), opts.ScratchDir, "UsnJrnl")
	if err != nil {
		logger.Warn("failed to dump $UsnJrnl", logger.Err(err))
		return "", false
	}
	return path, true
}

func runMftPass(mftPath string, builder *timeline.Builder) ([]timeline.TimelineEvent, error) {
	f, err := os.Open(mftPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, decodeErrs := mftrecord.Decode(f, string(filepath.Separator))
	for _, derr := range decodeErrs {
		logger.Warn("skipping malformed mft record", logger.Err(derr))
	}

	var events []timeline.TimelineEvent
	for _, entry := range entries {
		events = append(events, builder.Process(entry)...)
	}
	return events, nil
}

func runUsnPass(usnPath string, idx timeline.PathIndex) ([]timeline.TimelineEvent, error) {
	data, err := os.ReadFile(usnPath)
	if err != nil {
		return nil, err
	}

	var events []timeline.TimelineEvent
	cur := usn.FindFirstRecord(data)
	for cur >= 0 && cur < len(data) {
		rec, err := usn.Parse(data, cur)
		if err != nil {
			break
		}
		events = append(events, usn.Correlate(rec, idx, func(entryNumber uint64) {
			logger.Warn("usn entry not found in path index; file_size unknown", logger.Inode(entryNumber))
		}))
		cur = usn.FindNextRecord(data, cur)
	}
	return events, nil
}

func setupResident(opts *config.Options) (*resident.Handler, error) {
	outDir := opts.ResidentDir
	yaraOnly := false
	if outDir == "" && opts.YaraOnlyDir != "" {
		outDir = opts.YaraOnlyDir
		yaraOnly = true
	}

	cfg := resident.Config{OutDir: outDir, YaraOnly: yaraOnly}

	switch {
	case opts.YaraCompiled != "":
		r, err := resident.LoadCompiledRules(opts.YaraCompiled)
		if err != nil {
			return nil, err
		}
		cfg.Rules = r
	case opts.YaraSource != "":
		data, err := os.ReadFile(opts.YaraSource)
		if err != nil {
			return nil, err
		}
		r, err := resident.LoadRules(string(data))
		if err != nil {
			return nil, err
		}
		cfg.Rules = r
	}

	if cfg.OutDir == "" && cfg.Rules == nil {
		return nil, nil
	}
	return resident.New(cfg)
}

func residentHandlerOrNil(h *resident.Handler) timeline.ResidentHandler {
	if h == nil {
		return nil
	}
	return h
}

type runSummary struct {
	EventCount int
	Dumped     int
	Deleted    int
}

func (s runSummary) Headers() []string { return []string{"Metric", "Count"} }

func (s runSummary) Rows() [][]string {
	rows := [][]string{{"Events", itoa(s.EventCount)}}
	if s.Dumped > 0 || s.Deleted > 0 {
		rows = append(rows, []string{"Resident dumps", itoa(s.Dumped)}, []string{"Deleted", itoa(s.Deleted)})
	}
	return rows
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

func printSummary(events []timeline.TimelineEvent, h *resident.Handler, outputPath string, elapsed time.Duration) {
	s := runSummary{EventCount: len(events)}
	if h != nil {
		s.Dumped = h.Dumped
		s.Deleted = h.Deleted
	}
	printer := output.DefaultPrinter()
	_ = printer.Print(s)
	printer.Success(fmt.Sprintf("wrote %d events to %s in %s", len(events), outputPath, timeutil.FormatUptime(elapsed.String())))
	logger.Info("timeline complete", logger.Count(len(events)))
}
