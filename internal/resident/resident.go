// Package resident implements the Resident Extractor + YARA Glue
// (spec.md §4.3 step 5, §6 "Resident output layout"): dumping resident
// $DATA payloads to disk and matching them against YARA rules. It
// implements internal/timeline.ResidentHandler so the Timeline Builder
// never imports YARA or touches the filesystem directly.
package resident

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	yara "github.com/hillu/go-yara/v4"
)

// Config configures a Handler for one run. OutDir == "" disables dumping
// entirely (YARA-only matching still runs if Rules != nil).
type Config struct {
	OutDir   string
	YaraOnly bool // dump only records that matched a YARA rule
	Rules    *yara.Rules
}

// Handler implements internal/timeline.ResidentHandler.
type Handler struct {
	cfg Config

	mu      sync.Mutex
	summary *os.File

	Dumped  int
	Deleted int
}

// New opens (creating if needed) resident_summary.txt under cfg.OutDir
// when dumping is enabled, writing its header exactly once.
func New(cfg Config) (*Handler, error) {
	h := &Handler{cfg: cfg}
	if cfg.OutDir == "" {
		return h, nil
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(cfg.OutDir, "resident_summary.txt"))
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString("STATUS, FILE PATH\n"); err != nil {
		f.Close()
		return nil, err
	}
	h.summary = f
	return h, nil
}

// Close flushes and closes the summary file, if one was opened.
func (h *Handler) Close() error {
	if h.summary == nil {
		return nil
	}
	return h.summary.Close()
}

// Match runs YARA matching against data. rule is the first matched rule's
// name, or "" if no rule matched or no rules were loaded.
func (h *Handler) Match(data []byte) (rule string, matched bool) {
	if h.cfg.Rules == nil || len(data) == 0 {
		return "", false
	}
	var matches yara.MatchRules
	if err := h.cfg.Rules.ScanMem(data, 0, 0, &matches); err != nil {
		return "", false
	}
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Rule, true
}

// Dump writes data under h.cfg.OutDir/relPath (which may carry an
// ":ads_name" suffix) and appends one line to resident_summary.txt. When
// YaraOnly is set, a dump is only written for rule != "". The deleted/
// resident counters are incremented per successful dump regardless of
// which trigger (-r or -ry) caused it (spec.md §9's second open question).
func (h *Handler) Dump(relPath, status, rule string, data []byte) (wrote bool, err error) {
	if h.cfg.OutDir == "" {
		return false, nil
	}
	if h.cfg.YaraOnly && rule == "" {
		return false, nil
	}

	outPath := filepath.Join(h.cfg.OutDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.Dumped++
	if status == "DELETED" {
		h.Deleted++
	}

	line := fmt.Sprintf("%s,%s", status, relPath)
	if rule != "" {
		line += fmt.Sprintf(",YARA MATCHED: %s", rule)
	}
	if h.summary != nil {
		if _, err := h.summary.WriteString(line + "\n"); err != nil {
			return true, err
		}
	}
	return true, nil
}

// LoadRules compiles YARA source rules (spec.md §6 `-y`) into a Rules set.
func LoadRules(source string) (*yara.Rules, error) {
	c, err := yara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("new yara compiler: %w", err)
	}
	if err := c.AddString(source, "mftmactime"); err != nil {
		return nil, fmt.Errorf("compile yara rules: %w", err)
	}
	return c.GetRules()
}

// LoadCompiledRules loads a precompiled YARA ruleset (spec.md §6 `-yc`).
func LoadCompiledRules(path string) (*yara.Rules, error) {
	rules, err := yara.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("load compiled yara rules: %w", err)
	}
	return rules, nil
}

// SplitADS splits a resident relative path into its base file path and, if
// present, its alternate-data-stream name.
func SplitADS(relPath string) (path, ads string) {
	if i := strings.LastIndex(relPath, ":"); i >= 0 {
		return relPath[:i], relPath[i+1:]
	}
	return relPath, ""
}
