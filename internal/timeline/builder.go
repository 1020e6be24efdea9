package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/kero99/mftmactime/internal/logger"
)

// ResidentHandler receives resident $DATA payloads discovered while
// walking the MFT. It owns YARA matching and the actual dump to disk
// (internal/resident implements it); the builder only decides whether a
// candidate record is eligible (X10 seen, non-zero size) and what path and
// status to report.
type ResidentHandler interface {
	// Match runs YARA rule matching against data. rule is the matched rule
	// name, or "" if no rule matched or YARA is not configured.
	Match(data []byte) (rule string, matched bool)
	// Dump writes data under relPath (which may include an ":ads_name"
	// suffix) if resident dumping is enabled. status is "ALLOCATED" or
	// "DELETED". Returns whether a dump was actually written, honoring
	// YARA-only mode upstream.
	Dump(relPath, status, rule string, data []byte) (wrote bool, err error)
}

// Config configures a Builder for one run.
type Config struct {
	DriveLetter byte   // e.g. 'C'
	Separator   string // host path separator, "/" or "\\"
	EmitX30     bool   // also emit $FILE_NAME events
	Resident    ResidentHandler
}

// Builder derives TimelineEvents from a stream of MftEntry values. It is
// not safe for concurrent use: one Builder processes one MFT pass.
type Builder struct {
	cfg Config

	PathIdx PathIndex
	AdsPend AdsPendingMap

	usnInode      uint64
	usnInodeFound bool
}

// NewBuilder returns a Builder ready to process an MFT pass.
func NewBuilder(cfg Config) *Builder {
	if cfg.Separator == "" {
		cfg.Separator = "/"
	}
	if cfg.DriveLetter == 0 {
		cfg.DriveLetter = 'C'
	}
	return &Builder{
		cfg:     cfg,
		PathIdx: make(PathIndex),
		AdsPend: make(AdsPendingMap),
	}
}

// UsnInode returns the entry_id identified as $Extend/$UsnJrnl during the
// MFT pass, if one was found.
func (b *Builder) UsnInode() (uint64, bool) {
	return b.usnInode, b.usnInodeFound
}

// Process derives the TimelineEvents contributed by one MftEntry and
// updates the builder's PathIndex / AdsPendingMap accordingly.
func (b *Builder) Process(entry MftEntry) []TimelineEvent {
	fullPath := fmt.Sprintf("%c:%s%s", b.cfg.DriveLetter, b.cfg.Separator, entry.FullPath)

	x10Events := make(map[time.Time]*Mask)
	x30Events := make(map[time.Time]*Mask)
	var adsResident []AdsPending
	var ftypeX10, ftypeX30 string
	var accessTime time.Time

	for _, attr := range entry.Attributes {
		switch attr.Tag {
		case AttrX10:
			mergeTimestamps(x10Events, attr.Timestamps)
			ftypeX10 = strings.Join(attr.FileFlags, " ")
			accessTime = attr.Timestamps.Accessed
		case AttrX30:
			if b.cfg.EmitX30 {
				mergeTimestamps(x30Events, attr.Timestamps)
				ftypeX30 = strings.Join(attr.FileFlags, " ")
			}
		case AttrX80, AttrOther:
			if attr.Name != "" && attr.DataSize > 0 {
				b.bufferADS(entry, attr, &adsResident)
			}
		}
	}

	b.detectUsnJrnl(entry)

	if b.cfg.Resident != nil {
		b.extractResident(entry, fullPath, accessTime)
	}

	if !accessTime.IsZero() {
		b.PathIdx[entry.EntryID] = PathEntry{
			FullPath:   fullPath,
			FileSize:   entry.FileSize,
			AccessTime: accessTime,
		}
	}

	flagsStr := strings.Join(entry.Flags, " ")
	var events []TimelineEvent

	for date, mask := range x10Events {
		events = append(events, TimelineEvent{
			Date: date, FileSize: entry.FileSize, DateFlags: mask.String(),
			FullPath: fullPath, Inode: entry.EntryID, Flags: flagsStr, FType: ftypeX10,
		})
		for _, ads := range adsResident {
			events = append(events, TimelineEvent{
				Date: date, FileSize: ads.Size, DateFlags: mask.String(),
				FullPath: fullPath + ":" + ads.Name, Inode: entry.EntryID, Flags: flagsStr, FType: ftypeX10,
			})
		}
	}

	if pending, ok := b.AdsPend[entry.EntryID]; ok && !accessTime.IsZero() {
		events = append(events, TimelineEvent{
			Date: accessTime, FileSize: pending.Size, DateFlags: "....",
			FullPath: fullPath + ":" + pending.Name, Inode: entry.EntryID, Flags: flagsStr, FType: ftypeX10,
		})
		delete(b.AdsPend, entry.EntryID)
	}

	if b.cfg.EmitX30 {
		for date, mask := range x30Events {
			events = append(events, TimelineEvent{
				Date: date, FileSize: entry.FileSize, DateFlags: mask.String(),
				FullPath: fullPath + " ($FILE_NAME)", Inode: entry.EntryID, Flags: flagsStr, FType: ftypeX30,
			})
		}
	}

	return events
}

// bufferADS implements step 4 of the timeline-building algorithm: ADS
// attributes on extension records are buffered by base entry id until the
// base record is seen (either before or after, in on-disk order); ADS
// attributes on base records are appended to the entry's own emission.
func (b *Builder) bufferADS(entry MftEntry, attr MftAttribute, adsResident *[]AdsPending) {
	if entry.BaseEntryID > 0 {
		if entry.FileSize > 0 {
			b.AdsPend[entry.BaseEntryID] = AdsPending{Name: attr.Name, Size: entry.FileSize}
			return
		}
		if _, exists := b.AdsPend[entry.BaseEntryID]; !exists {
			b.AdsPend[entry.BaseEntryID] = AdsPending{Name: attr.Name, Size: attr.DataSize}
		}
		return
	}
	*adsResident = append(*adsResident, AdsPending{Name: attr.Name, Size: attr.DataSize})
}

// detectUsnJrnl records entry.EntryID as the $UsnJrnl inode the first time
// a record whose path is under $Extend/$UsnJrnl and whose size exceeds
// 1 MiB is seen.
func (b *Builder) detectUsnJrnl(entry MftEntry) {
	if b.usnInodeFound {
		return
	}
	marker := "$Extend" + b.cfg.Separator + "$UsnJrnl"
	if strings.Contains(entry.FullPath, marker) && entry.FileSize > 1<<20 {
		b.usnInode = entry.EntryID
		b.usnInodeFound = true
	}
}

// extractResident implements step 5: resident $DATA content is handed to
// the ResidentHandler once X10 has been seen and the record carries a
// non-zero file size.
func (b *Builder) extractResident(entry MftEntry, fullPath string, accessTime time.Time) {
	if accessTime.IsZero() || entry.FileSize == 0 {
		return
	}
	status := "DELETED"
	if entry.HasFlag("ALLOCATED") {
		status = "ALLOCATED"
	}
	for _, attr := range entry.Attributes {
		if attr.Tag != AttrX80 || !attr.Resident {
			continue
		}
		rule, matched := b.cfg.Resident.Match(attr.Data)
		if matched {
			logger.Info("yara match", logger.Path(fullPath), logger.YaraRule(rule))
		}
		relPath := entry.FullPath
		if attr.Name != "" {
			relPath += ":" + attr.Name
		}
		if _, err := b.cfg.Resident.Dump(relPath, status, rule, attr.Data); err != nil {
			logger.Warn("resident dump failed", logger.Path(relPath), logger.Err(err))
		}
	}
}

// Flush emits the final residual events for every AdsPendingMap entry
// whose base record was eventually seen (step 8). Entries whose base was
// never observed are discarded.
func (b *Builder) Flush() []TimelineEvent {
	var events []TimelineEvent
	for bid, pending := range b.AdsPend {
		pe, ok := b.PathIdx[bid]
		if !ok {
			continue
		}
		events = append(events, TimelineEvent{
			Date: pe.AccessTime, FileSize: pending.Size, DateFlags: "....",
			FullPath: pe.FullPath + ":" + pending.Name, Inode: bid, Flags: "ALLOCATED",
		})
	}
	return events
}
