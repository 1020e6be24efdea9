package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

// logContextKey is the key for RunContext in context.Context.
var logContextKey = contextKey{}

// RunContext holds run-scoped logging context for a single mftmactime
// invocation: the artifact being processed and the phase currently
// executing (loader, mft, usn, resident, yara, writer).
type RunContext struct {
	Artifact  string    // input artifact path (-f)
	Phase     string    // current processing phase
	Inode     uint64    // MFT record number currently being processed, if any
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given RunContext.
func WithContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, logContextKey, rc)
}

// FromContext retrieves the RunContext from context, or nil if not present.
func FromContext(ctx context.Context) *RunContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(logContextKey).(*RunContext)
	return rc
}

// NewRunContext creates a new RunContext for the given artifact path.
func NewRunContext(artifact string) *RunContext {
	return &RunContext{
		Artifact:  artifact,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the RunContext.
func (rc *RunContext) Clone() *RunContext {
	if rc == nil {
		return nil
	}
	return &RunContext{
		Artifact:  rc.Artifact,
		Phase:     rc.Phase,
		Inode:     rc.Inode,
		StartTime: rc.StartTime,
	}
}

// WithPhase returns a copy with the phase set.
func (rc *RunContext) WithPhase(phase string) *RunContext {
	clone := rc.Clone()
	if clone != nil {
		clone.Phase = phase
	}
	return clone
}

// WithInode returns a copy with the current inode set.
func (rc *RunContext) WithInode(inode uint64) *RunContext {
	clone := rc.Clone()
	if clone != nil {
		clone.Inode = inode
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (rc *RunContext) DurationMs() float64 {
	if rc == nil || rc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(rc.StartTime).Microseconds()) / 1000.0
}
