package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Status is the outcome of one check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Result holds the outcome of a single check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	Required bool   `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r Result) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs environment checks for one project.
type Checker struct {
	dataDir  string
	storeDir string
	watch    bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithWatch makes the descriptor limit a required check.
func WithWatch(watch bool) Option {
	return func(c *Checker) { c.watch = watch }
}

// New returns a Checker for the given document root and store directory.
func New(dataDir, storeDir string, opts ...Option) *Checker {
	c := &Checker{dataDir: dataDir, storeDir: storeDir}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check in a fixed order.
func (c *Checker) RunAll(_ context.Context) []Result {
	return []Result{
		c.CheckDataDir(),
		c.CheckWritePermissions(),
		c.CheckDiskSpace(),
		c.CheckFileDescriptors(),
	}
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// Summary returns "ready", "ready_with_warnings" or "failed".
func Summary(results []Result) string {
	warned := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// Print writes one line per result followed by the summary.
func Print(w io.Writer, results []Result, verbose bool) {
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(w, "       %s\n", r.Details)
		}
	}
	_, _ = fmt.Fprintf(w, "Environment: %s\n", strings.ToUpper(Summary(results)))
}

// CheckDataDir verifies the document root exists and can be listed. An
// empty root only warns; update then removes everything from the index.
func (c *Checker) CheckDataDir() Result {
	r := Result{Name: "data_dir", Required: true}

	entries, err := os.ReadDir(c.dataDir)
	switch {
	case os.IsNotExist(err):
		r.Status = StatusFail
		r.Message = "not found: " + c.dataDir
		r.Details = "set paths.data_dir in .tfrag.yaml or TFRAG_DATA_DIR"
	case err != nil:
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot read: %v", err)
	case len(entries) == 0:
		r.Status = StatusWarn
		r.Message = "empty: " + c.dataDir
	default:
		r.Status = StatusPass
		r.Message = c.dataDir
	}
	return r
}

// CheckWritePermissions creates and removes a probe file in the store
// directory, creating the directory if needed.
func (c *Checker) CheckWritePermissions() Result {
	r := Result{Name: "store_writable", Required: true}

	if err := os.MkdirAll(c.storeDir, 0o755); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot create %s: %v", c.storeDir, err)
		return r
	}
	f, err := os.CreateTemp(c.storeDir, ".tfrag-preflight-*")
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("permission denied: %v", err)
		return r
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	r.Status = StatusPass
	r.Message = filepath.Clean(c.storeDir)
	return r
}
