package runtime

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/cursivelang/corec/internal/config"
	"github.com/cursivelang/corec/internal/diag"
)

var traceLogger = diag.DefaultLogger("runtime.trace")

// Tracer appends TSV lines recording spec-tagged runtime operations when
// CURSIVE_SPEC_TRACE_RUNTIME names a file (spec.md §6 Environment), and
// brotli-rotates the live segment once it crosses TraceRotateBytes.
type Tracer struct {
	mu          sync.Mutex
	path        string
	rotateBytes int64
	f           *os.File
	written     int64
	segment     int
}

// NewTracer creates a Tracer from cfg. A Tracer with an empty path is a
// no-op sink.
func NewTracer(cfg config.CompilerConfig) *Tracer {
	t := &Tracer{path: cfg.TracePath, rotateBytes: cfg.TraceRotateBytes}
	if t.path == "" {
		return t
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		traceLogger.Warn("trace file open failed, tracing disabled", diag.String("path", t.path), diag.Err(err))
		t.path = ""
		return t
	}
	t.f = f
	if fi, err := f.Stat(); err == nil {
		t.written = fi.Size()
	}
	return t
}

// encodeField applies the %HH escaping spec.md §6 requires for TSV
// columns: '%', '\t', '\n', ';', and '=' are percent-encoded so that no
// column value can be mistaken for a delimiter.
func encodeField(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '%', '\t', '\n', ';', '=':
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Record appends one trace line: a UTC timestamp, op, then key=value fields
// joined by ';', with the three columns separated by tabs.
func (t *Tracer) Record(op string, fields map[string]string) {
	if t == nil || t.path == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	b.WriteString("\t")
	b.WriteString(encodeField(op))
	sep := "\t"
	for k, v := range fields {
		b.WriteString(sep)
		b.WriteString(encodeField(k))
		b.WriteString("=")
		b.WriteString(encodeField(v))
		sep = ";"
	}
	b.WriteString("\n")
	line := b.String()

	n, err := t.f.WriteString(line)
	if err != nil {
		traceLogger.Warn("trace write failed", diag.Err(err))
		return
	}
	t.written += int64(n)
	if t.rotateBytes > 0 && t.written >= t.rotateBytes {
		t.rotateLocked()
	}
}

// rotateLocked compresses the current live segment with brotli and starts
// a fresh one, called with mu held (spec.md §6 "rotation compresses the
// just-closed segment").
func (t *Tracer) rotateLocked() {
	if err := t.f.Close(); err != nil {
		traceLogger.Warn("trace rotate close failed", diag.Err(err))
	}
	t.segment++
	rotated := fmt.Sprintf("%s.%d", t.path, t.segment)
	if err := os.Rename(t.path, rotated); err != nil {
		traceLogger.Warn("trace rotate rename failed", diag.Err(err))
	} else if err := compressFile(rotated); err != nil {
		traceLogger.Warn("trace rotate compress failed", diag.Err(err))
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		traceLogger.Warn("trace rotate reopen failed, tracing disabled", diag.Err(err))
		t.path = ""
		return
	}
	t.f = f
	t.written = 0
}

func compressFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := os.Create(path + ".br")
	if err != nil {
		return err
	}
	defer out.Close()
	w := brotli.NewWriter(out)
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// Close releases the underlying trace file handle, if any.
func (t *Tracer) Close() error {
	if t == nil || t.f == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.f.Close()
}
