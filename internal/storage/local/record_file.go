package local

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// Format selects the line encoding of a RecordFile.
type Format string

// Supported record file formats.
const (
	// FormatText writes "<name> <price> <url>" lines. Names containing spaces
	// cannot be split back unambiguously.
	FormatText Format = "text"
	// FormatJSONL writes one JSON object per line.
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a configured format name. Empty means FormatText.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSONL:
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown record format %q", raw)
	}
}

// RecordFile appends records to a file. The file is opened and closed on
// every Append and never truncated.
type RecordFile struct {
	path   string
	format Format
}

// NewRecordFile returns a RecordFile writing to path, creating parent
// directories as needed.
func NewRecordFile(path string, format Format) (*RecordFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("record file path is required")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatText
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create record file dir %s: %w", dir, err)
		}
	}
	return &RecordFile{path: path, format: format}, nil
}

// Path returns the destination file path.
func (f *RecordFile) Path() string {
	return f.path
}

// Append implements crawler.Sink.
func (f *RecordFile) Append(ctx context.Context, _ int, records []crawler.Record) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open record file %s: %w", f.path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close record file %s: %w", f.path, cerr))
		}
	}()

	w := bufio.NewWriter(file)
	for _, rec := range records {
		if err := f.writeRecord(w, rec); err != nil {
			return fmt.Errorf("write record to %s: %w", f.path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush record file %s: %w", f.path, err)
	}
	return nil
}

func (f *RecordFile) writeRecord(w *bufio.Writer, rec crawler.Record) error {
	if f.format == FormatJSONL {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		return w.WriteByte('\n')
	}
	_, err := w.WriteString(rec.Line())
	return err
}
