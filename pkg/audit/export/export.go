// Package export serializes audit entries to JSON, JSONL or CSV. It is a
// pure formatting layer: it never touches a store or a sink, and operates on
// entries the caller already obtained via a query.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// Format is one of the supported export encodings.
type Format string

const (
	JSON  Format = "json"
	JSONL Format = "jsonl"
	CSV   Format = "csv"
)

// csvHeader is the fixed CSV column set.
var csvHeader = []string{"id", "timestamp", "type", "action", "outcome", "actorId", "resourceId", "description"}

// Write serializes entries to w in the given format. JSON is a pretty
// two-space-indented array, JSONL is one compact object per line with a
// trailing newline, CSV has the fixed header and RFC4180-style quoting with
// every value double-quoted.
func Write(w io.Writer, entries []*domain.AuditEntry, format Format) error {
	switch format {
	case JSON:
		return writeJSON(w, entries)
	case JSONL:
		return writeJSONL(w, entries)
	case CSV:
		return writeCSV(w, entries)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownFormat, format)
	}
}

// ToFile writes the export to path, creating parent directories as needed.
func ToFile(path string, entries []*domain.AuditEntry, format Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(f, entries, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, entries []*domain.AuditEntry) error {
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func writeJSONL(w io.Writer, entries []*domain.AuditEntry) error {
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV force-quotes every value (encoding/csv only quotes when needed,
// and the export contract requires all fields quoted) and doubles embedded
// quotes per RFC4180.
func writeCSV(w io.Writer, entries []*domain.AuditEntry) error {
	if _, err := io.WriteString(w, strings.Join(csvHeader, ",")+"\n"); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Event.Type),
			e.Event.Action,
			string(e.Event.Outcome),
			e.Event.NormalizedActorID(),
			e.Event.NormalizedResourceID(),
			e.Event.Description,
		}
		for i, v := range row {
			row[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
		}
		if _, err := io.WriteString(w, strings.Join(row, ",")+"\n"); err != nil {
			return err
		}
	}
	return nil
}
