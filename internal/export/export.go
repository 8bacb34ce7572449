// Package export writes grid rows to a file format and hands the result to
// a sink: the local file system or an S3 bucket.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"strings"
	"time"
)

// Supported formats.
const (
	FormatCSV = "csv"
	FormatTXT = "txt"
)

// ErrUnsupportedFormat is returned for formats the exporter cannot write,
// such as xls and pdf.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Sink stores a finished export and returns where it went.
type Sink interface {
	Put(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	if format == FormatTXT {
		return "text/plain; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Write encodes rows in the given format: comma separated for csv, tab
// separated for txt.
func Write(w io.Writer, format string, rows iter.Seq[[]string]) (int, error) {
	cw := csv.NewWriter(w)
	switch strings.ToLower(format) {
	case FormatCSV:
	case FormatTXT:
		cw.Comma = '\t'
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	n := 0
	for row := range rows {
		if err := cw.Write(row); err != nil {
			return n, fmt.Errorf("write row %d: %w", n, err)
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

// Export writes rows into sink under name plus the format extension and
// returns the location the sink reports.
func Export(ctx context.Context, rows iter.Seq[[]string], format, name string, sink Sink) (string, error) {
	start := time.Now()
	var buf bytes.Buffer
	n, err := Write(&buf, format, rows)
	if err != nil {
		return "", err
	}
	format = strings.ToLower(format)
	loc, err := sink.Put(ctx, name+"."+format, ContentType(format), &buf)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	log.Printf("export: %d rows to %s took %s", n, loc, time.Since(start))
	return loc, nil
}
