// Package export writes the matched effort rows to a delimited file the
// club spreadsheet can import.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"

	"github.com/grancakongen/segment-export-go/log"
	"github.com/grancakongen/segment-export-go/pkg/model"
)

const (
	DefaultPath = "results.csv"

	FormatCSV = "csv"
	FormatTSV = "tsv"
)

// Header is the first line of every results file, matching the club sheet
// columns.
var Header = []string{
	"År",
	"segment",
	"NAVN",
	"elapsed time (mm:ss)",
	"segment effort URL",
	"avg Watt",
	"avg Bpm",
	"avg Cadence",
}

var ErrUnknownFormat = errors.New("unknown output format")

// DelimiterFor maps an output format name to its delimiter.
func DelimiterFor(format string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV:
		return ',', nil
	case FormatTSV:
		return '\t', nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func NewWriter(opts ...Option) *Writer {
	ret := &Writer{
		path:      DefaultPath,
		delimiter: ',',
		echo:      os.Stdout,
		log:       log.Default().Named("export"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

type Option func(*Writer)

func WithPath(arg string) Option {
	return func(w *Writer) {
		w.path = arg
	}
}

func WithDelimiter(arg rune) Option {
	return func(w *Writer) {
		w.delimiter = arg
	}
}

// WithEcho sets the writer the rows are echoed to, tab separated, before the
// file is written. Defaults to stdout.
func WithEcho(arg io.Writer) Option {
	return func(w *Writer) {
		w.echo = arg
	}
}

func WithLogger(arg *log.Logger) Option {
	return func(w *Writer) {
		w.log = arg
	}
}

type Writer struct {
	path      string
	delimiter rune
	echo      io.Writer
	log       *log.Logger
}

// Write echoes the rows tab separated, writes the delimited file (header
// line always, even for zero rows) and reports the row count and path. Rows
// keep their order; unset metrics become empty cells.
func (w *Writer) Write(rows []model.EffortRow) error {
	records := lo.Map(rows, func(row model.EffortRow, _ int) []string {
		return record(row)
	})

	fmt.Fprintln(w.echo, strings.Join(Header, "\t"))
	for _, rec := range records {
		fmt.Fprintln(w.echo, strings.Join(rec, "\t"))
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	cw.Comma = w.delimiter
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}

	w.log.Debug("results written",
		log.Int("rows", len(records)), log.String("path", w.path))
	fmt.Fprintf(w.echo, "\nSaved %d rows to %s\n", len(records), w.path)
	return nil
}

func record(row model.EffortRow) []string {
	return []string{
		strconv.Itoa(row.Year),
		row.Segment,
		row.AthleteName,
		row.ElapsedTime,
		row.EffortURL,
		metricCell(row.AvgWatts),
		metricCell(row.AvgBpm),
		metricCell(row.AvgCadence),
	}
}

// metricCell renders an optional metric: absent means empty, never "0".
func metricCell(v null.Val[int]) string {
	if !v.IsSet() {
		return ""
	}
	return strconv.Itoa(v.GetOrZero())
}
