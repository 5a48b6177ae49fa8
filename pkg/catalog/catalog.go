// Package catalog resolves which segments to fetch and which athlete names
// to offer in the prompt. Sources are a local YAML file, the shared Google
// sheet (TSV export) or the built-in default segment.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/grancakongen/segment-export-go/log"
	"github.com/grancakongen/segment-export-go/pkg/model"
)

const (
	DefaultSheetID    = "16-gb4q-aAdpWsrwcn-91vOEqSNfND9xp8Sku4QVDi9s"
	DefaultCatalogGID = "2089954890"
	DefaultRosterGID  = "244792171"
	DefaultSegmentID  = "4580190"
	DefaultFromYear   = 2021

	// the prompt offers at most this many names from the roster tab
	rosterLimit = 6

	// sheet column headers (Løpsinfo tab)
	linkColumn = "Segment"
	nameColumn = "Id-navn"
)

var ErrNoCatalogColumns = errors.New("catalog sheet has no Segment column")

func NewSource(opts ...Option) *Source {
	ret := &Source{
		exportBase: "https://docs.google.com",
		sheetID:    DefaultSheetID,
		catalogGID: DefaultCatalogGID,
		rosterGID:  DefaultRosterGID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.Default().Named("catalog"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

type Option func(*Source)

func WithSheetID(arg string) Option {
	return func(s *Source) {
		s.sheetID = arg
	}
}

func WithCatalogGID(arg string) Option {
	return func(s *Source) {
		s.catalogGID = arg
	}
}

func WithRosterGID(arg string) Option {
	return func(s *Source) {
		s.rosterGID = arg
	}
}

// WithExportBase replaces the Google docs host, used in tests.
func WithExportBase(arg string) Option {
	return func(s *Source) {
		s.exportBase = strings.TrimRight(arg, "/")
	}
}

func WithHTTPClient(arg *http.Client) Option {
	return func(s *Source) {
		s.httpClient = arg
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		s.httpClient.Timeout = d
	}
}

func WithLogger(arg *log.Logger) Option {
	return func(s *Source) {
		s.log = arg
	}
}

type Source struct {
	exportBase string
	sheetID    string
	catalogGID string
	rosterGID  string
	httpClient *http.Client
	log        *log.Logger
}

// ResolveSegments returns the catalog to iterate: the local YAML file when
// one is configured, the sheet otherwise. A sheet failure or an empty
// catalog degrades to the built-in default segment; a broken local file is
// an error.
func (s *Source) ResolveSegments(
	ctx context.Context,
	segmentsFile string,
) ([]model.Segment, error) {
	if segmentsFile != "" {
		segments, err := LoadSegmentsFile(segmentsFile)
		if err != nil {
			return nil, err
		}
		if len(segments) == 0 {
			return FallbackSegments(), nil
		}
		return segments, nil
	}
	segments, err := s.Segments(ctx)
	if err != nil {
		s.log.Warn("could not fetch segment catalog, using default segment",
			log.ErrorField(err))
		return FallbackSegments(), nil
	}
	if len(segments) == 0 {
		return FallbackSegments(), nil
	}
	return segments, nil
}

// Segments fetches the segment definitions from the sheet, in sheet order,
// one entry per distinct segment id.
func (s *Source) Segments(ctx context.Context) ([]model.Segment, error) {
	records, err := s.fetchTSV(ctx, s.catalogGID)
	if err != nil {
		return nil, fmt.Errorf("fetching segment catalog: %w", err)
	}
	return segmentsFromRecords(records)
}

// AthleteNames fetches the roster names offered by the prompt. Any failure
// degrades to an empty list so the prompt falls back to free-text input.
func (s *Source) AthleteNames(ctx context.Context) []string {
	records, err := s.fetchTSV(ctx, s.rosterGID)
	if err != nil {
		s.log.Warn("could not fetch athlete roster", log.ErrorField(err))
		return []string{}
	}
	return rosterFromRecords(records, rosterLimit)
}

func (s *Source) exportURL(gid string) string {
	return fmt.Sprintf("%s/spreadsheets/d/%s/export?format=tsv&gid=%s",
		s.exportBase, s.sheetID, gid)
}

func (s *Source) fetchTSV(ctx context.Context, gid string) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.exportURL(gid), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/tab-separated-values")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheet export returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseTSV(string(data))
}

func parseTSV(content string) ([][]string, error) {
	content = strings.TrimPrefix(content, "\uFEFF")
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

func segmentsFromRecords(records [][]string) ([]model.Segment, error) {
	if len(records) == 0 {
		return []model.Segment{}, nil
	}
	linkIdx, nameIdx := -1, -1
	for i, col := range records[0] {
		switch strings.TrimSpace(col) {
		case linkColumn:
			linkIdx = i
		case nameColumn:
			nameIdx = i
		}
	}
	if linkIdx < 0 {
		return nil, ErrNoCatalogColumns
	}
	segments := make([]model.Segment, 0, len(records)-1)
	for _, record := range records[1:] {
		if linkIdx >= len(record) {
			continue
		}
		id := SegmentIDFromLink(record[linkIdx])
		if id == "" {
			continue
		}
		name := ""
		if nameIdx >= 0 && nameIdx < len(record) {
			name = strings.TrimSpace(record[nameIdx])
		}
		segments = append(segments, model.Segment{ID: id, Name: name})
	}
	return lo.UniqBy(segments, func(seg model.Segment) string { return seg.ID }), nil
}

// rosterFromRecords reads athlete names from the roster tab: the second
// column when there is one, the first otherwise. When that yields nothing it
// falls back to a column whose header contains "navn", then to the first
// non-empty cell per row.
func rosterFromRecords(records [][]string, limit int) []string {
	if limit <= 0 || len(records) == 0 {
		return []string{}
	}
	header := records[0]
	dataRows := records[1:]
	columnIdx := 0
	if len(header) > 1 {
		columnIdx = 1
	}

	names := collectColumn(dataRows, columnIdx, limit)
	if len(names) > 0 {
		return names
	}

	for i, col := range header {
		if strings.Contains(strings.ToLower(col), "navn") {
			if names = collectColumn(dataRows, i, limit); len(names) > 0 {
				return names
			}
		}
	}
	for _, row := range dataRows {
		for _, cell := range row {
			if value := strings.TrimSpace(cell); value != "" {
				names = append(names, value)
				break
			}
		}
		if len(names) >= limit {
			break
		}
	}
	return names
}

func collectColumn(rows [][]string, idx, limit int) []string {
	names := make([]string, 0, limit)
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if value := strings.TrimSpace(row[idx]); value != "" {
			names = append(names, value)
		}
		if len(names) >= limit {
			break
		}
	}
	return names
}

// SegmentIDFromLink extracts the numeric segment id from a segment URL. A
// last path element that is not purely numeric yields "".
func SegmentIDFromLink(link string) string {
	cleaned := strings.TrimSpace(link)
	if cleaned == "" {
		return ""
	}
	cleaned = strings.TrimRight(cleaned, "/")
	parts := strings.Split(cleaned, "/")
	last := parts[len(parts)-1]
	if i := strings.IndexByte(last, '?'); i >= 0 {
		last = last[:i]
	}
	if i := strings.IndexByte(last, '#'); i >= 0 {
		last = last[:i]
	}
	if last == "" {
		return ""
	}
	for _, r := range last {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return last
}

// LoadSegmentsFile reads a local YAML segment catalog:
//
//	segments:
//	  - id: "4580190"
//	    name: "01 Tryvann"
//	    years: [2021, 2022]
func LoadSegmentsFile(path string) ([]model.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading segments file: %w", err)
	}
	var doc struct {
		Segments []model.Segment `yaml:"segments"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing segments file %s: %w", path, err)
	}
	segments := lo.Filter(doc.Segments, func(seg model.Segment, _ int) bool {
		return strings.TrimSpace(seg.ID) != ""
	})
	return lo.UniqBy(segments, func(seg model.Segment) string { return seg.ID }), nil
}

// FallbackSegments is used when no other source yields a segment.
func FallbackSegments() []model.Segment {
	return []model.Segment{{ID: DefaultSegmentID}}
}

// YearWindow lists the years to fetch for seg: the segment's own list when
// present, the from..to window (inclusive) otherwise.
func YearWindow(seg model.Segment, from, to int) []int {
	if len(seg.Years) > 0 {
		return lo.Uniq(seg.Years)
	}
	if to < from {
		return []int{}
	}
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}
