package strava

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/grancakongen/segment-export-go/pkg/model"
)

var (
	ErrNotResultsPage = errors.New("response is not a segment results page")
	ErrLoginPage      = errors.New(
		"response is a login page, save a fresh browser request to the capture file")
)

// JSON envelope members that may carry the results table, checked in order.
var envelopeKeys = []string{"results_html", "top_results_html", "html"}

// ExtractRows turns one results response into effort rows, in document
// order. The response is either a JSON envelope holding an HTML table
// fragment or the bare fragment itself. Rows missing athlete name or elapsed
// time are skipped; a response that is no results page at all is an error
// naming the segment and year.
func ExtractRows(
	baseURL string,
	body []byte,
	segmentName string,
	year int,
) ([]model.EffortRow, error) {
	fragment, err := resultsFragment(string(body))
	if err != nil {
		return nil, fmt.Errorf("segment %s year %d: %w", segmentName, year, err)
	}
	if strings.TrimSpace(fragment) == "" {
		// envelope present but no efforts this year
		return []model.EffortRow{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("segment %s year %d: %w", segmentName, year, ErrNotResultsPage)
	}
	if doc.Find(`input[type="password"]`).Length() > 0 {
		return nil, fmt.Errorf("segment %s year %d: %w", segmentName, year, ErrLoginPage)
	}
	if doc.Find("table").Length() == 0 {
		return nil, fmt.Errorf("segment %s year %d: %w", segmentName, year, ErrNotResultsPage)
	}
	rows := doc.Find("table tr")
	ret := make([]model.EffortRow, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		if effort, ok := parseEffortRow(baseURL, row, segmentName, year); ok {
			ret = append(ret, effort)
		}
	})
	return ret, nil
}

// resultsFragment unwraps the HTML fragment from a JSON envelope. A body
// that is not JSON is assumed to be the fragment itself.
func resultsFragment(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ErrNotResultsPage
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return trimmed, nil
	}
	obj, err := oj.ParseString(trimmed)
	if err != nil {
		return "", ErrNotResultsPage
	}
	for _, key := range envelopeKeys {
		path, err := jp.ParseString("$.." + key)
		if err != nil {
			continue
		}
		if res := path.Get(obj); len(res) > 0 {
			if fragment, ok := res[0].(string); ok {
				return fragment, nil
			}
		}
	}
	return "", ErrNotResultsPage
}

// parseEffortRow reads one <tr>. Cells are located by class with a
// positional fallback (athlete, time, power, hr, cadence). The second value
// reports whether the row was a usable effort.
func parseEffortRow(
	baseURL string,
	row *goquery.Selection,
	segmentName string,
	year int,
) (model.EffortRow, bool) {
	cells := row.Find("td")
	if cells.Length() == 0 {
		// header row
		return model.EffortRow{}, false
	}
	classed := row.Find("td.athlete, td.time").Length() > 0

	name := cellText(row, cells, classed, "athlete", 0)
	if name == "" {
		if anchor := row.Find(`a[href*="/athletes/"]`); anchor.Length() > 0 {
			name = collapse(anchor.First().Text())
		}
	}

	elapsedRaw := ""
	effortURL := ""
	timeCell := findCell(row, cells, classed, "time", 1)
	link := row.Find(`a[href*="/segment_efforts/"]`)
	if link.Length() > 0 {
		elapsedRaw = collapse(link.First().Text())
		if href, ok := link.First().Attr("href"); ok {
			if id := effortIDFromHref(href); id != "" {
				effortURL = fmt.Sprintf("%s/segment_efforts/%s", baseURL, id)
			}
		}
	}
	if elapsedRaw == "" && timeCell != nil {
		elapsedRaw = collapse(timeCell.Text())
	}

	if name == "" || elapsedRaw == "" {
		return model.EffortRow{}, false
	}
	elapsed, err := model.NormalizeElapsed(elapsedRaw)
	if err != nil {
		return model.EffortRow{}, false
	}

	watts, _ := model.ParseMetric(cellText(row, cells, classed, "power", 2))
	bpm, _ := model.ParseMetric(cellText(row, cells, classed, "hr", 3))
	cadence, _ := model.ParseMetric(cellText(row, cells, classed, "cadence", 4))

	return model.EffortRow{
		Year:        year,
		Segment:     segmentName,
		AthleteName: name,
		ElapsedTime: elapsed,
		EffortURL:   effortURL,
		AvgWatts:    watts,
		AvgBpm:      bpm,
		AvgCadence:  cadence,
	}, true
}

// findCell locates a cell by class when the row uses classes, by position
// otherwise. nil means the row has no such cell.
func findCell(
	row *goquery.Selection,
	cells *goquery.Selection,
	classed bool,
	class string,
	idx int,
) *goquery.Selection {
	if classed {
		if cell := row.Find("td." + class); cell.Length() > 0 {
			return cell.First()
		}
		return nil
	}
	if idx < cells.Length() {
		return cells.Eq(idx)
	}
	return nil
}

func cellText(
	row *goquery.Selection,
	cells *goquery.Selection,
	classed bool,
	class string,
	idx int,
) string {
	cell := findCell(row, cells, classed, class, idx)
	if cell == nil {
		return ""
	}
	return collapse(cell.Text())
}

// collapse normalizes the whitespace goquery keeps from the markup.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// effortIDFromHref returns the last path element of an effort link, which is
// the effort identifier.
func effortIDFromHref(href string) string {
	path := strings.TrimSpace(href)
	if parsed, err := url.Parse(path); err == nil {
		path = parsed.Path
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
