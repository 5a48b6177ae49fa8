//nolint:funlen // table driven tests
package strava

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"

	"github.com/grancakongen/segment-export-go/pkg/capture"
	"github.com/grancakongen/segment-export-go/pkg/model"
)

func testTemplate() *capture.CapturedRequest {
	return &capture.CapturedRequest{
		Method: http.MethodGet,
		URL:    "https://www.strava.com/segments/42",
		Headers: map[string]string{
			"cookie":       "sp=abc; session=1",
			"x-csrf-token": "csrf-token-1",
		},
	}
}

func TestFetchResultsSendsCapturedHeaders(t *testing.T) {
	var seen *http.Request
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			seen = r.Clone(context.Background())
			_, _ = w.Write([]byte(`{"results_html": ""}`))
		}))
	defer srv.Close()

	client := NewClient(testTemplate(), WithBaseURL(srv.URL))
	body, err := client.FetchResults(context.Background(), "42", 2023)

	assert.NoError(t, err)
	assert.JSONEq(t, `{"results_html": ""}`, string(body))
	assert.Equal(t, "/segments/42/results", seen.URL.Path)
	assert.Equal(t, "2023", seen.URL.Query().Get("year"))
	assert.Equal(t, "application/javascript", seen.Header.Get("Accept"))
	assert.Equal(t, "sp=abc; session=1", seen.Header.Get("Cookie"))
	assert.Equal(t, srv.URL+"/segments/42", seen.Header.Get("Referer"))
	assert.Equal(t, DefaultUserAgent, seen.Header.Get("User-Agent"))
	assert.Equal(t, "csrf-token-1", seen.Header.Get("X-CSRF-Token"))
	assert.Equal(t, "XMLHttpRequest", seen.Header.Get("X-Requested-With"))
}

func TestFetchResultsUsesCapturedUserAgent(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userAgent = r.Header.Get("User-Agent")
			_, _ = w.Write([]byte(`{}`))
		}))
	defer srv.Close()

	tpl := testTemplate()
	tpl.SetHeader("User-Agent", "CustomAgent/1.0")
	client := NewClient(tpl, WithBaseURL(srv.URL))
	_, err := client.FetchResults(context.Background(), "42", 2023)

	assert.NoError(t, err)
	assert.Equal(t, "CustomAgent/1.0", userAgent)
}

func TestFetchResultsStatusHandling(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrAuthExpired},
		{name: "forbidden", status: http.StatusForbidden, wantErr: ErrAuthExpired},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrHTTPStatus},
		{name: "not found", status: http.StatusNotFound, wantErr: ErrHTTPStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
				}))
			defer srv.Close()

			client := NewClient(testTemplate(), WithBaseURL(srv.URL))
			_, err := client.FetchResults(context.Background(), "77", 2022)

			assert.ErrorIs(t, err, tt.wantErr)
			// failures name the segment and year
			assert.ErrorContains(t, err, "77")
			assert.ErrorContains(t, err, "2022")
		})
	}
}

func TestSegmentEfforts(t *testing.T) {
	table := `<table>
	<tr><td class="athlete">Morten Kolstad</td><td class="time"><a href="/segment_efforts/31337">3:21</a></td></tr>
	</table>`
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(oj.JSON(map[string]any{"results_html": table})))
		}))
	defer srv.Close()

	client := NewClient(testTemplate(), WithBaseURL(srv.URL))
	rows, err := client.SegmentEfforts(context.Background(),
		model.Segment{ID: "42", Name: "Tryvann"}, 2024)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "Morten Kolstad", rows[0].AthleteName)
	assert.Equal(t, "Tryvann", rows[0].Segment)
	assert.Equal(t, 2024, rows[0].Year)
	assert.Equal(t, "03:21", rows[0].ElapsedTime)
	assert.Equal(t, srv.URL+"/segment_efforts/31337", rows[0].EffortURL)
}

func TestSegmentEffortsFallsBackToSegmentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(
				`<table><tr><td class="athlete">A</td><td class="time">1:00</td></tr></table>`))
		}))
	defer srv.Close()

	client := NewClient(testTemplate(), WithBaseURL(srv.URL))
	rows, err := client.SegmentEfforts(context.Background(),
		model.Segment{ID: "4580190"}, 2021)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "4580190", rows[0].Segment)
}
