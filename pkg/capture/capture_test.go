//nolint:funlen,lll // table driven tests with verbatim curl samples
package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExtractsHeaders(t *testing.T) {
	curlText := `curl 'https://www.strava.com/athlete/segments/123/history' \
  -H 'Cookie: foo=bar; baz=qux' \
  -H 'X-CSRF-Token: csrf123' \
  --header 'User-Agent: CustomAgent/1.0'`

	req, err := Parse(curlText)

	assert.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "https://www.strava.com/athlete/segments/123/history", req.URL)
	assert.Equal(t, "foo=bar; baz=qux", req.Cookie())
	assert.Equal(t, "csrf123", req.CSRFToken())
	assert.Equal(t, "CustomAgent/1.0", req.UserAgent())
}

func TestParseExtractsCookieFlag(t *testing.T) {
	curlText := `curl 'https://www.strava.com/athlete/segments/456/history' \
  -b 'sp=abc; xp_session_identifier=xyz' \
  -H 'X-CSRF-Token: csrf456'`

	req, err := Parse(curlText)

	assert.NoError(t, err)
	assert.Equal(t, "sp=abc; xp_session_identifier=xyz", req.Cookie())
	assert.Equal(t, "csrf456", req.CSRFToken())
}

func TestParseHandlesWindowsCaret(t *testing.T) {
	curlText := `curl "https://www.strava.com/athlete/segments/789/history" ^
  -H "X-CSRF-Token: caret-token" ^
  -b "caret-cookie=1" ^
  --header "User-Agent: WindowsTerminal/1.0" `

	req, err := Parse(curlText)

	assert.NoError(t, err)
	assert.Equal(t, "caret-cookie=1", req.Cookie())
	assert.Equal(t, "caret-token", req.CSRFToken())
	assert.Equal(t, "WindowsTerminal/1.0", req.UserAgent())
}

func TestParseHandlesPowershellBacktick(t *testing.T) {
	curlText := "curl 'https://www.strava.com/athlete/segments/5/history' `\n" +
		"  -H 'X-CSRF-Token: ps-token' `\n" +
		"  -b 'ps-cookie=1'"

	req, err := Parse(curlText)

	assert.NoError(t, err)
	assert.Equal(t, "ps-cookie=1", req.Cookie())
	assert.Equal(t, "ps-token", req.CSRFToken())
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		header string
		want   string
	}{
		{
			name:   "header equals form",
			text:   `curl --header='X-CSRF-Token: eq-token' https://www.strava.com/x`,
			header: "x-csrf-token",
			want:   "eq-token",
		},
		{
			name:   "glued header",
			text:   `curl -H'Accept: application/javascript' https://www.strava.com/x`,
			header: "accept",
			want:   "application/javascript",
		},
		{
			name:   "glued cookie",
			text:   `curl -bsession=glued https://www.strava.com/x`,
			header: "cookie",
			want:   "session=glued",
		},
		{
			name:   "cookie equals form",
			text:   `curl --cookie='k=v' https://www.strava.com/x`,
			header: "cookie",
			want:   "k=v",
		},
		{
			name:   "cookie file reference is ignored",
			text:   `curl -b @cookies.txt https://www.strava.com/x`,
			header: "cookie",
			want:   "",
		},
		{
			name:   "byte order mark is stripped",
			text:   "\uFEFFcurl -H 'Cookie: bom=1' https://www.strava.com/x",
			header: "cookie",
			want:   "bom=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.text)
			if err != nil {
				t.Errorf("Parse() error = %v", err)
				return
			}
			if got := req.Header(tt.header); got != tt.want {
				t.Errorf("Header(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestParseMethodAndURL(t *testing.T) {
	req, err := Parse(`curl -X POST --url https://www.strava.com/segments/1 -H 'Cookie: a=1'`)

	assert.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://www.strava.com/segments/1", req.URL)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyCapture)

	_, err = Parse("curl 'https://www.strava.com/unterminated")
	assert.ErrorIs(t, err, ErrBadQuoting)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".strava_curl")
	curlText := `curl 'https://www.strava.com/segments/42' -H 'Cookie: c=1' -H 'X-CSRF-Token: t'`
	if err := os.WriteFile(path, []byte(curlText), 0o600); err != nil {
		t.Fatal(err)
	}

	req, err := ParseFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "c=1", req.Cookie())

	_, err = ParseFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *CapturedRequest
		wantErr error
	}{
		{
			name: "complete template",
			req: &CapturedRequest{
				Method: "GET",
				URL:    "https://www.strava.com/segments/42",
				Headers: map[string]string{
					"cookie": "a=1", "x-csrf-token": "tok",
				},
			},
			wantErr: nil,
		},
		{
			name: "plain http is rejected",
			req: &CapturedRequest{
				URL:     "http://www.strava.com/segments/42",
				Headers: map[string]string{"cookie": "a=1", "x-csrf-token": "tok"},
			},
			wantErr: ErrInvalidURL,
		},
		{
			name: "relative url is rejected",
			req: &CapturedRequest{
				URL:     "/segments/42",
				Headers: map[string]string{"cookie": "a=1", "x-csrf-token": "tok"},
			},
			wantErr: ErrInvalidURL,
		},
		{
			name: "missing cookie",
			req: &CapturedRequest{
				URL:     "https://www.strava.com/segments/42",
				Headers: map[string]string{"x-csrf-token": "tok"},
			},
			wantErr: ErrMissingCookie,
		},
		{
			name: "missing csrf token",
			req: &CapturedRequest{
				URL:     "https://www.strava.com/segments/42",
				Headers: map[string]string{"cookie": "a=1"},
			},
			wantErr: ErrMissingCSRFToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetHeaderOverridesCapture(t *testing.T) {
	req, err := Parse(`curl https://www.strava.com/x -H 'Cookie: old=1'`)
	assert.NoError(t, err)

	req.SetHeader("Cookie", "new=1")
	req.SetHeader("X-CSRF-Token", "fresh")

	assert.Equal(t, "new=1", req.Cookie())
	assert.Equal(t, "fresh", req.CSRFToken())
}

func TestLoad(t *testing.T) {
	writeCapture := func(t *testing.T, text string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".strava_curl")
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}
	complete := `curl 'https://www.strava.com/segments/1' \
  -H 'Cookie: sid=abc' \
  -H 'X-CSRF-Token: tok'`

	t.Run("file only", func(t *testing.T) {
		req, err := Load(writeCapture(t, complete), "https://www.strava.com", Overrides{})

		assert.NoError(t, err)
		assert.Equal(t, "sid=abc", req.Cookie())
		assert.Equal(t, "tok", req.CSRFToken())
	})

	t.Run("overrides win over file", func(t *testing.T) {
		req, err := Load(writeCapture(t, complete), "https://www.strava.com", Overrides{
			Cookie:    "sid=new",
			CSRFToken: "tok2",
			UserAgent: "Agent/2.0",
		})

		assert.NoError(t, err)
		assert.Equal(t, "sid=new", req.Cookie())
		assert.Equal(t, "tok2", req.CSRFToken())
		assert.Equal(t, "Agent/2.0", req.UserAgent())
	})

	t.Run("missing file with full overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".strava_curl")

		req, err := Load(path, "https://www.strava.com", Overrides{
			Cookie:    "sid=abc",
			CSRFToken: "tok",
		})

		assert.NoError(t, err)
		assert.Equal(t, "https://www.strava.com", req.URL)
		assert.Equal(t, "sid=abc", req.Cookie())
	})

	t.Run("missing file without overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".strava_curl")

		_, err := Load(path, "https://www.strava.com", Overrides{})

		assert.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.ErrorContains(t, err, "--cookie")
	})

	t.Run("malformed file is not masked by overrides", func(t *testing.T) {
		path := writeCapture(t, "curl 'https://www.strava.com/segments/1")

		_, err := Load(path, "https://www.strava.com", Overrides{
			Cookie:    "sid=abc",
			CSRFToken: "tok",
		})

		assert.ErrorIs(t, err, ErrBadQuoting)
	})

	t.Run("incomplete capture asks for a fresh one", func(t *testing.T) {
		path := writeCapture(t, "curl 'https://www.strava.com/segments/1'")

		_, err := Load(path, "https://www.strava.com", Overrides{})

		assert.ErrorIs(t, err, ErrMissingCookie)
		assert.ErrorContains(t, err, "fresh browser request")
	})
}
