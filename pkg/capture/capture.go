// Package capture reads a browser request saved via "copy as cURL" and
// turns it into the request template used to authorize segment fetches.
package capture

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	ErrEmptyCapture     = errors.New("capture contains no curl command")
	ErrBadQuoting       = errors.New("capture has unbalanced quotes")
	ErrInvalidURL       = errors.New("capture URL is not an absolute https URL")
	ErrMissingCookie    = errors.New("no Cookie header present")
	ErrMissingCSRFToken = errors.New("no CSRF token present")
)

// CapturedRequest is the parsed form of the saved request. Header names are
// lowercased. It is read once per run and not modified afterwards except for
// explicit overrides via SetHeader.
type CapturedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
}

// Empty returns a template without captured headers. Used when cookie and
// CSRF token are supplied directly instead of via a capture file.
func Empty(rawURL string) *CapturedRequest {
	return &CapturedRequest{
		Method:  http.MethodGet,
		URL:     rawURL,
		Headers: map[string]string{},
	}
}

// Overrides are optional credential values layered over a parsed capture.
type Overrides struct {
	Cookie    string
	CSRFToken string
	UserAgent string
}

// Load reads the capture file, layers the overrides on top and validates
// the result. A missing file is tolerated when the overrides carry both
// the cookie and the CSRF token; fallbackURL seeds the request URL then.
func Load(path, fallbackURL string, ov Overrides) (*CapturedRequest, error) {
	req, err := ParseFile(path)
	if err != nil {
		missing := errors.Is(err, os.ErrNotExist)
		if !missing || ov.Cookie == "" || ov.CSRFToken == "" {
			return nil, fmt.Errorf(
				"%w: save the browser request (\"copy as cURL\") to %s or pass --cookie and --csrf-token",
				err, path)
		}
		req = Empty(fallbackURL)
	}
	if ov.Cookie != "" {
		req.SetHeader("cookie", ov.Cookie)
	}
	if ov.CSRFToken != "" {
		req.SetHeader("x-csrf-token", ov.CSRFToken)
	}
	if ov.UserAgent != "" {
		req.SetHeader("user-agent", ov.UserAgent)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf(
			"%w: save a fresh browser request (\"copy as cURL\") to %s", err, path)
	}
	return req, nil
}

// ParseFile reads and parses the capture file at path.
func ParseFile(path string) (*CapturedRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capture file: %w", err)
	}
	req, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing capture file %s: %w", path, err)
	}
	return req, nil
}

// powershell backtick and cmd caret line continuations
var smartContinuation = regexp.MustCompile("(?:\\^|`)[ \t]*\n")

// Parse extracts method, URL and headers from a copied cURL command.
// Tolerated forms: -H/--header/--header=/glued -H, -b/--cookie/--cookie=/
// glued -b, backslash, caret and backtick line continuations, single and
// double quoting. Cookie values naming a file (@cookies.txt) are ignored.
func Parse(text string) (*CapturedRequest, error) {
	normalized := strings.TrimPrefix(text, "\uFEFF")
	normalized = strings.ReplaceAll(normalized, "\\\r\n", " ")
	normalized = strings.ReplaceAll(normalized, "\\\n", " ")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	normalized = smartContinuation.ReplaceAllString(normalized, " ")

	tokens, err := splitTokens(normalized)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyCapture
	}

	req := &CapturedRequest{Method: http.MethodGet, Headers: map[string]string{}}
	for idx := 0; idx < len(tokens); idx++ {
		token := tokens[idx]
		lowered := strings.ToLower(token)
		headerValue := ""
		cookieValue := ""
		switch {
		case token == "-H" || lowered == "--header":
			if idx+1 < len(tokens) {
				idx++
				headerValue = tokens[idx]
			}
		case strings.HasPrefix(lowered, "--header="):
			headerValue = token[len("--header="):]
		case strings.HasPrefix(token, "-H") && len(token) > 2:
			headerValue = token[2:]
		case token == "-b" || lowered == "--cookie":
			if idx+1 < len(tokens) {
				idx++
				cookieValue = tokens[idx]
			}
		case strings.HasPrefix(lowered, "--cookie="):
			cookieValue = token[len("--cookie="):]
		case strings.HasPrefix(token, "-b") && len(token) > 2:
			cookieValue = token[2:]
		case token == "-X" || lowered == "--request":
			if idx+1 < len(tokens) {
				idx++
				req.Method = strings.ToUpper(tokens[idx])
			}
		case token == "-A" || lowered == "--user-agent":
			if idx+1 < len(tokens) {
				idx++
				storeHeader(req.Headers, "user-agent: "+tokens[idx])
			}
		case token == "-e" || lowered == "--referer":
			if idx+1 < len(tokens) {
				idx++
				storeHeader(req.Headers, "referer: "+tokens[idx])
			}
		case lowered == "--url":
			if idx+1 < len(tokens) {
				idx++
				req.URL = tokens[idx]
			}
		case skipArgFlags[lowered]:
			idx++
		case strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://"):
			if req.URL == "" {
				req.URL = token
			}
		}
		if headerValue != "" {
			storeHeader(req.Headers, headerValue)
		}
		if cookieValue != "" {
			cookie := strings.TrimSpace(cookieValue)
			if cookie != "" && !strings.HasPrefix(cookie, "@") {
				req.Headers["cookie"] = cookie
			}
		}
	}
	return req, nil
}

// flags that consume a value we do not care about
var skipArgFlags = map[string]bool{
	"-d": true, "--data": true, "--data-raw": true, "--data-binary": true,
	"--data-urlencode": true, "-o": true, "--output": true,
	"-u": true, "--user": true, "-x": true, "--proxy": true,
	"-m": true, "--max-time": true,
}

func storeHeader(headers map[string]string, raw string) {
	value := strings.TrimSpace(raw)
	if value == "" || !strings.Contains(value, ":") {
		return
	}
	parts := strings.SplitN(value, ":", 2)
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	if name == "" {
		return
	}
	headers[name] = strings.TrimSpace(parts[1])
}

// Header returns the header value for name (case-insensitive), "" when absent.
func (r *CapturedRequest) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// SetHeader overrides a captured header, e.g. from a flag or environment.
func (r *CapturedRequest) SetHeader(name, value string) {
	r.Headers[strings.ToLower(name)] = strings.TrimSpace(value)
}

func (r *CapturedRequest) Cookie() string    { return r.Header("cookie") }
func (r *CapturedRequest) CSRFToken() string { return r.Header("x-csrf-token") }
func (r *CapturedRequest) UserAgent() string { return r.Header("user-agent") }

// Validate checks the template after all overrides are applied: the URL must
// be absolute https and both the Cookie header and the CSRF token must be
// present. Violations are fatal for the run.
func (r *CapturedRequest) Validate() error {
	parsed, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, r.URL)
	}
	if !parsed.IsAbs() || parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, r.URL)
	}
	if strings.TrimSpace(r.Cookie()) == "" {
		return ErrMissingCookie
	}
	if strings.TrimSpace(r.CSRFToken()) == "" {
		return ErrMissingCSRFToken
	}
	return nil
}

// splitTokens splits a command line the way a posix shell would: whitespace
// separates tokens, single quotes are literal, double quotes allow backslash
// escapes.
func splitTokens(s string) ([]string, error) {
	var (
		tokens   []string
		cur      strings.Builder
		inSingle bool
		inDouble bool
		started  bool
	)
	flush := func() {
		if started || cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			} else {
				cur.WriteByte(c)
			}
		case inDouble:
			switch {
			case c == '"':
				inDouble = false
			case c == '\\' && i+1 < len(s):
				next := s[i+1]
				if next == '"' || next == '\\' || next == '$' || next == '`' {
					i++
					cur.WriteByte(next)
				} else {
					cur.WriteByte(c)
				}
			default:
				cur.WriteByte(c)
			}
		case c == '\'':
			inSingle = true
			started = true
		case c == '"':
			inDouble = true
			started = true
		case c == '\\':
			if i+1 < len(s) {
				i++
				if s[i] != '\n' {
					cur.WriteByte(s[i])
					started = true
				}
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
			started = true
		}
	}
	if inSingle || inDouble {
		return nil, ErrBadQuoting
	}
	flush()
	return tokens, nil
}
