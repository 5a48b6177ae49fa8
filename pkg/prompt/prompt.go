// Package prompt resolves the athlete name filter: a cached name wins,
// otherwise the user picks from the roster or types a name. The user surface
// is Norwegian, matching the club sheet.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grancakongen/segment-export-go/log"
)

const DefaultCachePath = ".grancakongen_navn"

var (
	ErrEmptyName        = errors.New("NAVN kan ikke være tomt")
	ErrInvalidSelection = errors.New("ugyldig valg")
)

func NewSelector(opts ...Option) *Selector {
	ret := &Selector{
		in:        os.Stdin,
		out:       os.Stdout,
		cachePath: DefaultCachePath,
		log:       log.Default().Named("prompt"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

type Option func(*Selector)

func WithInput(arg io.Reader) Option {
	return func(s *Selector) {
		s.in = arg
	}
}

func WithOutput(arg io.Writer) Option {
	return func(s *Selector) {
		s.out = arg
	}
}

func WithCachePath(arg string) Option {
	return func(s *Selector) {
		s.cachePath = arg
	}
}

func WithLogger(arg *log.Logger) Option {
	return func(s *Selector) {
		s.log = arg
	}
}

type Selector struct {
	in        io.Reader
	out       io.Writer
	cachePath string
	log       *log.Logger
}

// Resolve returns the athlete name to filter on. The cached name wins
// without prompting. A number picks from names (a trailing "." is
// tolerated), free text is matched case-insensitively against the roster and
// mapped onto the roster spelling when it occurs in a name. The resolved
// name is written back to the cache.
func (s *Selector) Resolve(names []string) (string, error) {
	if cached := s.cachedName(); cached != "" {
		s.log.Debug("using cached name", log.String("name", cached))
		return cached, nil
	}

	if len(names) > 0 {
		fmt.Fprintln(s.out, "Velg NAVN fra Utøvere-listen (skriv tallet eller et eget navn):")
		for i, name := range names {
			fmt.Fprintf(s.out, "%d. %s\n", i+1, name)
		}
		fmt.Fprintln(s.out,
			"Skriv f.eks. 3. for å velge navn nummer 3, eller skriv inn et annet navn.")
	} else {
		fmt.Fprintln(s.out, "Fant ingen forslag fra Utøvere-fanen. Skriv inn navnet manuelt.")
	}
	fmt.Fprint(s.out, "NAVN: ")

	input, err := readLine(s.in)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyName
	}

	value := input
	if len(names) > 0 {
		selection := strings.TrimRight(input, ".")
		if isDigits(selection) {
			num, _ := strconv.Atoi(selection)
			idx := num - 1
			if idx < 0 || idx >= len(names) {
				return "", fmt.Errorf("%w: skriv et tall mellom 1 og %d eller et navn",
					ErrInvalidSelection, len(names))
			}
			value = names[idx]
		} else if canonical, found := matchRoster(names, input); found {
			value = canonical
		}
	}

	if err := s.writeCache(value); err != nil {
		s.log.Warn("could not cache name", log.ErrorField(err))
	}
	return value, nil
}

func (s *Selector) cachedName() string {
	if s.cachePath == "" {
		return ""
	}
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Selector) writeCache(value string) error {
	if s.cachePath == "" {
		return nil
	}
	if dir := filepath.Dir(s.cachePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.cachePath, []byte(value), 0o644)
}

// matchRoster maps free text onto the roster spelling. The first roster
// name containing the input wins.
func matchRoster(names []string, input string) (string, bool) {
	needle := strings.ToLower(input)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			return name, true
		}
	}
	return "", false
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return line, err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
