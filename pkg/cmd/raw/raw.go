package raw

import (
	"fmt"
	"os"
	"time"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/grancakongen/segment-export-go/log"
	"github.com/grancakongen/segment-export-go/pkg/capture"
	"github.com/grancakongen/segment-export-go/pkg/catalog"
	"github.com/grancakongen/segment-export-go/pkg/config"
	"github.com/grancakongen/segment-export-go/pkg/strava"
)

// NewRawCmd prints the effort payloads as returned by the service, without
// extracting rows. Useful to inspect what a capture actually yields.
func NewRawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "raw",
		Short: "Prints the raw effort payloads as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dumpRaw(cmd)
		},
	}
	cmd.Flags().IntVar(&config.FromYear,
		"from-year",
		catalog.DefaultFromYear,
		"first year to fetch efforts for")
	cmd.Flags().IntVar(&config.ToYear,
		"to-year",
		0,
		"last year to fetch efforts for (0 means the current year)")
	return cmd
}

//nolint:funlen // command wiring
func dumpRaw(cmd *cobra.Command) error {
	logger := log.DevLogger(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel))
	log.ResetDefault(logger)

	template, err := capture.Load(config.CaptureFile, config.BaseURL,
		capture.Overrides{
			Cookie:    config.Cookie,
			CSRFToken: config.CSRFToken,
			UserAgent: config.UserAgent,
		})
	if err != nil {
		return err
	}

	timeout, err := time.ParseDuration(config.HTTPTimeout)
	if err != nil {
		log.Warn("invalid http-timeout value, using 30s", log.ErrorField(err))
		timeout = 30 * time.Second
	}

	ctx := cmd.Context()
	source := catalog.NewSource(
		catalog.WithSheetID(config.SheetID),
		catalog.WithCatalogGID(config.CatalogGID),
		catalog.WithRosterGID(config.RosterGID),
		catalog.WithTimeout(timeout),
	)
	segments, err := source.ResolveSegments(ctx, config.SegmentsFile)
	if err != nil {
		return err
	}

	fromYear, toYear := config.FromYear, config.ToYear
	if toYear == 0 {
		toYear = time.Now().Year()
	}
	if fromYear > toYear {
		return fmt.Errorf("from-year %d is after to-year %d", fromYear, toYear)
	}

	client := strava.NewClient(template,
		strava.WithBaseURL(config.BaseURL),
		strava.WithTimeout(timeout),
	)
	payloads := map[string]any{}
	keys := []string{}
	for _, seg := range segments {
		for _, year := range catalog.YearWindow(seg, fromYear, toYear) {
			body, err := client.FetchResults(ctx, seg.ID, year)
			if err != nil {
				return err
			}
			var payload any
			if parsed, perr := oj.ParseString(string(body)); perr == nil {
				payload = parsed
			} else {
				payload = string(body)
			}
			key := fmt.Sprintf("%s:%d", seg.ID, year)
			payloads[key] = payload
			keys = append(keys, key)
		}
	}

	opts := ojg.Options{Indent: 2, Sort: true}
	out := cmd.OutOrStdout()
	switch len(keys) {
	case 0:
		fmt.Fprintln(out, "{}")
	case 1:
		fmt.Fprintln(out, oj.JSON(payloads[keys[0]], &opts))
	default:
		fmt.Fprintln(out, oj.JSON(payloads, &opts))
	}
	return nil
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}
