package export

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/grancakongen/segment-export-go/log"
	"github.com/grancakongen/segment-export-go/pkg/capture"
	"github.com/grancakongen/segment-export-go/pkg/catalog"
	"github.com/grancakongen/segment-export-go/pkg/config"
	exporter "github.com/grancakongen/segment-export-go/pkg/export"
	"github.com/grancakongen/segment-export-go/pkg/model"
	"github.com/grancakongen/segment-export-go/pkg/prompt"
	"github.com/grancakongen/segment-export-go/pkg/strava"
)

const defaultTimeout = 30 * time.Second

// NewExportCmd fetches the effort history for every segment of the catalog,
// filters it by athlete name and writes the results file.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetches the segment efforts and writes the results file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd)
		},
	}
	cmd.Flags().StringVar(&config.OutFile,
		"out",
		exporter.DefaultPath,
		"path of the results file")
	cmd.Flags().StringVar(&config.OutFormat,
		"format",
		exporter.FormatCSV,
		"format of the results file (csv or tsv)")
	cmd.Flags().StringVar(&config.Name,
		"name",
		"",
		"athlete name to filter on (skips the interactive prompt)")
	cmd.Flags().StringVar(&config.NameCache,
		"name-cache",
		prompt.DefaultCachePath,
		"file holding the athlete name of the last run")
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
func runExport(cmd *cobra.Command) error {
	logger, err := setupLogger()
	if err != nil {
		return err
	}
	log.ResetDefault(logger)
	defer func() { _ = log.Sync() }()

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
		timeout = defaultTimeout
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
	rows := make([]model.EffortRow, 0)
	for _, seg := range segments {
		for _, year := range catalog.YearWindow(seg, fromYear, toYear) {
			efforts, err := client.SegmentEfforts(ctx, seg, year)
			if err != nil {
				return err
			}
			rows = append(rows, efforts...)
		}
	}
	log.Info("efforts collected",
		log.Int("rows", len(rows)),
		log.Int("segments", len(segments)))

	name := config.Name
	if name == "" {
		selector := prompt.NewSelector(prompt.WithCachePath(config.NameCache))
		name, err = selector.Resolve(source.AthleteNames(ctx))
		if err != nil {
			return err
		}
	}
	matched := model.FilterByAthlete(rows, name)
	if len(matched) == 0 {
		log.Warn("no efforts matched the athlete name", log.String("navn", name))
	}

	delimiter, err := exporter.DelimiterFor(config.OutFormat)
	if err != nil {
		return err
	}
	writer := exporter.NewWriter(
		exporter.WithPath(config.OutFile),
		exporter.WithDelimiter(delimiter),
	)
	return writer.Write(matched)
}

func setupLogger() (*log.Logger, error) {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if config.LogFilter != "" {
		return logger.WithFilterRules(config.LogFilter)
	}
	return logger, nil
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}
