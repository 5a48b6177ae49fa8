package segments

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/grancakongen/segment-export-go/log"
	"github.com/grancakongen/segment-export-go/pkg/catalog"
	"github.com/grancakongen/segment-export-go/pkg/config"
)

// NewSegmentsCmd prints the segment catalog that an export run would use.
func NewSegmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Prints the segment catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listSegments(cmd)
		},
	}
	return cmd
}

func listSegments(cmd *cobra.Command) error {
	logger := log.DevLogger(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel))
	log.ResetDefault(logger)

	timeout, err := time.ParseDuration(config.HTTPTimeout)
	if err != nil {
		log.Warn("invalid http-timeout value, using 30s", log.ErrorField(err))
		timeout = 30 * time.Second
	}
	source := catalog.NewSource(
		catalog.WithSheetID(config.SheetID),
		catalog.WithCatalogGID(config.CatalogGID),
		catalog.WithRosterGID(config.RosterGID),
		catalog.WithTimeout(timeout),
	)
	segments, err := source.ResolveSegments(cmd.Context(), config.SegmentsFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Segment definitions (Id-navn -> Segment):")
	for _, seg := range segments {
		name := seg.Name
		if name == "" {
			name = seg.ID
		}
		if len(seg.Years) > 0 {
			fmt.Fprintf(out, "  %s -> %s %v\n", name, seg.ID, seg.Years)
		} else {
			fmt.Fprintf(out, "  %s -> %s\n", name, seg.ID)
		}
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
