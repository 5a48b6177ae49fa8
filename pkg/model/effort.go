package model

import (
	"strings"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"
)

// EffortRow is one athlete attempt on a segment as listed on the yearly
// results page. Metric values are absent when the athlete rode without the
// corresponding sensor; absent means empty output cell, never 0.
type EffortRow struct {
	Year        int
	Segment     string
	AthleteName string
	ElapsedTime string // zero-padded "mm:ss"
	EffortURL   string
	AvgWatts    null.Val[int]
	AvgBpm      null.Val[int]
	AvgCadence  null.Val[int]
}

// Segment is one catalog entry. Years, when present, overrides the global
// year window for this segment only.
type Segment struct {
	ID    string `yaml:"id"    json:"id"`
	Name  string `yaml:"name"  json:"name"`
	Years []int  `yaml:"years,omitempty" json:"years,omitempty"`
}

// FilterByAthlete returns the rows whose athlete name equals name after
// trimming, ignoring case. Order is preserved.
func FilterByAthlete(rows []EffortRow, name string) []EffortRow {
	want := strings.TrimSpace(name)
	return lo.Filter(rows, func(row EffortRow, _ int) bool {
		return strings.EqualFold(strings.TrimSpace(row.AthleteName), want)
	})
}
