// Package calendar is the portal's static crop calendar.
//
// Each crop has a sowing month and a harvest month (1 = January).  A row
// spans sowing through harvest inclusive and wraps past December when
// harvest comes before sowing in the calendar year, so Wheat (Nov → Mar)
// occupies Nov, Dec, Jan, Feb, and Mar.  The first month of a span is
// StageSow, the last StageHarvest, and every month in between StageGrow.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Stage is what happens to a crop in one month.
type Stage string

const (
	StageNone    Stage = ""
	StageSow     Stage = "sow"
	StageGrow    Stage = "grow"
	StageHarvest Stage = "harvest"
)

// Crop is one calendar entry.  Rainfall is the seasonal range in mm the
// crop does well with.
type Crop struct {
	Name        string `json:"crop"`
	Sowing      int    `json:"sowing"`
	Harvesting  int    `json:"harvesting"`
	RainfallMin int    `json:"rainfall_min"`
	RainfallMax int    `json:"rainfall_max"`
}

// Default is the portal calendar.
var Default = Calendar{
	{"Wheat", 11, 3, 450, 650},
	{"Rice", 6, 10, 1000, 2500},
	{"Maize", 5, 9, 500, 800},
	{"Barley", 11, 4, 300, 500},
	{"Sugarcane", 2, 12, 1500, 2500},
	{"Cotton", 6, 11, 500, 1000},
	{"Groundnut", 6, 10, 500, 1250},
	{"Soybean", 6, 9, 600, 1000},
	{"Pulses", 10, 3, 400, 600},
	{"Mustard", 10, 2, 250, 400},
	{"Sunflower", 1, 4, 500, 750},
	{"Jute", 3, 7, 1200, 1500},
}

// Row is a crop's twelve monthly stages; index 0 is January.
type Row struct {
	Crop   string    `json:"crop"`
	Months [12]Stage `json:"months"`
}

// Validate checks that both months are in 1..12.
func (c Crop) Validate() error {
	if c.Sowing < 1 || c.Sowing > 12 || c.Harvesting < 1 || c.Harvesting > 12 {
		return fmt.Errorf("crop %q: months must be 1..12", c.Name)
	}
	return nil
}

// Row expands c into monthly stages.  A crop sown and harvested in the same
// month shows only StageSow.
func (c Crop) Row() Row {
	r := Row{Crop: c.Name}
	start, end := c.Sowing, c.Harvesting
	if end < start {
		end += 12
	}
	for i := start; i <= end; i++ {
		m := (i - 1) % 12
		switch i {
		case start:
			r.Months[m] = StageSow
		case end:
			r.Months[m] = StageHarvest
		default:
			r.Months[m] = StageGrow
		}
	}
	return r
}

// StageIn returns c's stage in month m.
func (c Crop) StageIn(m time.Month) Stage {
	return c.Row().Months[int(m)-1]
}

// Calendar is an ordered crop list.
type Calendar []Crop

// Rows returns rows for every crop, or only for filter when it is neither
// empty nor "all".  Matching ignores case.
func (cal Calendar) Rows(filter string) []Row {
	var out []Row
	for _, c := range cal {
		if filter == "" || strings.EqualFold(filter, "all") || strings.EqualFold(filter, c.Name) {
			out = append(out, c.Row())
		}
	}
	return out
}

// Find looks a crop up by name, ignoring case.
func (cal Calendar) Find(name string) (Crop, bool) {
	for _, c := range cal {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Crop{}, false
}

// Names lists crop names in calendar order.
func (cal Calendar) Names() []string {
	out := make([]string, len(cal))
	for i, c := range cal {
		out[i] = c.Name
	}
	return out
}

// SownIn returns crops whose sowing month is one of months.
func (cal Calendar) SownIn(months ...time.Month) []Crop {
	var out []Crop
	for _, c := range cal {
		for _, m := range months {
			if c.Sowing == int(m) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Seasons
// -----------------------------------------------------------------------------

// Season is an Indian cropping season.
type Season string

const (
	Kharif Season = "Kharif"
	Rabi   Season = "Rabi"
	Zaid   Season = "Zaid"
)

// SowingMonths returns the months crops of s are sown in.
func (s Season) SowingMonths() []time.Month {
	switch {
	case strings.EqualFold(string(s), string(Kharif)):
		return []time.Month{time.May, time.June, time.July}
	case strings.EqualFold(string(s), string(Rabi)):
		return []time.Month{time.October, time.November, time.December}
	case strings.EqualFold(string(s), string(Zaid)):
		return []time.Month{time.January, time.February, time.March, time.April}
	}
	return nil
}

// ForSeason returns crops sown in s.
func (cal Calendar) ForSeason(s Season) []Crop {
	months := s.SowingMonths()
	if len(months) == 0 {
		return nil
	}
	return cal.SownIn(months...)
}
