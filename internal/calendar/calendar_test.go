package calendar

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRow_Straight(t *testing.T) {
	rice, _ := Default.Find("rice")
	got := rice.Row().Months
	want := [12]Stage{5: StageSow, 6: StageGrow, 7: StageGrow, 8: StageGrow, 9: StageHarvest}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rice (-want +got):\n%s", diff)
	}
}

func TestRow_WrapsPastDecember(t *testing.T) {
	wheat, _ := Default.Find("Wheat")
	got := wheat.Row().Months
	want := [12]Stage{
		0: StageGrow, 1: StageGrow, 2: StageHarvest,
		10: StageSow, 11: StageGrow,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("wheat (-want +got):\n%s", diff)
	}
	if wheat.StageIn(time.January) != StageGrow || wheat.StageIn(time.June) != StageNone {
		t.Fatalf("StageIn mismatch")
	}
}

func TestRow_SameMonth(t *testing.T) {
	c := Crop{Name: "Radish", Sowing: 4, Harvesting: 4}
	if got := c.Row().Months[3]; got != StageSow {
		t.Fatalf("stage = %q", got)
	}
}

func TestRows_Filter(t *testing.T) {
	if n := len(Default.Rows("all")); n != 12 {
		t.Fatalf("all rows = %d", n)
	}
	rows := Default.Rows("JUTE")
	if len(rows) != 1 || rows[0].Crop != "Jute" {
		t.Fatalf("filtered rows = %+v", rows)
	}
	if rows := Default.Rows("Quinoa"); len(rows) != 0 {
		t.Fatalf("unknown crop matched: %+v", rows)
	}
}

func TestEveryRowHasOneSowAndHarvest(t *testing.T) {
	for _, c := range Default {
		if err := c.Validate(); err != nil {
			t.Fatalf("%v", err)
		}
		var sow, harvest int
		for _, s := range c.Row().Months {
			switch s {
			case StageSow:
				sow++
			case StageHarvest:
				harvest++
			}
		}
		if sow != 1 || harvest != 1 {
			t.Errorf("%s: sow=%d harvest=%d", c.Name, sow, harvest)
		}
	}
}

func TestForSeason(t *testing.T) {
	names := func(cs []Crop) []string {
		return Calendar(cs).Names()
	}
	if diff := cmp.Diff([]string{"Wheat", "Barley", "Pulses", "Mustard"}, names(Default.ForSeason("rabi"))); diff != "" {
		t.Fatalf("rabi (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Sugarcane", "Sunflower", "Jute"}, names(Default.ForSeason(Zaid))); diff != "" {
		t.Fatalf("zaid (-want +got):\n%s", diff)
	}
	if got := Default.ForSeason("Monsoon"); got != nil {
		t.Fatalf("unknown season = %+v", got)
	}
}
