// internal/form/validate_test.go
//
// Unit-tests for the validation engine.
//
// Run: go test ./internal/form -run Validate -v

package form

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// yieldRules is the two-field form used across the package tests.
func yieldRules() Ruleset {
	return Ruleset{
		{Name: "crop", Label: "Crop", Kind: KindEnum, Required: true, AllowedValues: []string{"wheat", "rice"}},
		{Name: "area", Label: "Area", Kind: KindNumber, Required: true, Min: Fixed(0.01)},
	}
}

var anchor2026 = Anchor{Year: 2026}

func TestValidate_RequiredEmpty(t *testing.T) {
	rules := Ruleset{{
		Name: "area", Kind: KindNumber, Required: true,
		Min: Fixed(0.01), Max: Fixed(10),
	}}
	for _, v := range []string{"", "   ", "\t\n"} {
		res := Validate(Values{"area": v}, rules, anchor2026)
		if res.Len() != 1 {
			t.Fatalf("value %q: want exactly one error, got %v", v, res.Map())
		}
		if msg, _ := res.Message("area"); msg != MsgRequired {
			t.Fatalf("value %q: message = %q", v, msg)
		}
	}
}

func TestValidate_MissingKeyIsEmpty(t *testing.T) {
	res := Validate(Values{}, yieldRules(), anchor2026)
	if diff := cmp.Diff([]string{"crop", "area"}, res.Fields()); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}
}

func TestValidate_NumberBounds(t *testing.T) {
	rules := Ruleset{{Name: "area", Kind: KindNumber, Min: Fixed(0.01), Max: Fixed(100)}}
	cases := []struct {
		in   string
		want string
	}{
		{"0", "Value must be at least 0.01."},
		{"0.01", ""},
		{"-1", "Value must be at least 0.01."},
		{"100", ""},
		{"100.5", "Value cannot exceed 100."},
		{" 5 ", ""},
		{"abc", MsgInvalidNumber},
		{"1e3", "Value cannot exceed 100."},
		{"NaN", MsgInvalidNumber},
		{"Inf", MsgInvalidNumber},
		{"", ""},
	}
	for _, c := range cases {
		res := Validate(Values{"area": c.in}, rules, anchor2026)
		got, _ := res.Message("area")
		if got != c.want {
			t.Errorf("area=%q: got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidate_YearAnchoredBound(t *testing.T) {
	rules := Ruleset{{
		Name: "year", Kind: KindNumber, Required: true,
		Min: Fixed(1997), Max: YearsFromAnchor(5),
	}}
	if res := Validate(Values{"year": "2031"}, rules, anchor2026); !res.Valid() {
		t.Fatalf("2031 should pass with anchor 2026: %v", res.Map())
	}
	res := Validate(Values{"year": "2032"}, rules, anchor2026)
	if msg, _ := res.Message("year"); msg != "Value cannot exceed 2031." {
		t.Fatalf("message = %q", msg)
	}
	// Same input, later anchor.
	if res := Validate(Values{"year": "2032"}, rules, Anchor{Year: 2027}); !res.Valid() {
		t.Fatalf("2032 should pass with anchor 2027: %v", res.Map())
	}
}

func TestAnchorAt_UsesUTCYear(t *testing.T) {
	// 23:30 on New Year's Eve in UTC-5 is already 2026 in UTC.
	eve := time.Date(2025, time.December, 31, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	if got := AnchorAt(eve); got.Year != 2026 {
		t.Fatalf("AnchorAt(%v) = %d, want 2026", eve, got.Year)
	}
	// 00:30 on New Year's Day in UTC+9 is still the old year in UTC.
	day := time.Date(2026, time.January, 1, 0, 30, 0, 0, time.FixedZone("UTC+9", 9*3600))
	if got := AnchorAt(day); got.Year != 2025 {
		t.Fatalf("AnchorAt(%v) = %d, want 2025", day, got.Year)
	}
}

func TestValidate_CustomMessage(t *testing.T) {
	msg := "Year must be between 1997 and 2031"
	rules := Ruleset{{
		Name: "year", Kind: KindNumber, Required: true,
		Min: Fixed(1997), Max: YearsFromAnchor(5), Message: msg,
	}}
	cases := map[string]string{
		"":     msg,
		"1990": msg,
		"2040": msg,
		"x":    MsgInvalidNumber,
	}
	for in, want := range cases {
		got, _ := Validate(Values{"year": in}, rules, anchor2026).Message("year")
		if got != want {
			t.Errorf("year=%q: got %q, want %q", in, got, want)
		}
	}
}

func TestValidate_Enum(t *testing.T) {
	rules := yieldRules()
	res := Validate(Values{"crop": "maize", "area": "1"}, rules, anchor2026)
	if msg, _ := res.Message("crop"); msg != MsgInvalidOption {
		t.Fatalf("message = %q", msg)
	}
	if res := Validate(Values{"crop": "rice", "area": "1"}, rules, anchor2026); !res.Valid() {
		t.Fatalf("rice should pass: %v", res.Map())
	}
}

func TestValidate_Text(t *testing.T) {
	rules := Ruleset{
		{Name: "contact", Kind: KindText, Required: true, Pattern: `^[0-9]{10}$`},
		{Name: "village", Kind: KindText, MinLength: 2, MaxLength: 5},
	}
	if err := rules.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	res := Validate(Values{"contact": "12345", "village": "x"}, rules, anchor2026)
	want := map[string]string{
		"contact": MsgInvalidFormat,
		"village": "Must be at least 2 characters.",
	}
	if diff := cmp.Diff(want, res.Map()); diff != "" {
		t.Fatalf("errors (-want +got):\n%s", diff)
	}

	// Lengths count characters, not bytes.
	res = Validate(Values{"contact": "9876543210", "village": "गाँव"}, rules, anchor2026)
	if !res.Valid() {
		t.Fatalf("unexpected errors: %v", res.Map())
	}
}

func TestValidate_IgnoresUnknownFields(t *testing.T) {
	res := Validate(Values{"crop": "wheat", "area": "2", "notes": "<script>"}, yieldRules(), anchor2026)
	if !res.Valid() {
		t.Fatalf("unknown field reported: %v", res.Map())
	}
}

func TestValidate_Deterministic(t *testing.T) {
	rules := yieldRules()
	vals := Values{"crop": "barley", "area": "0"}
	a := Validate(vals, rules, anchor2026)
	b := Validate(vals, rules, anchor2026)
	if diff := cmp.Diff(a.Map(), b.Map()); diff != "" {
		t.Fatalf("maps differ:\n%s", diff)
	}
	if diff := cmp.Diff(a.Fields(), b.Fields()); diff != "" {
		t.Fatalf("order differs:\n%s", diff)
	}
	if a.First() != "crop" {
		t.Fatalf("first = %q, want crop", a.First())
	}
}

func TestValidate_FirstErrorWinsForDuplicateNames(t *testing.T) {
	rules := Ruleset{
		{Name: "area", Kind: KindNumber, Required: true},
		{Name: "area", Kind: KindNumber, Required: true, Message: "second"},
	}
	res := Validate(Values{}, rules, anchor2026)
	if msg, _ := res.Message("area"); msg != MsgRequired {
		t.Fatalf("message = %q, want the first rule's", msg)
	}
}

func TestPayload(t *testing.T) {
	rules := append(yieldRules(), FieldRule{Name: "rainfall", Kind: KindNumber})
	got := Payload(Values{"crop": " wheat ", "area": "10", "rainfall": "", "extra": "x"}, rules)
	want := map[string]any{"crop": "wheat", "area": 10.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload (-want +got):\n%s", diff)
	}
}

func TestResultFrom_Order(t *testing.T) {
	res := ResultFrom(map[string]string{
		"zeta": "z", "area": "out of range", "alpha": "a", "crop": "bad", "blank": "",
	}, yieldRules())
	if diff := cmp.Diff([]string{"crop", "area", "alpha", "zeta"}, res.Fields()); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestValidationError(t *testing.T) {
	res := Validate(Values{}, yieldRules(), anchor2026)
	err := fmt.Errorf("submit: %w", ValidationError{Result: res})
	if !IsValidationError(err) {
		t.Fatalf("wrapped ValidationError not detected")
	}
	got, _ := AsValidationError(err)
	if got.First() != "crop" {
		t.Fatalf("first = %q", got.First())
	}
	if IsValidationError(errors.New("boom")) {
		t.Fatalf("plain error detected as validation error")
	}
}

func TestBound_UnmarshalYAML(t *testing.T) {
	var doc struct {
		Min *Bound `yaml:"min"`
		Max *Bound `yaml:"max"`
	}
	if err := yaml.Unmarshal([]byte("min: 1997\nmax: {year_offset: 5}\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(&Bound{Value: 1997}, doc.Min); diff != "" {
		t.Fatalf("min (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&Bound{Value: 5, YearOffset: true}, doc.Max); diff != "" {
		t.Fatalf("max (-want +got):\n%s", diff)
	}
	if err := yaml.Unmarshal([]byte("min: {offset: 1}\n"), &doc); err == nil {
		t.Fatalf("expected error for mapping without year_offset")
	}
}

func TestRuleset_Check(t *testing.T) {
	cases := map[string]Ruleset{
		"min>max":     {{Name: "a", Kind: KindNumber, Min: Fixed(5), Max: Fixed(1)}},
		"enum empty":  {{Name: "a", Kind: KindEnum}},
		"bad pattern": {{Name: "a", Kind: KindText, Pattern: "("}},
		"duplicate":   {{Name: "a", Kind: KindText}, {Name: "a", Kind: KindText}},
		"bounds text": {{Name: "a", Kind: KindText, Min: Fixed(1)}},
		"lengths":     {{Name: "a", Kind: KindText, MinLength: 5, MaxLength: 2}},
	}
	for name, rs := range cases {
		if err := rs.Check(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	mixed := Ruleset{{Name: "year", Kind: KindNumber, Min: Fixed(1997), Max: YearsFromAnchor(5)}}
	if err := mixed.Check(); err != nil {
		t.Fatalf("fixed min with relative max should pass: %v", err)
	}
}

func TestValidate_MessagePlaceholders(t *testing.T) {
	rules := Ruleset{{
		Name: "year", Kind: KindNumber, Required: true,
		Min: Fixed(1997), Max: YearsFromAnchor(5), Message: "Year must be between {min} and {max}",
	}}
	got, _ := Validate(Values{"year": "2040"}, rules, anchor2026).Message("year")
	if got != "Year must be between 1997 and 2031" {
		t.Fatalf("got %q", got)
	}
	got, _ = Validate(Values{"year": "2040"}, rules, Anchor{Year: 2030}).Message("year")
	if got != "Year must be between 1997 and 2035" {
		t.Fatalf("anchor 2030: got %q", got)
	}
}
