package model

import (
	"errors"
	"testing"
)

func TestParseRule(t *testing.T) {
	cases := []struct {
		in       string
		kind     RuleKind
		encoded  string
		wantErr  bool
		weekdays []int
		day      int
	}{
		{in: "", kind: RuleNone, encoded: ""},
		{in: "none", kind: RuleNone, encoded: ""},
		{in: "daily", kind: RuleDaily, encoded: "daily"},
		{in: " Weekly:5,1,3,1 ", kind: RuleWeekly, encoded: "weekly:1,3,5", weekdays: []int{1, 3, 5}},
		{in: "monthly:31", kind: RuleMonthly, encoded: "monthly:31", day: 31},
		{in: "weekly:", kind: RuleNone, encoded: "weekly:", wantErr: true},
		{in: "weekly:0", kind: RuleNone, encoded: "weekly:0", wantErr: true},
		{in: "weekly:mon", kind: RuleNone, encoded: "weekly:mon", wantErr: true},
		{in: "monthly:32", kind: RuleNone, encoded: "monthly:32", wantErr: true},
		{in: "daily:2", kind: RuleNone, encoded: "daily:2", wantErr: true},
		{in: "yearly", kind: RuleNone, encoded: "yearly", wantErr: true},
	}
	for _, tc := range cases {
		r, err := ParseRule(tc.in)
		if tc.wantErr != (err != nil) {
			t.Fatalf("%q: expected error %t, got %v", tc.in, tc.wantErr, err)
		}
		if err != nil && !errors.Is(err, ErrMalformedRule) {
			t.Fatalf("%q: expected ErrMalformedRule, got %v", tc.in, err)
		}
		if r.Kind() != tc.kind {
			t.Fatalf("%q: expected kind %s, got %s", tc.in, tc.kind, r.Kind())
		}
		if r.String() != tc.encoded {
			t.Fatalf("%q: expected encoding %q, got %q", tc.in, tc.encoded, r.String())
		}
		if tc.wantErr && !r.Malformed() {
			t.Fatalf("%q: expected malformed rule", tc.in)
		}
		if tc.day != 0 && r.DayOfMonth() != tc.day {
			t.Fatalf("%q: expected day %d, got %d", tc.in, tc.day, r.DayOfMonth())
		}
		if tc.weekdays != nil {
			got := r.Weekdays()
			if len(got) != len(tc.weekdays) {
				t.Fatalf("%q: expected weekdays %v, got %v", tc.in, tc.weekdays, got)
			}
			for i := range got {
				if got[i] != tc.weekdays[i] {
					t.Fatalf("%q: expected weekdays %v, got %v", tc.in, tc.weekdays, got)
				}
			}
		}
	}
}

func TestRuleConstructorsRejectOutOfRange(t *testing.T) {
	for _, r := range []Rule{Weekly(), Weekly(0), Weekly(1, 8), Monthly(0), Monthly(40)} {
		if !r.Malformed() || !r.IsNone() {
			t.Fatalf("expected %q to be malformed", r.String())
		}
		if !r.Repeats() {
			t.Fatalf("expected malformed %q to still be a repeating definition", r.String())
		}
	}
	if (Rule{}).Repeats() {
		t.Fatalf("expected the zero rule not to repeat")
	}
}

func TestRuleScanKeepsMalformedPayload(t *testing.T) {
	var r Rule
	if err := r.Scan([]byte("weekly:9")); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !r.Malformed() || r.Raw() != "weekly:9" {
		t.Fatalf("expected malformed rule with raw payload, got %+v", r)
	}
	v, err := r.Value()
	if err != nil || v != "weekly:9" {
		t.Fatalf("expected payload written back unchanged, got %v (%v)", v, err)
	}

	if err := r.Scan(nil); err != nil || !r.IsNone() || r.Malformed() {
		t.Fatalf("expected NULL to scan as none, got %+v (%v)", r, err)
	}
}
