package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RuleKind discriminates a Rule.
type RuleKind uint8

const (
	RuleNone RuleKind = iota
	RuleDaily
	RuleWeekly
	RuleMonthly
)

func (k RuleKind) String() string {
	switch k {
	case RuleDaily:
		return "daily"
	case RuleWeekly:
		return "weekly"
	case RuleMonthly:
		return "monthly"
	default:
		return "none"
	}
}

var ErrMalformedRule = errors.New("malformed repeat rule")

// Rule is a repetition pattern: none, daily, a set of ISO weekdays, or one day of month.
// A rule built from out-of-range values never matches; it keeps its raw form for diagnosis.
type Rule struct {
	kind     RuleKind
	weekdays uint8 // bit i set means ISO weekday i (1..7)
	day      int
	raw      string
}

func Daily() Rule {
	return Rule{kind: RuleDaily}
}

// Weekly takes ISO weekdays, 1 for Monday through 7 for Sunday.
func Weekly(days ...int) Rule {
	var set uint8
	for _, d := range days {
		if d < 1 || d > 7 {
			return malformed(encodeWeekly(days))
		}
		set |= 1 << d
	}
	if set == 0 {
		return malformed("weekly:")
	}
	return Rule{kind: RuleWeekly, weekdays: set}
}

func Monthly(day int) Rule {
	if day < 1 || day > 31 {
		return malformed("monthly:" + strconv.Itoa(day))
	}
	return Rule{kind: RuleMonthly, day: day}
}

func malformed(raw string) Rule {
	return Rule{kind: RuleNone, raw: raw}
}

func (r Rule) Kind() RuleKind { return r.kind }

func (r Rule) IsNone() bool { return r.kind == RuleNone }

// Malformed reports a rule that was meant to repeat but carries invalid values.
func (r Rule) Malformed() bool { return r.kind == RuleNone && r.raw != "" }

func (r Rule) Raw() string { return r.raw }

// Repeats is true for any rule other than a plain none, malformed rules included.
func (r Rule) Repeats() bool { return r.kind != RuleNone || r.raw != "" }

// HasWeekday reports whether ISO weekday wd belongs to a weekly rule.
func (r Rule) HasWeekday(wd int) bool {
	if r.kind != RuleWeekly || wd < 1 || wd > 7 {
		return false
	}
	return r.weekdays&(1<<wd) != 0
}

func (r Rule) Weekdays() []int {
	var out []int
	for d := 1; d <= 7; d++ {
		if r.HasWeekday(d) {
			out = append(out, d)
		}
	}
	return out
}

func (r Rule) DayOfMonth() int {
	if r.kind != RuleMonthly {
		return 0
	}
	return r.day
}

func (r Rule) Equal(other Rule) bool {
	return r == other
}

func (r Rule) String() string {
	switch r.kind {
	case RuleDaily:
		return "daily"
	case RuleWeekly:
		return encodeWeekly(r.Weekdays())
	case RuleMonthly:
		return "monthly:" + strconv.Itoa(r.day)
	default:
		return r.raw
	}
}

func encodeWeekly(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return "weekly:" + strings.Join(parts, ",")
}

// ParseRule decodes the storage form: "", "daily", "weekly:1,3,5" or "monthly:31".
// On error the returned rule is malformed and never matches.
func ParseRule(s string) (Rule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return Rule{}, nil
	}
	kind, arg, _ := strings.Cut(s, ":")
	switch kind {
	case "daily":
		if arg != "" {
			return malformed(s), fmt.Errorf("%w: %q", ErrMalformedRule, s)
		}
		return Daily(), nil
	case "weekly":
		var days []int
		seen := make(map[int]bool)
		for _, part := range strings.Split(arg, ",") {
			d, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || d < 1 || d > 7 {
				return malformed(s), fmt.Errorf("%w: weekday %q in %q", ErrMalformedRule, part, s)
			}
			if !seen[d] {
				seen[d] = true
				days = append(days, d)
			}
		}
		sort.Ints(days)
		return Weekly(days...), nil
	case "monthly":
		d, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || d < 1 || d > 31 {
			return malformed(s), fmt.Errorf("%w: day of month %q", ErrMalformedRule, arg)
		}
		return Monthly(d), nil
	default:
		return malformed(s), fmt.Errorf("%w: %q", ErrMalformedRule, s)
	}
}

// Value stores the rule as text. A malformed rule is written back as it was read.
func (r Rule) Value() (driver.Value, error) {
	return r.String(), nil
}

// Scan decodes the stored rule. Malformed payloads never fail the scan.
func (r *Rule) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan rule: unsupported type %T", src)
	}
	*r, _ = ParseRule(s)
	return nil
}
