package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Filter is the recognized filter-field bag per §4.6. Unknown fields are
// rejected rather than silently dropped — ParseFilter is the only
// constructor, and it returns an error for anything it doesn't
// recognize.
type Filter struct {
	MinExperience   *int
	SeniorityLevels map[string]struct{}
	RequiredSkills  map[string]struct{}
	DateRange       *DateRange
}

// DateRange is an inclusive, ISO-8601 date window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// recognizedFields is the exhaustive set of keys ParseFilter accepts.
var recognizedFields = map[string]struct{}{
	"min_experience":   {},
	"seniority_levels": {},
	"required_skills":  {},
	"date_range":       {},
}

// ParseFilter builds a Filter from a raw field bag (as would arrive off
// the wire as JSON), rejecting any field name outside recognizedFields.
func ParseFilter(raw map[string]any) (Filter, error) {
	var f Filter

	for key := range raw {
		if _, ok := recognizedFields[key]; !ok {
			return Filter{}, fmt.Errorf("docstore: unknown filter field %q", key)
		}
	}

	if v, ok := raw["min_experience"]; ok {
		n, err := toInt(v)
		if err != nil {
			return Filter{}, fmt.Errorf("docstore: min_experience: %w", err)
		}
		f.MinExperience = &n
	}

	if v, ok := raw["seniority_levels"]; ok {
		set, err := toStringSet(v)
		if err != nil {
			return Filter{}, fmt.Errorf("docstore: seniority_levels: %w", err)
		}
		f.SeniorityLevels = set
	}

	if v, ok := raw["required_skills"]; ok {
		set, err := toStringSet(v)
		if err != nil {
			return Filter{}, fmt.Errorf("docstore: required_skills: %w", err)
		}
		f.RequiredSkills = set
	}

	if v, ok := raw["date_range"]; ok {
		dr, err := toDateRange(v)
		if err != nil {
			return Filter{}, fmt.Errorf("docstore: date_range: %w", err)
		}
		f.DateRange = dr
	}

	return f, nil
}

// Matches reports whether r satisfies every predicate present in f. A
// nil/zero field on f is treated as "no constraint".
func (f Filter) Matches(r Record) bool {
	if f.MinExperience != nil {
		if r.ExperienceYears.Kind != KindInt || r.ExperienceYears.I64 < int64(*f.MinExperience) {
			return false
		}
	}

	if len(f.SeniorityLevels) > 0 {
		if r.Seniority.Kind != KindString {
			return false
		}
		if _, ok := f.SeniorityLevels[strings.ToLower(r.Seniority.Str)]; !ok {
			return false
		}
	}

	if len(f.RequiredSkills) > 0 {
		if r.Skills.Kind != KindStringSet {
			return false
		}
		for skill := range f.RequiredSkills {
			if _, ok := r.Skills.Set[skill]; !ok {
				return false
			}
		}
	}

	if f.DateRange != nil {
		if r.PostedAt.Kind != KindInt {
			return false
		}
		ts := r.PostedAt.I64
		if ts < f.DateRange.Start.Unix() || ts > f.DateRange.End.Unix() {
			return false
		}
	}

	return true
}

// Fingerprint returns the canonical sorted-JSON representation of f,
// used as part of the query cache key per §4.5 step 2. Two Filters with
// the same logical content always produce the same fingerprint,
// regardless of map iteration order.
func (f Filter) Fingerprint() string {
	type canonical struct {
		MinExperience   *int     `json:"min_experience,omitempty"`
		SeniorityLevels []string `json:"seniority_levels,omitempty"`
		RequiredSkills  []string `json:"required_skills,omitempty"`
		DateStart       *int64   `json:"date_start,omitempty"`
		DateEnd         *int64   `json:"date_end,omitempty"`
	}

	c := canonical{MinExperience: f.MinExperience}
	c.SeniorityLevels = sortedKeys(f.SeniorityLevels)
	c.RequiredSkills = sortedKeys(f.RequiredSkills)
	if f.DateRange != nil {
		start, end := f.DateRange.Start.Unix(), f.DateRange.End.Unix()
		c.DateStart, c.DateEnd = &start, &end
	}

	b, _ := json.Marshal(c)
	return string(b)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toStringSet(v any) (map[string]struct{}, error) {
	items, ok := v.([]string)
	if !ok {
		anySlice, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings, got %T", v)
		}
		items = make([]string, len(anySlice))
		for i, a := range anySlice {
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("expected a list of strings, got element of type %T", a)
			}
			items[i] = s
		}
	}

	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[strings.ToLower(it)] = struct{}{}
	}
	return set, nil
}

func toDateRange(v any) (*DateRange, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object with start/end, got %T", v)
	}

	start, err := toTime(m["start"])
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := toTime(m["end"])
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	return &DateRange{Start: start, End: end}, nil
}

func toTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected an ISO-8601 string, got %T", v)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid ISO-8601 date %q: %w", s, err)
		}
	}
	return t, nil
}
