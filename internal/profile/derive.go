package profile

import (
	"strconv"
	"strings"
	"time"
)

// condensedSkills is how many skills are kept when a short skill list is needed.
const condensedSkills = 8

var dateLayouts = []string{"2006-01-02", "2006-01", "01/2006", "2006"}

// Derived are the facts computed once per run from the profile.
type Derived struct {
	FullName          string
	YearsOfExperience int
	CurrentCompany    string
	CurrentTitle      string
	School            string
	Degree            string
	Field             string
	GraduationYear    string
	// Skills is the condensed, comma separated skill list.
	Skills string
	// Experience is a one-line summary of the work history.
	Experience string
}

// Derive computes the run facts relative to now.
func (p *Profile) Derive(now time.Time) Derived {
	d := Derived{
		FullName:          p.Name(),
		YearsOfExperience: YearsOfExperience(p.Experience, now),
		Skills:            condense(p.Skills),
	}

	if len(p.Experience) > 0 {
		current := p.Experience[0]
		for _, e := range p.Experience {
			if e.Ongoing {
				current = e
				break
			}
		}
		d.CurrentCompany = current.Employer
		d.CurrentTitle = current.Title
	}

	if len(p.Education) > 0 {
		latest := p.Education[0]
		for _, e := range p.Education[1:] {
			if yearOf(e.Graduation) > yearOf(latest.Graduation) {
				latest = e
			}
		}
		d.School = latest.School
		d.Degree = latest.Degree
		d.Field = latest.Field
		if y := yearOf(latest.Graduation); y > 0 {
			d.GraduationYear = strconv.Itoa(y)
		}
	}

	d.Experience = experienceSummary(d)
	return d
}

// YearsOfExperience sums the month spans of all entries, using now as the end of ongoing
// ones, and floors to whole years. Any experience counts as at least one year.
func YearsOfExperience(entries []Experience, now time.Time) int {
	if len(entries) == 0 {
		return 0
	}

	months := 0
	for _, e := range entries {
		start, ok := parseDate(e.Start)
		if !ok {
			continue
		}
		end := now
		if !e.Ongoing {
			if parsed, ok := parseDate(e.End); ok {
				end = parsed
			}
		}
		if span := monthsBetween(start, end); span > 0 {
			months += span
		}
	}

	return max(months/12, 1)
}

func monthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func yearOf(value string) int {
	t, ok := parseDate(value)
	if !ok {
		return 0
	}
	return t.Year()
}

func condense(skills []string) string {
	kept := make([]string, 0, condensedSkills)
	seen := make(map[string]bool)
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		kept = append(kept, s)
		if len(kept) == condensedSkills {
			break
		}
	}
	return strings.Join(kept, ", ")
}

func experienceSummary(d Derived) string {
	if d.CurrentTitle == "" && d.CurrentCompany == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(d.YearsOfExperience))
	if d.YearsOfExperience == 1 {
		b.WriteString(" year of experience")
	} else {
		b.WriteString(" years of experience")
	}
	if d.CurrentTitle != "" {
		b.WriteString(", currently " + d.CurrentTitle)
	}
	if d.CurrentCompany != "" {
		b.WriteString(" at " + d.CurrentCompany)
	}
	return b.String()
}
