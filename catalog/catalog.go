// Package catalog holds the static table of districts shown by the slideshow:
// one district per congressional session, joined to that session's ordinal
// label and date range. The table is validated once at startup and is
// immutable afterwards.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the format used for session dates, e.g. "March 4, 1789".
const DateLayout = "January 2, 2006"

// ErrMalformed marks a district table that violates its invariants.
var ErrMalformed = errors.New("malformed district catalog")

// District is one slideshow entry.
type District struct {
	ID      string // zero padded, "001".."025"
	Number  int
	Ordinal string // "1st", "2nd", ...
	Start   time.Time
	End     time.Time
}

// DateRange renders the session range the way the slides and prompts show it.
func (d District) DateRange() string {
	return FormatDate(d.Start) + " to " + FormatDate(d.End)
}

// Row is an unparsed catalog entry.
type Row struct {
	ID        string
	Ordinal   string
	DateRange string
}

// Catalog is an ordered, validated set of districts.
type Catalog struct {
	districts []District
	byID      map[string]int
}

// New parses and validates rows. Rows must already be in ascending order.
func New(rows []Row) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no districts", ErrMalformed)
	}
	c := &Catalog{
		districts: make([]District, 0, len(rows)),
		byID:      make(map[string]int, len(rows)),
	}
	for i, r := range rows {
		n := i + 1
		if want := FormatID(n); r.ID != want {
			return nil, fmt.Errorf("%w: row %d has id %q, want %q", ErrMalformed, n, r.ID, want)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrMalformed, r.ID)
		}
		if want := Ordinal(n); r.Ordinal != want {
			return nil, fmt.Errorf("%w: district %s ordinal %q, want %q", ErrMalformed, r.ID, r.Ordinal, want)
		}
		start, end, err := ParseDateRange(r.DateRange)
		if err != nil {
			return nil, fmt.Errorf("%w: district %s: %v", ErrMalformed, r.ID, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%w: district %s ends before it starts", ErrMalformed, r.ID)
		}
		if i > 0 {
			prev := c.districts[i-1]
			if !start.After(prev.End) {
				return nil, fmt.Errorf("%w: district %s starts %s, not after %s ends %s",
					ErrMalformed, r.ID, FormatDate(start), prev.ID, FormatDate(prev.End))
			}
		}
		c.byID[r.ID] = i
		c.districts = append(c.districts, District{
			ID:      r.ID,
			Number:  n,
			Ordinal: r.Ordinal,
			Start:   start,
			End:     end,
		})
	}
	return c, nil
}

// List returns the districts in ascending order. The slice is a copy.
func (c *Catalog) List() []District {
	out := make([]District, len(c.districts))
	copy(out, c.districts)
	return out
}

// Get looks a district up by id.
func (c *Catalog) Get(id string) (District, bool) {
	i, ok := c.byID[id]
	if !ok {
		return District{}, false
	}
	return c.districts[i], true
}

// Len returns the number of districts.
func (c *Catalog) Len() int { return len(c.districts) }

// ParseDateRange splits "March 4, 1789 to March 3, 1791" into its two dates.
func ParseDateRange(s string) (time.Time, time.Time, error) {
	parts := strings.Split(s, " to ")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("date range %q: want \"<start> to <end>\"", s)
	}
	start, err := time.Parse(DateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
	}
	end, err := time.Parse(DateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
	}
	return start, end, nil
}

// FormatDate renders a session date.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// FormatID renders a district number as its three digit code.
func FormatID(n int) string { return fmt.Sprintf("%03d", n) }

// Ordinal returns n with its English ordinal suffix.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
