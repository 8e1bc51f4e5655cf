package finance

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// =============================================================================
// DATE - Calendar day (the granularity of every settlement event)
// =============================================================================

// Date is a calendar day in UTC. Ledger entries, due dates and
// competency boundaries are all day-granular; there is no sub-day
// ordering in the engine (CreatedAt timestamps order entries within a
// day).
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate accepts ISO "2006-01-02" and Brazilian "02/01/2006".
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(o Date) bool        { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool         { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool         { return d.normalize().Equal(o.normalize()) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }
func (d Date) IsZero() bool              { return d.Time.IsZero() }

func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// MarshalJSON encodes the date as its canonical "2006-01-02" form.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddMonthsKeepDay advances by whole months keeping the day of month,
// clamping to the last day when the target month is shorter
// (Jan 31 + 1 month = Feb 28/29). Payment plans depend on this rule:
// a schedule anchored on the 31st must not drift into the next month.
func (d Date) AddMonthsKeepDay(months int) Date {
	y, m, day := d.Time.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

// =============================================================================
// COMPETENCY - Accounting period (calendar month/year)
// =============================================================================

// Competency identifies an accounting month. Reports and monthly costs
// are windowed by competency, never by arbitrary date ranges.
type Competency struct {
	Month time.Month
	Year  int
}

var competencyRe = regexp.MustCompile(`^(\d{2})/(\d{4})$`)

// ParseCompetency parses the canonical "mm/aaaa" form, e.g. "01/2026".
func ParseCompetency(s string) (Competency, error) {
	m := competencyRe.FindStringSubmatch(s)
	if m == nil {
		return Competency{}, fmt.Errorf("%w: %q", ErrInvalidCompetency, s)
	}
	var mm, yyyy int
	fmt.Sscanf(m[1], "%d", &mm)
	fmt.Sscanf(m[2], "%d", &yyyy)
	c := Competency{Month: time.Month(mm), Year: yyyy}
	if !c.Valid() {
		return Competency{}, fmt.Errorf("%w: %q", ErrInvalidCompetency, s)
	}
	return c, nil
}

func NewCompetency(month time.Month, year int) (Competency, error) {
	c := Competency{Month: month, Year: year}
	if !c.Valid() {
		return Competency{}, fmt.Errorf("%w: %02d/%04d", ErrInvalidCompetency, month, year)
	}
	return c, nil
}

// Valid bounds the year to a sane business range.
func (c Competency) Valid() bool {
	return c.Month >= time.January && c.Month <= time.December &&
		c.Year >= 1900 && c.Year <= 2200
}

func (c Competency) Start() Date { return NewDate(c.Year, c.Month, 1) }

func (c Competency) End() Date {
	first := time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return NewDate(last.Year(), last.Month(), last.Day())
}

// Contains reports whether d falls inside the competency month.
func (c Competency) Contains(d Date) bool {
	return d.AfterOrEqual(c.Start()) && d.BeforeOrEqual(c.End())
}

func (c Competency) String() string { return fmt.Sprintf("%02d/%04d", c.Month, c.Year) }

func (c Competency) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

func (c *Competency) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCompetency(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
