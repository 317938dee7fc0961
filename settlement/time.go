package settlement

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day (items and payments are dated, not timestamped)
// =============================================================================

const dateLayout = "2006-01-02"

// Date is a calendar day in UTC.
type Date struct {
	Time time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current UTC day.
func Today() Date { return DateOf(time.Now().UTC()) }

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(o Date) bool { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool  { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool  { return d.normalize().Equal(o.normalize()) }
func (d Date) IsZero() bool       { return d.Time.IsZero() }
func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }
func (d Date) String() string     { return d.Time.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDate(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
