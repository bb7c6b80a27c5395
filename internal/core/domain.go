package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

type (
	// Interval is the repetition frequency of a recurring payment rule.
	Interval string

	// Date is a day-granularity calendar date. The time portion is always
	// midnight UTC so that comparisons never depend on wall-clock time.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Rule is a recurring payment rule. NextOccurrence is the rule's
	// clock: it always points at the next date a payment is owed and is
	// advanced only after that payment has been recorded.
	Rule struct {
		ID             int64
		OwnerID        int64
		Name           string
		Description    string
		CategoryID     int64
		Amount         Money
		Interval       Interval
		DayOfMonth     int // 1-31, set for monthly and yearly rules
		DayOfWeek      int // 0-6, Sunday = 0, set for weekly rules
		StartDate      Date
		NextOccurrence Date
		EndDate        Date // zero when the rule is open-ended
		Active         bool
	}

	// Transaction is a payment record generated from a rule. RuleID and
	// RunID tie it back to the originating rule and execution run. The
	// engine never mutates a transaction after creating it; only the
	// notification worker stamps NotifiedAt.
	Transaction struct {
		ID          int64
		OwnerID     int64
		CategoryID  int64
		Description string
		Amount      Money
		Date        Date // the occurrence date, not the wall-clock creation time
		RuleID      int64
		RunID       string
		NotifiedAt  time.Time
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidInterval   = errors.New("invalid interval")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrInvalidDayOfWeek  = errors.New("day of week must be between 0 and 6")
	ErrEmptyName         = errors.New("empty rule name")
	ErrMissingCategory   = errors.New("missing category")

	// ErrCategoryNotFound is returned when a rule references a category
	// that has been deleted since the rule was created.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrConcurrentModification is returned when a rule or its
	// occurrence slot changed underneath an execution. It is safe to
	// retry on the next run.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidRecurrence is returned for interval/day combinations
	// that creation-time validation should have rejected.
	ErrInvalidRecurrence = errors.New("invalid recurrence configuration")

	// ErrRuleNotDue is returned when a rule selected as due turns out to
	// be inactive or no longer due by the time it is executed.
	ErrRuleNotDue = errors.New("rule not due")

	// ErrPastEndDate is returned when a rule's clock points past its end
	// date while the rule is still active. Such a rule is retired
	// without creating a payment.
	ErrPastEndDate = errors.New("past end date")
)

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary timestamp to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// IsEmpty reports whether the date is unset (used for optional end dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as an int.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Equal reports whether two dates name the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON encodes the date as "YYYY-MM-DD". Empty dates encode as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes "YYYY-MM-DD" dates; null and "" decode to the
// empty date.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i Interval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Validate checks a rule's static shape: amount, name, category, the
// interval/day pairing, and the date invariants. It is called at
// creation time; the executor re-checks defensively before paying.
func (r Rule) Validate() error {
	if len(strings.TrimSpace(r.Name)) == 0 {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return errors.New("rule name too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if r.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if !r.Interval.Valid() {
		return ErrInvalidInterval
	}
	if err := r.ValidateSchedule(); err != nil {
		return err
	}
	if r.StartDate.IsZero() {
		return errors.New("start date cannot be zero")
	}
	if !r.NextOccurrence.IsZero() && r.NextOccurrence.Before(r.StartDate.Time) {
		return errors.New("next occurrence cannot precede start date")
	}
	if !r.EndDate.IsEmpty() && r.EndDate.Before(r.StartDate.Time) {
		return errors.New("end date must not precede start date")
	}
	if r.Active && !r.EndDate.IsEmpty() && r.NextOccurrence.After(r.EndDate.Time) {
		return ErrPastEndDate
	}
	return nil
}

// ValidateSchedule checks only the interval/day pairing. The monthly and
// yearly intervals anchor on a day of the month, the weekly interval on
// a weekday, and the daily interval on nothing.
func (r Rule) ValidateSchedule() error {
	switch r.Interval {
	case Monthly, Yearly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return ErrInvalidDayOfMonth
		}
	case Weekly:
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return ErrInvalidDayOfWeek
		}
	case Daily:
		// No anchor.
	default:
		return ErrInvalidInterval
	}
	return nil
}

// DueAt reports whether the rule owes a payment on or before the given
// date. A rule that trails by more than one interval is due exactly
// once; it re-qualifies on the next run after its clock advances.
func (r Rule) DueAt(now Date) bool {
	return r.Active && !r.NextOccurrence.After(now.Time)
}
