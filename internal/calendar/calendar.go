// Package calendar resolves civil-calendar boundaries in a caller-supplied IANA timezone.
//
// Every operation takes the timezone explicitly; nothing here falls back to the
// process-local zone.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

var (
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrUnknownTimezone   = errors.New("unknown timezone")
)

const DateKeyLayout = "2006-01-02"

type Style string

const (
	StyleShort  Style = "short"
	StyleMedium Style = "medium"
	StyleLong   Style = "long"
	StyleMonth  Style = "month"
)

var styleLayouts = map[Style]string{
	StyleShort:  "01/02/2006",
	StyleMedium: "Jan 2, 2006",
	StyleLong:   "Monday, January 2, 2006",
	StyleMonth:  "January 2006",
}

var relativePattern = regexp.MustCompile(`^(\d+)([dwm])$`)

type Components struct {
	Year      int `json:"year"`
	Month     int `json:"month"`
	Day       int `json:"day"`
	DayOfWeek int `json:"day_of_week"` // 0 = Sunday
}

type ParseOptions struct {
	EndOfDay bool
}

type Calendar struct {
	now func() time.Time
}

func New() *Calendar {
	return &Calendar{now: time.Now}
}

// NewWithClock pins "now" for relative date parsing.
func NewWithClock(clock func() time.Time) *Calendar {
	return &Calendar{now: clock}
}

// Location validates an IANA identifier. "Local" is rejected because it names the server zone.
func Location(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, tz)
	}
	return loc, nil
}

func (c *Calendar) Now() time.Time {
	return c.now()
}

// StartOfDay returns the first instant of the civil date. Where midnight is skipped
// by a DST change the day begins at the transition instead.
func (c *Calendar) StartOfDay(t time.Time, tz string) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.In(loc).Date()
	return startOfCivilDay(y, m, d, loc), nil
}

// EndOfDay returns 23:59:59.999 of the civil date, or the last millisecond before the next day begins.
func (c *Calendar) EndOfDay(t time.Time, tz string) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.In(loc).Date()
	return endOfCivilDay(y, m, d, loc), nil
}

func (c *Calendar) DateComponents(t time.Time, tz string) (Components, error) {
	loc, err := Location(tz)
	if err != nil {
		return Components{}, err
	}
	local := t.In(loc)
	return Components{
		Year:      local.Year(),
		Month:     int(local.Month()),
		Day:       local.Day(),
		DayOfWeek: int(local.Weekday()),
	}, nil
}

// StartOfWeek returns the start of the Sunday on or before the civil date.
func (c *Calendar) StartOfWeek(t time.Time, tz string) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	local := t.In(loc)
	y, m, d := local.Date()
	return startOfCivilDay(y, m, d-int(local.Weekday()), loc), nil
}

func (c *Calendar) StartOfMonth(t time.Time, tz string) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	y, m, _ := t.In(loc).Date()
	return startOfCivilDay(y, m, 1, loc), nil
}

// AddDays moves whole civil days and returns the start of the resulting day.
func (c *Calendar) AddDays(t time.Time, tz string, days int) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.In(loc).Date()
	return startOfCivilDay(y, m, d+days, loc), nil
}

// DateKey renders the civil date as YYYY-MM-DD.
func (c *Calendar) DateKey(t time.Time, tz string) (string, error) {
	loc, err := Location(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(DateKeyLayout), nil
}

func (c *Calendar) FormatDate(t time.Time, tz string, style Style) (string, error) {
	loc, err := Location(tz)
	if err != nil {
		return "", err
	}
	layout, ok := styleLayouts[style]
	if !ok {
		layout = styleLayouts[StyleMedium]
	}
	return t.In(loc).Format(layout), nil
}

// ParseDate accepts "<N>d", "<N>w", "<N>m" (before now), "today", or an absolute date,
// and normalizes the result to the start (or end) of its civil day in tz.
// Absolute dates without an offset name a civil date in tz; with an offset they name an instant.
func (c *Calendar) ParseDate(text string, opts ParseOptions, tz string) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("%w: date string is required", ErrInvalidDateFormat)
	}

	y, m, d, err := c.civilDate(text, loc)
	if err != nil {
		return time.Time{}, err
	}

	if opts.EndOfDay {
		return endOfCivilDay(y, m, d, loc), nil
	}
	return startOfCivilDay(y, m, d, loc), nil
}

func (c *Calendar) civilDate(text string, loc *time.Location) (int, time.Month, int, error) {
	current := c.now().In(loc)
	y, m, d := current.Date()
	// Civil arithmetic runs at UTC noon so no DST gap can move the date.
	civil := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)

	switch {
	case relativePattern.MatchString(text):
		shifted, err := subtractRelative(civil, text)
		if err != nil {
			return 0, 0, 0, err
		}
		y, m, d = shifted.Date()
		return y, m, d, nil
	case strings.EqualFold(text, "today"):
		return y, m, d, nil
	}

	parsed, err := c.config(loc).With(current).Parse(text)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidDateFormat, text)
	}
	if parsed.Location() != loc {
		y, m, d = parsed.In(loc).Date()
		return y, m, d, nil
	}

	// No offset in the text: read its wall date in UTC, where midnight always exists.
	wall, err := c.config(time.UTC).With(civil).Parse(text)
	if err != nil {
		y, m, d = parsed.Date()
		return y, m, d, nil
	}
	y, m, d = wall.Date()
	return y, m, d, nil
}

// timeFormats extends jinzhu/now's layouts with the common written forms.
var timeFormats = append(append([]string{}, now.TimeFormats...),
	time.RFC1123,
	time.RFC1123Z,
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006",
	"2006/1/2",
)

func (c *Calendar) config(loc *time.Location) *now.Config {
	return &now.Config{
		WeekStartDay: time.Sunday,
		TimeLocation: loc,
		TimeFormats:  timeFormats,
	}
}

// startOfCivilDay returns the first instant on y-m-d in loc. Unnormalized days roll over.
func startOfCivilDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	y, m, d = time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Date()

	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if ty, tm, td := t.Date(); ty != y || tm != m || td != d {
		// Midnight falls in a DST gap; the day starts when the gap ends.
		if _, end := t.ZoneBounds(); !end.IsZero() {
			return end
		}
	}
	return t
}

func endOfCivilDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	return startOfCivilDay(y, m, d+1, loc).Add(-time.Millisecond)
}

func subtractRelative(current time.Time, text string) (time.Time, error) {
	match := relativePattern.FindStringSubmatch(text)
	amount, err := strconv.Atoi(match[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, text)
	}

	switch match[2] {
	case "d":
		return current.AddDate(0, 0, -amount), nil
	case "w":
		return current.AddDate(0, 0, -7*amount), nil
	default:
		return SubtractMonths(current, amount), nil
	}
}

// SubtractMonths moves back whole civil months, clamping the day to the last valid
// day of the target month (March 31 minus one month is February 28/29).
func SubtractMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month-time.Month(months), 1, 0, 0, 0, 0, t.Location())

	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
