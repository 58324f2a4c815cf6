package query

import "time"

// FiscalPeriodTemplate subdivides a fiscal year.
type FiscalPeriodTemplate int

const (
	FiscalAnnually FiscalPeriodTemplate = iota
	FiscalSemiAnnually
	FiscalQuarterly
	FiscalMonthly
)

// monthsPerPeriod returns the period length in months.
func (t FiscalPeriodTemplate) monthsPerPeriod() int {
	switch t {
	case FiscalMonthly:
		return 1
	case FiscalQuarterly:
		return 3
	case FiscalSemiAnnually:
		return 6
	default:
		return 12
	}
}

// FiscalSettings anchor the fiscal calendar: the month/day the fiscal
// year starts on, and how it subdivides into periods.
type FiscalSettings struct {
	StartMonth time.Month
	StartDay   int
	Template   FiscalPeriodTemplate
}

// DefaultFiscalSettings matches a freshly provisioned organization:
// calendar-aligned fiscal year, quarterly periods.
func DefaultFiscalSettings() FiscalSettings {
	return FiscalSettings{StartMonth: time.January, StartDay: 1, Template: FiscalQuarterly}
}

// yearStart returns the start of the fiscal year containing t, in t's
// location.
func (fs FiscalSettings) yearStart(t time.Time) time.Time {
	month := fs.StartMonth
	if month == 0 {
		month = time.January
	}
	day := fs.StartDay
	if day == 0 {
		day = 1
	}
	ys := time.Date(t.Year(), month, day, 0, 0, 0, 0, t.Location())
	if t.Before(ys) {
		ys = ys.AddDate(-1, 0, 0)
	}
	return ys
}

// YearRange returns the fiscal year containing t as a half-open
// [start, end) interval.
func (fs FiscalSettings) YearRange(t time.Time) (time.Time, time.Time) {
	start := fs.yearStart(t)
	return start, start.AddDate(1, 0, 0)
}

// PeriodRange returns the fiscal period containing t as a half-open
// [start, end) interval. The last period of a fiscal year is immediately
// followed by the first period of the next: PeriodRange(end) of one
// period is the next period, across year boundaries included.
func (fs FiscalSettings) PeriodRange(t time.Time) (time.Time, time.Time) {
	months := fs.Template.monthsPerPeriod()
	start := fs.yearStart(t)
	next := start.AddDate(0, months, 0)
	for !t.Before(next) {
		start = next
		next = start.AddDate(0, months, 0)
	}
	return start, next
}

// PreviousPeriodRange returns the period immediately before the one
// containing t.
func (fs FiscalSettings) PreviousPeriodRange(t time.Time) (time.Time, time.Time) {
	start, _ := fs.PeriodRange(t)
	return fs.PeriodRange(start.Add(-time.Nanosecond))
}

// NextPeriodRange returns the period immediately after the one
// containing t.
func (fs FiscalSettings) NextPeriodRange(t time.Time) (time.Time, time.Time) {
	_, end := fs.PeriodRange(t)
	return fs.PeriodRange(end)
}

// PreviousYearRange returns the fiscal year before the one containing t.
func (fs FiscalSettings) PreviousYearRange(t time.Time) (time.Time, time.Time) {
	start, _ := fs.YearRange(t)
	return fs.YearRange(start.Add(-time.Nanosecond))
}

// NextYearRange returns the fiscal year after the one containing t.
func (fs FiscalSettings) NextYearRange(t time.Time) (time.Time, time.Time) {
	_, end := fs.YearRange(t)
	return fs.YearRange(end)
}

// YearRangeFor returns the fiscal year labeled by its starting calendar
// year (used by the in-fiscal-year operator).
func (fs FiscalSettings) YearRangeFor(year int, loc *time.Location) (time.Time, time.Time) {
	month := fs.StartMonth
	if month == 0 {
		month = time.January
	}
	day := fs.StartDay
	if day == 0 {
		day = 1
	}
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return start, start.AddDate(1, 0, 0)
}
