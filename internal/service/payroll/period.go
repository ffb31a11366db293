package payroll

import (
	"fmt"
	"time"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
)

const payDateOffsetDays = 5

// PeriodsPerYear returns how many pay periods a schedule has in a year.
// Unknown schedules fall back to the bi-weekly count.
func PeriodsPerYear(scheduleType payroll.ScheduleType) int {
	switch scheduleType {
	case payroll.ScheduleWeekly:
		return 52
	case payroll.ScheduleSemiMonthly:
		return 24
	case payroll.ScheduleMonthly:
		return 12
	default:
		return 26
	}
}

// GeneratePayPeriod returns the most recent complete pay period before reference.
// All dates are computed in reference's location.
func GeneratePayPeriod(scheduleType payroll.ScheduleType, reference time.Time) (payroll.PayPeriod, error) {
	loc := reference.Location()
	y, m, day := reference.Date()

	var start, end, pay time.Time
	switch scheduleType {
	case payroll.ScheduleWeekly:
		sunday := dayStart(y, m, day-int(reference.Weekday()), loc)
		start = sunday.AddDate(0, 0, -7)
		end = start.AddDate(0, 0, 6)
		pay = end.AddDate(0, 0, payDateOffsetDays)
	case payroll.ScheduleBiWeekly:
		sunday := dayStart(y, m, day-int(reference.Weekday()), loc)
		start = sunday.AddDate(0, 0, -14)
		end = start.AddDate(0, 0, 13)
		pay = end.AddDate(0, 0, payDateOffsetDays)
	case payroll.ScheduleSemiMonthly:
		if day <= 15 {
			start = dayStart(y, m-1, 16, loc)
			end = dayStart(y, m, 0, loc)
			pay = dayStart(y, m, 5, loc)
		} else {
			start = dayStart(y, m, 1, loc)
			end = dayStart(y, m, 15, loc)
			pay = dayStart(y, m, 20, loc)
		}
	case payroll.ScheduleMonthly:
		start = dayStart(y, m-1, 1, loc)
		end = dayStart(y, m, 0, loc)
		pay = dayStart(y, m, 5, loc)
	default:
		return payroll.PayPeriod{}, fmt.Errorf("%w: %q", payroll.ErrInvalidScheduleType, scheduleType)
	}

	return payroll.PayPeriod{
		ID:           periodID(scheduleType, start, end),
		ScheduleType: scheduleType,
		StartDate:    start,
		EndDate:      dayEnd(end),
		PayDate:      pay,
		Label:        periodLabel(start, end),
	}, nil
}

// dayStart normalizes overflowing day values the way time.Date does; day 0 is the
// last day of the previous month.
func dayStart(y int, m time.Month, day int, loc *time.Location) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func dayEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func periodID(scheduleType payroll.ScheduleType, start, end time.Time) string {
	return fmt.Sprintf("%s-%s-%s", scheduleType, start.Format("20060102"), end.Format("20060102"))
}

func periodLabel(start, end time.Time) string {
	if start.Year() != end.Year() {
		return start.Format("Jan 2, 2006") + " - " + end.Format("Jan 2, 2006")
	}
	return start.Format("Jan 2") + " - " + end.Format("Jan 2, 2006")
}
