package payroll

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	}
}

func newTestCalculator() *EntryCalculator {
	return NewEntryCalculator(DefaultTaxTables(), sequentialIDs())
}

func hourlyEmployee(rate string) payroll.Employee {
	return payroll.Employee{
		ID:             "emp-1",
		CompanyID:      "company-1",
		Name:           "Dana Builder",
		EmploymentType: payroll.EmploymentHourly,
		HourlyRate:     dec(rate),
		Withholding:    payroll.WithholdingProfile{FilingStatus: payroll.FilingSingle},
	}
}

func weeklyPeriod(t *testing.T) payroll.PayPeriod {
	t.Helper()
	p, err := GeneratePayPeriod(payroll.ScheduleWeekly, date(2024, 6, 19)) // Jun 9 - Jun 15
	require.NoError(t, err)
	return p
}

func workDays(employeeID string, start time.Time, hours ...int) []payroll.TimeEntry {
	entries := make([]payroll.TimeEntry, 0, len(hours))
	for i, h := range hours {
		entries = append(entries, payroll.TimeEntry{
			ID:           fmt.Sprintf("%s-te-%d", employeeID, i),
			EmployeeID:   employeeID,
			ClockIn:      start.AddDate(0, 0, i).Add(7 * time.Hour),
			TotalMinutes: h * 60,
			Type:         payroll.TimeEntryClock,
		})
	}
	return entries
}

func assertNetPayIdentity(t *testing.T, e payroll.PayrollEntry) {
	t.Helper()
	sum := e.Taxes.Federal.Add(e.Taxes.State).Add(e.Taxes.SocialSecurity).Add(e.Taxes.Medicare).Add(e.Taxes.Local).
		Add(e.Deductions.Retirement401k).Add(e.Deductions.HealthInsurance).Add(e.Deductions.Other)
	assert.True(t, e.TotalDeductions.Equal(sum), "total deductions %s != components %s", e.TotalDeductions, sum)
	assert.True(t, e.NetPay.Equal(e.GrossPay.Sub(e.TotalDeductions)), "net %s != gross %s - deductions %s", e.NetPay, e.GrossPay, e.TotalDeductions)
}

func TestCalculate_EndToEndWeeklyOvertime(t *testing.T) {
	period := weeklyPeriod(t)
	// Monday through Friday, 9 hours a day.
	entries := workDays("emp-1", period.StartDate.AddDate(0, 0, 1), 9, 9, 9, 9, 9)

	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee:    hourlyEmployee("25"),
		TimeEntries: entries,
		Period:      period,
		Settings:    payroll.DefaultSettings("company-1"),
	})
	require.NoError(t, err)

	assertMoney(t, "40", entry.Hours.Regular)
	assertMoney(t, "5", entry.Hours.Overtime)
	assertMoney(t, "1000", entry.Pay.Regular)
	assertMoney(t, "187.50", entry.Pay.Overtime)
	assertMoney(t, "1187.50", entry.GrossPay)

	assertMoney(t, "104.35", entry.Taxes.Federal)
	assertMoney(t, "0", entry.Taxes.State)
	assertMoney(t, "73.63", entry.Taxes.SocialSecurity)
	assertMoney(t, "17.22", entry.Taxes.Medicare)
	assertMoney(t, "195.20", entry.TotalDeductions)
	assertMoney(t, "992.30", entry.NetPay)
	assertNetPayIdentity(t, entry)

	assertMoney(t, "1187.50", entry.YTD.Gross)
	assertMoney(t, "73.63", entry.YTD.SocialSecurity)
	assert.Len(t, entry.TimeEntryIDs, 5)
	assert.False(t, entry.HasManualOverrides)
	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, "TX", entry.StateCode)
}

func TestCalculate_DailyOvertime(t *testing.T) {
	period := weeklyPeriod(t)
	settings := payroll.DefaultSettings("company-1")
	settings.EnableDailyOvertime = true

	t.Run("a single long day splits at the daily threshold", func(t *testing.T) {
		entry, err := newTestCalculator().Calculate(EntryInput{
			Employee:    hourlyEmployee("20"),
			TimeEntries: workDays("emp-1", period.StartDate.AddDate(0, 0, 1), 12),
			Period:      period,
			Settings:    settings,
		})
		require.NoError(t, err)
		assertMoney(t, "8", entry.Hours.Regular)
		assertMoney(t, "4", entry.Hours.Overtime)
		assertMoney(t, "160", entry.Pay.Regular)
		assertMoney(t, "120", entry.Pay.Overtime)
	})

	t.Run("weekly total is not reclassified in daily mode", func(t *testing.T) {
		entry, err := newTestCalculator().Calculate(EntryInput{
			Employee:    hourlyEmployee("20"),
			TimeEntries: workDays("emp-1", period.StartDate, 8, 8, 8, 8, 8, 8),
			Period:      period,
			Settings:    settings,
		})
		require.NoError(t, err)
		assertMoney(t, "48", entry.Hours.Regular)
		assert.True(t, entry.Hours.Overtime.IsZero())
	})

	t.Run("hours above the double-time threshold", func(t *testing.T) {
		dt := settings
		dt.DoubleTimeThreshold = dec("12")
		entry, err := newTestCalculator().Calculate(EntryInput{
			Employee:    hourlyEmployee("20"),
			TimeEntries: workDays("emp-1", period.StartDate.AddDate(0, 0, 1), 14),
			Period:      period,
			Settings:    dt,
		})
		require.NoError(t, err)
		assertMoney(t, "8", entry.Hours.Regular)
		assertMoney(t, "4", entry.Hours.Overtime)
		assertMoney(t, "2", entry.Hours.DoubleTime)
		assertMoney(t, "80", entry.Pay.DoubleTime)
	})

	t.Run("entries on the same day are summed", func(t *testing.T) {
		day := period.StartDate.AddDate(0, 0, 2)
		entries := []payroll.TimeEntry{
			{ID: "a", EmployeeID: "emp-1", ClockIn: day.Add(6 * time.Hour), TotalMinutes: 300},
			{ID: "b", EmployeeID: "emp-1", ClockIn: day.Add(12 * time.Hour), TotalMinutes: 330},
		}
		entry, err := newTestCalculator().Calculate(EntryInput{
			Employee:    hourlyEmployee("20"),
			TimeEntries: entries,
			Period:      period,
			Settings:    settings,
		})
		require.NoError(t, err)
		assertMoney(t, "8", entry.Hours.Regular)
		assertMoney(t, "2.5", entry.Hours.Overtime)
	})
}

func TestCalculate_WeeklyModeUnderThreshold(t *testing.T) {
	period := weeklyPeriod(t)
	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee:    hourlyEmployee("20"),
		TimeEntries: workDays("emp-1", period.StartDate.AddDate(0, 0, 1), 8, 8, 8),
		Period:      period,
		Settings:    payroll.DefaultSettings("company-1"),
	})
	require.NoError(t, err)
	assertMoney(t, "24", entry.Hours.Regular)
	assert.True(t, entry.Hours.Overtime.IsZero())
}

func TestCalculate_WeeklyModeCorrectsOncePerPeriod(t *testing.T) {
	period, err := GeneratePayPeriod(payroll.ScheduleBiWeekly, date(2024, 6, 19)) // Jun 2 - Jun 15
	require.NoError(t, err)

	// 25 hours in the first week, 20 in the second.
	entries := append(
		workDays("emp-1", date(2024, 6, 3), 5, 5, 5, 5, 5),
		workDays("emp-1", date(2024, 6, 10), 4, 4, 4, 4, 4)...,
	)
	for i := range entries {
		entries[i].ID = fmt.Sprintf("te-%d", i)
	}
	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee:    hourlyEmployee("20"),
		TimeEntries: entries,
		Period:      period,
		Settings:    payroll.DefaultSettings("company-1"),
	})
	require.NoError(t, err)
	assertMoney(t, "40", entry.Hours.Regular)
	assertMoney(t, "5", entry.Hours.Overtime)
	assertMoney(t, "800", entry.Pay.Regular)
	assertMoney(t, "150", entry.Pay.Overtime)
}

func TestCalculate_PayUsesUnroundedHours(t *testing.T) {
	period := weeklyPeriod(t)
	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee: hourlyEmployee("30"),
		TimeEntries: []payroll.TimeEntry{{
			ID:           "te-1",
			EmployeeID:   "emp-1",
			ClockIn:      period.StartDate.AddDate(0, 0, 1).Add(9 * time.Hour),
			TotalMinutes: 20,
			Type:         payroll.TimeEntryClock,
		}},
		Period:   period,
		Settings: payroll.DefaultSettings("company-1"),
	})
	require.NoError(t, err)
	assertMoney(t, "0.33", entry.Hours.Regular)
	assertMoney(t, "10", entry.Pay.Regular)
	assertMoney(t, "10", entry.GrossPay)
}

func TestCalculate_ZeroHoursHourly(t *testing.T) {
	settings := payroll.DefaultSettings("company-1")
	settings.HealthInsuranceAmount = dec("75")
	settings.DefaultRetirementPercent = dec("5")

	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee: hourlyEmployee("30"),
		Period:   weeklyPeriod(t),
		Settings: settings,
	})
	require.NoError(t, err)

	assert.True(t, entry.GrossPay.IsZero())
	assert.True(t, entry.TotalDeductions.IsZero())
	assert.True(t, entry.NetPay.IsZero())
	assert.Empty(t, entry.TimeEntryIDs)
}

func TestCalculate_SalariedEmployee(t *testing.T) {
	period, err := GeneratePayPeriod(payroll.ScheduleBiWeekly, date(2024, 6, 19))
	require.NoError(t, err)

	emp := hourlyEmployee("0")
	emp.EmploymentType = payroll.EmploymentSalaried
	emp.Salary = dec("52000")

	t.Run("paid the period share regardless of hours", func(t *testing.T) {
		entry, err := newTestCalculator().Calculate(EntryInput{Employee: emp, Period: period, Settings: payroll.DefaultSettings("c")})
		require.NoError(t, err)
		assertMoney(t, "2000", entry.Pay.Regular)
		assertMoney(t, "2000", entry.GrossPay)
	})

	t.Run("overtime uses salary over 2080 hours", func(t *testing.T) {
		entry, err := newTestCalculator().Calculate(EntryInput{
			Employee:    emp,
			TimeEntries: workDays("emp-1", date(2024, 6, 10), 9, 9, 9, 9, 9),
			Period:      period,
			Settings:    payroll.DefaultSettings("c"),
		})
		require.NoError(t, err)
		// 52000 / 2080 = 25; 5 hours * 25 * 1.5
		assertMoney(t, "187.50", entry.Pay.Overtime)
		assertMoney(t, "2187.50", entry.GrossPay)
	})
}

func TestCalculate_RateOverridesAndTimeOff(t *testing.T) {
	period := weeklyPeriod(t)
	emp := hourlyEmployee("25")
	emp.OvertimeRate = dec("40")

	settings := payroll.DefaultSettings("company-1")
	settings.DefaultRetirementPercent = dec("4")
	settings.HealthInsuranceAmount = dec("50")

	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee:    emp,
		TimeEntries: workDays("emp-1", period.StartDate.AddDate(0, 0, 1), 9, 9, 9, 9, 9),
		Period:      period,
		Settings:    settings,
		TimeOff:     payroll.TimeOffHours{PTO: dec("8"), Holiday: dec("8")},
	})
	require.NoError(t, err)

	assertMoney(t, "200", entry.Pay.Overtime)
	assertMoney(t, "200", entry.Pay.PTO)
	assertMoney(t, "300", entry.Pay.Holiday)
	assertMoney(t, "1700", entry.GrossPay)
	assertMoney(t, "68", entry.Deductions.Retirement401k)
	assertMoney(t, "50", entry.Deductions.HealthInsurance)
	assertNetPayIdentity(t, entry)
}

func TestCalculate_UsesPriorYTD(t *testing.T) {
	table := DefaultTaxTables().ForYear(2024)
	period := weeklyPeriod(t)

	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee:    hourlyEmployee("25"),
		TimeEntries: workDays("emp-1", period.StartDate.AddDate(0, 0, 1), 8, 8, 8, 8, 8),
		Period:      period,
		Settings:    payroll.DefaultSettings("company-1"),
		PriorYTD:    payroll.YTDTotals{Gross: table.SocialSecurityWageBase},
	})
	require.NoError(t, err)

	assert.True(t, entry.Taxes.SocialSecurity.IsZero())
	assert.True(t, entry.YTD.Gross.Equal(table.SocialSecurityWageBase.Add(dec("1000"))))
}

func TestCalculate_IgnoresOtherEmployees(t *testing.T) {
	period := weeklyPeriod(t)
	entries := append(
		workDays("emp-1", period.StartDate.AddDate(0, 0, 1), 8),
		workDays("emp-2", period.StartDate.AddDate(0, 0, 1), 8, 8)...,
	)

	entry, err := newTestCalculator().Calculate(EntryInput{
		Employee:    hourlyEmployee("10"),
		TimeEntries: entries,
		Period:      period,
		Settings:    payroll.DefaultSettings("company-1"),
	})
	require.NoError(t, err)
	assertMoney(t, "8", entry.Hours.Regular)
	assert.Equal(t, []string{"emp-1-te-0"}, entry.TimeEntryIDs)
}

func TestCalculate_RejectsInvalidInput(t *testing.T) {
	period := weeklyPeriod(t)
	settings := payroll.DefaultSettings("company-1")

	negativeRate := hourlyEmployee("-1")
	badStatus := hourlyEmployee("20")
	badStatus.Withholding.FilingStatus = "head_of_household"
	badSettings := settings
	badSettings.StateCode = "Texas"

	cases := map[string]EntryInput{
		"negative rate":      {Employee: negativeRate, Period: period, Settings: settings},
		"unknown filing":     {Employee: badStatus, Period: period, Settings: settings},
		"malformed state":    {Employee: hourlyEmployee("20"), Period: period, Settings: badSettings},
		"negative minutes":   {Employee: hourlyEmployee("20"), Period: period, Settings: settings, TimeEntries: []payroll.TimeEntry{{ID: "x", EmployeeID: "emp-1", ClockIn: period.StartDate, TotalMinutes: -30}}},
		"negative time off":  {Employee: hourlyEmployee("20"), Period: period, Settings: settings, TimeOff: payroll.TimeOffHours{Sick: dec("-2")}},
		"unknown employment": {Employee: payroll.Employee{ID: "emp-1", EmploymentType: "contractor", Withholding: payroll.WithholdingProfile{FilingStatus: payroll.FilingSingle}}, Period: period, Settings: settings},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestCalculator().Calculate(in)
			require.Error(t, err)
			var verrs validator.ValidationErrors
			assert.True(t, errors.As(err, &verrs), "expected validation errors, got %T", err)
		})
	}
}

func TestValidateSettings_DoubleTimeThreshold(t *testing.T) {
	s := payroll.DefaultSettings("company-1")
	s.DoubleTimeThreshold = dec("6")
	assert.Error(t, ValidateSettings(s))

	s.DoubleTimeThreshold = decimal.Zero
	assert.NoError(t, ValidateSettings(s))
}
