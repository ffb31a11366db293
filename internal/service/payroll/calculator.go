package payroll

import (
	"context"
	"sort"
	"time"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	minutesPerHour      = decimal.NewFromInt(60)
	holidayMultiplier   = decimal.NewFromFloat(1.5)
	salariedHoursInYear = decimal.NewFromInt(2080)
)

// EntryInput is everything needed to compute one employee's entry for one period.
type EntryInput struct {
	Employee    payroll.Employee
	TimeEntries []payroll.TimeEntry
	Period      payroll.PayPeriod
	Settings    payroll.PayrollSettings
	PriorYTD    payroll.YTDTotals
	TimeOff     payroll.TimeOffHours
}

type EntryCalculator struct {
	taxes *TaxTableSet
	newID func() string
}

// NewEntryCalculator builds a calculator. A nil newID generates UUIDv7 identifiers.
func NewEntryCalculator(taxes *TaxTableSet, newID func() string) *EntryCalculator {
	if newID == nil {
		newID = NewID
	}
	return &EntryCalculator{taxes: taxes, newID: newID}
}

// NewID returns a time-ordered unique identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Calculate produces the payroll entry for in.Employee over in.Period.
func (c *EntryCalculator) Calculate(in EntryInput) (payroll.PayrollEntry, error) {
	if err := ValidateEmployee(in.Employee); err != nil {
		return payroll.PayrollEntry{}, err
	}
	if err := ValidateSettings(in.Settings); err != nil {
		return payroll.PayrollEntry{}, err
	}
	if err := validateTimeOff(in.TimeOff); err != nil {
		return payroll.PayrollEntry{}, err
	}

	var own []payroll.TimeEntry
	for _, te := range in.TimeEntries {
		if te.EmployeeID != in.Employee.ID {
			continue
		}
		if err := ValidateTimeEntry(te); err != nil {
			return payroll.PayrollEntry{}, err
		}
		own = append(own, te)
	}

	loc := in.Period.StartDate.Location()
	days := dailyHours(own, loc)

	var hours payroll.HoursBreakdown
	if in.Settings.EnableDailyOvertime {
		hours = classifyDaily(days, in.Settings)
	} else {
		hours = classifyWeekly(days, in.Settings)
	}
	hours.PTO = in.TimeOff.PTO
	hours.Sick = in.TimeOff.Sick
	hours.Holiday = in.TimeOff.Holiday

	pay := computePay(in.Employee, hours, in.Settings, in.Period.ScheduleType)
	gross := paySum(pay)
	hours = roundHours(hours)

	table := c.taxes.ForYear(in.Period.PayDate.Year())
	breakdown := table.CalculateTaxes(TaxInput{
		GrossPay:       gross,
		ScheduleType:   in.Period.ScheduleType,
		Withholding:    in.Employee.Withholding,
		StateCode:      in.Settings.StateCode,
		YTDGrossBefore: in.PriorYTD.Gross,
	})
	taxes := payroll.TaxWithholding{
		Federal:        breakdown.Federal,
		State:          breakdown.State,
		SocialSecurity: breakdown.SocialSecurity,
		Medicare:       breakdown.Medicare,
		Local:          decimal.Zero,
	}

	// Fixed deductions are only taken from a non-zero paycheck.
	var deductions payroll.OtherDeductions
	if gross.IsPositive() {
		deductions.Retirement401k = gross.Mul(in.Settings.DefaultRetirementPercent).Div(hundred).Round(2)
		deductions.HealthInsurance = in.Settings.HealthInsuranceAmount.Round(2)
	}

	ids := make([]string, 0, len(own))
	for _, te := range own {
		ids = append(ids, te.ID)
	}

	entry := payroll.PayrollEntry{
		ID:             c.newID(),
		EmployeeID:     in.Employee.ID,
		EmployeeName:   in.Employee.Name,
		EmploymentType: in.Employee.EmploymentType,
		Hours:          hours,
		Pay:            pay,
		GrossPay:       gross,
		Taxes:          taxes,
		Deductions:     deductions,
		TimeEntryIDs:   ids,
		Adjustments:    []payroll.PayrollAdjustment{},
		PriorYTD:       in.PriorYTD,
		Withholding:    in.Employee.Withholding,
		StateCode:      in.Settings.StateCode,

		RetirementPercent: in.Settings.DefaultRetirementPercent,
	}
	refreshEntry(&entry)
	return entry, nil
}

// refreshEntry recomputes the derived money fields of an entry from its components.
func refreshEntry(e *payroll.PayrollEntry) {
	e.TotalDeductions = e.Taxes.Total().Add(e.Deductions.Total())
	e.NetPay = e.GrossPay.Sub(e.TotalDeductions)
	e.YTD = e.PriorYTD.Add(e.PeriodYTD())
}

type workDay struct {
	date  time.Time
	hours decimal.Decimal
}

// dailyHours sums minutes per local calendar date of clock-in, ascending by date.
func dailyHours(entries []payroll.TimeEntry, loc *time.Location) []workDay {
	minutes := make(map[time.Time]int)
	for _, te := range entries {
		y, m, d := te.ClockIn.In(loc).Date()
		minutes[time.Date(y, m, d, 0, 0, 0, 0, loc)] += te.TotalMinutes
	}

	days := make([]workDay, 0, len(minutes))
	for date, total := range minutes {
		days = append(days, workDay{
			date:  date,
			hours: decimal.NewFromInt(int64(total)).Div(minutesPerHour),
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

func classifyDaily(days []workDay, s payroll.PayrollSettings) payroll.HoursBreakdown {
	var hb payroll.HoursBreakdown
	for _, day := range days {
		h := day.hours
		if s.DoubleTimeThreshold.IsPositive() && h.GreaterThan(s.DoubleTimeThreshold) {
			hb.DoubleTime = hb.DoubleTime.Add(h.Sub(s.DoubleTimeThreshold))
			h = s.DoubleTimeThreshold
		}
		if h.GreaterThan(s.DailyOvertimeThreshold) {
			hb.Overtime = hb.Overtime.Add(h.Sub(s.DailyOvertimeThreshold))
			h = s.DailyOvertimeThreshold
		}
		hb.Regular = hb.Regular.Add(h)
	}
	return hb
}

// classifyWeekly sums every day of the period and applies the weekly threshold once.
func classifyWeekly(days []workDay, s payroll.PayrollSettings) payroll.HoursBreakdown {
	total := decimal.Zero
	for _, day := range days {
		total = total.Add(day.hours)
	}

	var hb payroll.HoursBreakdown
	if total.GreaterThan(s.WeeklyOvertimeThreshold) {
		hb.Overtime = total.Sub(s.WeeklyOvertimeThreshold)
		total = s.WeeklyOvertimeThreshold
	}
	hb.Regular = total
	return hb
}

func roundHours(h payroll.HoursBreakdown) payroll.HoursBreakdown {
	return payroll.HoursBreakdown{
		Regular:    h.Regular.Round(2),
		Overtime:   h.Overtime.Round(2),
		DoubleTime: h.DoubleTime.Round(2),
		PTO:        h.PTO.Round(2),
		Sick:       h.Sick.Round(2),
		Holiday:    h.Holiday.Round(2),
	}
}

// hourlyRate is the straight-time rate used for overtime and paid leave.
func hourlyRate(e payroll.Employee) decimal.Decimal {
	if e.EmploymentType == payroll.EmploymentSalaried && !e.HourlyRate.IsPositive() {
		return e.Salary.Div(salariedHoursInYear)
	}
	return e.HourlyRate
}

func computePay(e payroll.Employee, h payroll.HoursBreakdown, s payroll.PayrollSettings, schedule payroll.ScheduleType) payroll.PayBreakdown {
	rate := hourlyRate(e)

	overtimeRate := rate.Mul(s.OvertimeMultiplier)
	if e.OvertimeRate.IsPositive() {
		overtimeRate = e.OvertimeRate
	}
	doubleTimeRate := rate.Mul(s.DoubleTimeMultiplier)
	if e.DoubleTimeRate.IsPositive() {
		doubleTimeRate = e.DoubleTimeRate
	}

	regular := h.Regular.Mul(rate)
	if e.EmploymentType == payroll.EmploymentSalaried {
		regular = e.Salary.Div(decimal.NewFromInt(int64(PeriodsPerYear(schedule))))
	}

	return payroll.PayBreakdown{
		Regular:        regular.Round(2),
		Overtime:       h.Overtime.Mul(overtimeRate).Round(2),
		DoubleTime:     h.DoubleTime.Mul(doubleTimeRate).Round(2),
		PTO:            h.PTO.Mul(rate).Round(2),
		Sick:           h.Sick.Mul(rate).Round(2),
		Holiday:        h.Holiday.Mul(rate).Mul(holidayMultiplier).Round(2),
		Bonuses:        decimal.Zero,
		Commissions:    decimal.Zero,
		Reimbursements: decimal.Zero,
	}
}

// ========== PRECONDITIONS ==========

func ValidateEmployee(e payroll.Employee) error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(e.ID) {
		errs.Add("employee_id", "is required")
	}
	switch e.EmploymentType {
	case payroll.EmploymentHourly, payroll.EmploymentSalaried:
	default:
		errs.Add("employment_type", "must be hourly or salaried")
	}
	if !validator.NonNegative(e.HourlyRate) {
		errs.Add("hourly_rate", "must be non-negative")
	}
	if !validator.NonNegative(e.Salary) {
		errs.Add("salary", "must be non-negative")
	}
	if !validator.NonNegative(e.OvertimeRate) {
		errs.Add("overtime_rate", "must be non-negative")
	}
	if !validator.NonNegative(e.DoubleTimeRate) {
		errs.Add("double_time_rate", "must be non-negative")
	}
	if !e.Withholding.FilingStatus.IsValid() {
		errs.Add("filing_status", "must be single or married_filing_jointly")
	}
	if e.Withholding.Allowances < 0 {
		errs.Add("allowances", "must be non-negative")
	}
	if !validator.NonNegative(e.Withholding.AdditionalWithholding) {
		errs.Add("additional_withholding", "must be non-negative")
	}
	return errs.Err()
}

func ValidateTimeEntry(te payroll.TimeEntry) error {
	var errs validator.ValidationErrors
	if te.TotalMinutes < 0 {
		errs.Add("total_minutes", "must be non-negative")
	}
	if te.ClockIn.IsZero() {
		errs.Add("clock_in", "is required")
	}
	return errs.Err()
}

func ValidateSettings(s payroll.PayrollSettings) error {
	var errs validator.ValidationErrors
	one := decimal.NewFromInt(1)
	if s.OvertimeMultiplier.LessThan(one) {
		errs.Add("overtime_multiplier", "must be at least 1")
	}
	if s.DoubleTimeMultiplier.LessThan(one) {
		errs.Add("double_time_multiplier", "must be at least 1")
	}
	if !s.DailyOvertimeThreshold.IsPositive() {
		errs.Add("daily_overtime_threshold", "must be positive")
	}
	if !s.WeeklyOvertimeThreshold.IsPositive() {
		errs.Add("weekly_overtime_threshold", "must be positive")
	}
	if s.DoubleTimeThreshold.IsNegative() {
		errs.Add("double_time_threshold", "must be non-negative")
	} else if s.DoubleTimeThreshold.IsPositive() && !s.DoubleTimeThreshold.GreaterThan(s.DailyOvertimeThreshold) {
		errs.Add("double_time_threshold", "must exceed the daily overtime threshold")
	}
	if s.DefaultRetirementPercent.IsNegative() || s.DefaultRetirementPercent.GreaterThan(hundred) {
		errs.Add("default_retirement_percent", "must be between 0 and 100")
	}
	if !validator.NonNegative(s.HealthInsuranceAmount) {
		errs.Add("health_insurance_amount", "must be non-negative")
	}
	if !validator.IsValidStateCode(s.StateCode) {
		errs.Add("state_code", "must be a two-letter code")
	}
	return errs.Err()
}

func validateTimeOff(t payroll.TimeOffHours) error {
	var errs validator.ValidationErrors
	if t.PTO.IsNegative() {
		errs.Add("pto_hours", "must be non-negative")
	}
	if t.Sick.IsNegative() {
		errs.Add("sick_hours", "must be non-negative")
	}
	if t.Holiday.IsNegative() {
		errs.Add("holiday_hours", "must be non-negative")
	}
	return errs.Err()
}

// NoTimeOff reports zero paid time off for every employee.
type NoTimeOff struct{}

func (NoTimeOff) TimeOffHours(ctx context.Context, companyID, employeeID string, period payroll.PayPeriod) (payroll.TimeOffHours, error) {
	return payroll.TimeOffHours{}, nil
}
