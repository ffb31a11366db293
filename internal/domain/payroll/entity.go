package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleType enum
type ScheduleType string

const (
	ScheduleWeekly      ScheduleType = "weekly"
	ScheduleBiWeekly    ScheduleType = "bi-weekly"
	ScheduleSemiMonthly ScheduleType = "semi-monthly"
	ScheduleMonthly     ScheduleType = "monthly"
)

func (s ScheduleType) IsValid() bool {
	switch s {
	case ScheduleWeekly, ScheduleBiWeekly, ScheduleSemiMonthly, ScheduleMonthly:
		return true
	}
	return false
}

// EmploymentType enum
type EmploymentType string

const (
	EmploymentHourly   EmploymentType = "hourly"
	EmploymentSalaried EmploymentType = "salaried"
)

// FilingStatus enum
type FilingStatus string

const (
	FilingSingle               FilingStatus = "single"
	FilingMarriedFilingJointly FilingStatus = "married_filing_jointly"
)

func (f FilingStatus) IsValid() bool {
	return f == FilingSingle || f == FilingMarriedFilingJointly
}

// TimeEntryType enum
type TimeEntryType string

const (
	TimeEntryClock    TimeEntryType = "clock"
	TimeEntryManual   TimeEntryType = "manual"
	TimeEntryImported TimeEntryType = "imported"
)

// WithholdingProfile - Employee tax withholding elections
type WithholdingProfile struct {
	FilingStatus          FilingStatus    `json:"filing_status"`
	Allowances            int             `json:"allowances"`
	AdditionalWithholding decimal.Decimal `json:"additional_withholding"`
	Exempt                bool            `json:"exempt"`
}

// Employee - Read-only profile supplied by the employee directory
type Employee struct {
	ID             string
	CompanyID      string
	Name           string
	EmploymentType EmploymentType
	HourlyRate     decimal.Decimal
	Salary         decimal.Decimal
	// Zero means "use the settings multiplier".
	OvertimeRate   decimal.Decimal
	DoubleTimeRate decimal.Decimal
	Withholding    WithholdingProfile
}

// TimeEntry - Clocked or manually entered work time
type TimeEntry struct {
	ID           string
	EmployeeID   string
	ClockIn      time.Time
	TotalMinutes int
	Type         TimeEntryType
}

// PayPeriod - Computed boundaries of one pay period
type PayPeriod struct {
	ID           string       `json:"id"`
	ScheduleType ScheduleType `json:"schedule_type"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	PayDate      time.Time    `json:"pay_date"`
	Label        string       `json:"label"`
}

// PayrollSettings - Organization payroll configuration
type PayrollSettings struct {
	ID                           string
	CompanyID                    string
	DefaultScheduleType          ScheduleType
	OvertimeMultiplier           decimal.Decimal
	DoubleTimeMultiplier         decimal.Decimal
	EnableDailyOvertime          bool
	DailyOvertimeThreshold       decimal.Decimal
	DoubleTimeThreshold          decimal.Decimal
	WeeklyOvertimeThreshold      decimal.Decimal
	DefaultRetirementPercent     decimal.Decimal
	HealthInsuranceAmount        decimal.Decimal
	StateCode                    string
	RecalculateTaxesOnAdjustment bool
	CreatedAt                    time.Time
	UpdatedAt                    time.Time
}

// DefaultSettings returns the settings used when a company has not saved any.
func DefaultSettings(companyID string) PayrollSettings {
	return PayrollSettings{
		CompanyID:                companyID,
		DefaultScheduleType:      ScheduleBiWeekly,
		OvertimeMultiplier:       decimal.NewFromFloat(1.5),
		DoubleTimeMultiplier:     decimal.NewFromInt(2),
		EnableDailyOvertime:      false,
		DailyOvertimeThreshold:   decimal.NewFromInt(8),
		DoubleTimeThreshold:      decimal.Zero,
		WeeklyOvertimeThreshold:  decimal.NewFromInt(40),
		DefaultRetirementPercent: decimal.Zero,
		HealthInsuranceAmount:    decimal.Zero,
		StateCode:                "TX",
	}
}

// TimeOffHours - Paid time-off hours for one employee in one period
type TimeOffHours struct {
	PTO     decimal.Decimal
	Sick    decimal.Decimal
	Holiday decimal.Decimal
}

type HoursBreakdown struct {
	Regular    decimal.Decimal `json:"regular"`
	Overtime   decimal.Decimal `json:"overtime"`
	DoubleTime decimal.Decimal `json:"double_time"`
	PTO        decimal.Decimal `json:"pto"`
	Sick       decimal.Decimal `json:"sick"`
	Holiday    decimal.Decimal `json:"holiday"`
}

type PayBreakdown struct {
	Regular        decimal.Decimal `json:"regular"`
	Overtime       decimal.Decimal `json:"overtime"`
	DoubleTime     decimal.Decimal `json:"double_time"`
	PTO            decimal.Decimal `json:"pto"`
	Sick           decimal.Decimal `json:"sick"`
	Holiday        decimal.Decimal `json:"holiday"`
	Bonuses        decimal.Decimal `json:"bonuses"`
	Commissions    decimal.Decimal `json:"commissions"`
	Reimbursements decimal.Decimal `json:"reimbursements"`
}

type TaxWithholding struct {
	Federal        decimal.Decimal `json:"federal"`
	State          decimal.Decimal `json:"state"`
	SocialSecurity decimal.Decimal `json:"social_security"`
	Medicare       decimal.Decimal `json:"medicare"`
	Local          decimal.Decimal `json:"local"`
}

// Total sums every withholding component.
func (t TaxWithholding) Total() decimal.Decimal {
	return t.Federal.Add(t.State).Add(t.SocialSecurity).Add(t.Medicare).Add(t.Local)
}

type OtherDeductions struct {
	Retirement401k  decimal.Decimal `json:"retirement_401k"`
	HealthInsurance decimal.Decimal `json:"health_insurance"`
	Other           decimal.Decimal `json:"other"`
}

func (d OtherDeductions) Total() decimal.Decimal {
	return d.Retirement401k.Add(d.HealthInsurance).Add(d.Other)
}

// YTDTotals - Year-to-date figures for one employee
type YTDTotals struct {
	Gross          decimal.Decimal `json:"gross"`
	Federal        decimal.Decimal `json:"federal"`
	State          decimal.Decimal `json:"state"`
	SocialSecurity decimal.Decimal `json:"social_security"`
	Medicare       decimal.Decimal `json:"medicare"`
}

func (y YTDTotals) Add(o YTDTotals) YTDTotals {
	return YTDTotals{
		Gross:          y.Gross.Add(o.Gross),
		Federal:        y.Federal.Add(o.Federal),
		State:          y.State.Add(o.State),
		SocialSecurity: y.SocialSecurity.Add(o.SocialSecurity),
		Medicare:       y.Medicare.Add(o.Medicare),
	}
}

// PayrollAdjustment - Post-calculation change to an entry
type PayrollAdjustment struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Taxable     bool            `json:"taxable"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PayrollEntry - One employee's result within a run
type PayrollEntry struct {
	ID                 string              `json:"id"`
	EmployeeID         string              `json:"employee_id"`
	EmployeeName       string              `json:"employee_name"`
	EmploymentType     EmploymentType      `json:"employment_type"`
	Hours              HoursBreakdown      `json:"hours"`
	Pay                PayBreakdown        `json:"pay"`
	GrossPay           decimal.Decimal     `json:"gross_pay"`
	Taxes              TaxWithholding      `json:"taxes"`
	Deductions         OtherDeductions     `json:"deductions"`
	TotalDeductions    decimal.Decimal     `json:"total_deductions"`
	NetPay             decimal.Decimal     `json:"net_pay"`
	TimeEntryIDs       []string            `json:"time_entry_ids"`
	Adjustments        []PayrollAdjustment `json:"adjustments"`
	PriorYTD           YTDTotals           `json:"prior_ytd"`
	YTD                YTDTotals           `json:"ytd"`
	Withholding        WithholdingProfile  `json:"withholding"`
	StateCode          string              `json:"state_code"`
	RetirementPercent  decimal.Decimal     `json:"retirement_percent"`
	HasManualOverrides bool                `json:"has_manual_overrides"`
}

// PeriodYTD returns this entry's own contribution to year-to-date totals.
func (e PayrollEntry) PeriodYTD() YTDTotals {
	return YTDTotals{
		Gross:          e.GrossPay,
		Federal:        e.Taxes.Federal,
		State:          e.Taxes.State,
		SocialSecurity: e.Taxes.SocialSecurity,
		Medicare:       e.Taxes.Medicare,
	}
}

// RunTotals - Aggregates derived from a run's entries
type RunTotals struct {
	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	GrossPay      decimal.Decimal `json:"gross_pay"`
	Deductions    decimal.Decimal `json:"deductions"`
	NetPay        decimal.Decimal `json:"net_pay"`
}

// PayrollRun - A batch of entries for one pay period
type PayrollRun struct {
	ID            string
	CompanyID     string
	RunNumber     int
	Period        PayPeriod
	Status        RunStatus
	Entries       []PayrollEntry
	EmployeeCount int
	Totals        RunTotals
	Exported      bool
	ExportedAt    *time.Time
	ExportedBy    *string
	CreatedBy     string
	CreatedAt     time.Time
	ApprovedBy    *string
	ApprovedAt    *time.Time
	ProcessedBy   *string
	ProcessedAt   *time.Time
	UpdatedAt     time.Time
}

// EntryByID returns the index of the entry with the given id, or -1.
func (r *PayrollRun) EntryByID(entryID string) int {
	for i := range r.Entries {
		if r.Entries[i].ID == entryID {
			return i
		}
	}
	return -1
}

// RunStamp - The fields needed to number a new run
type RunStamp struct {
	RunNumber int
	CreatedAt time.Time
}

// TaxBreakdown - Withholding computed for one period's gross pay
type TaxBreakdown struct {
	GrossPay       decimal.Decimal `json:"gross_pay"`
	Federal        decimal.Decimal `json:"federal"`
	State          decimal.Decimal `json:"state"`
	SocialSecurity decimal.Decimal `json:"social_security"`
	Medicare       decimal.Decimal `json:"medicare"`
	TotalTax       decimal.Decimal `json:"total_tax"`
	EffectiveRate  decimal.Decimal `json:"effective_rate"`
}
