package payroll

import (
	"time"

	"github.com/buildcrew/payroll-service/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== SETTINGS DTOs ==========

type PayrollSettingsResponse struct {
	ID                           string          `json:"id,omitempty"`
	CompanyID                    string          `json:"company_id"`
	DefaultScheduleType          string          `json:"default_schedule_type"`
	OvertimeMultiplier           decimal.Decimal `json:"overtime_multiplier"`
	DoubleTimeMultiplier         decimal.Decimal `json:"double_time_multiplier"`
	EnableDailyOvertime          bool            `json:"enable_daily_overtime"`
	DailyOvertimeThreshold       decimal.Decimal `json:"daily_overtime_threshold"`
	DoubleTimeThreshold          decimal.Decimal `json:"double_time_threshold"`
	WeeklyOvertimeThreshold      decimal.Decimal `json:"weekly_overtime_threshold"`
	DefaultRetirementPercent     decimal.Decimal `json:"default_retirement_percent"`
	HealthInsuranceAmount        decimal.Decimal `json:"health_insurance_amount"`
	StateCode                    string          `json:"state_code"`
	RecalculateTaxesOnAdjustment bool            `json:"recalculate_taxes_on_adjustment"`
}

type UpdatePayrollSettingsRequest struct {
	DefaultScheduleType          *string          `json:"default_schedule_type,omitempty"`
	OvertimeMultiplier           *decimal.Decimal `json:"overtime_multiplier,omitempty"`
	DoubleTimeMultiplier         *decimal.Decimal `json:"double_time_multiplier,omitempty"`
	EnableDailyOvertime          *bool            `json:"enable_daily_overtime,omitempty"`
	DailyOvertimeThreshold       *decimal.Decimal `json:"daily_overtime_threshold,omitempty"`
	DoubleTimeThreshold          *decimal.Decimal `json:"double_time_threshold,omitempty"`
	WeeklyOvertimeThreshold      *decimal.Decimal `json:"weekly_overtime_threshold,omitempty"`
	DefaultRetirementPercent     *decimal.Decimal `json:"default_retirement_percent,omitempty"`
	HealthInsuranceAmount        *decimal.Decimal `json:"health_insurance_amount,omitempty"`
	StateCode                    *string          `json:"state_code,omitempty"`
	RecalculateTaxesOnAdjustment *bool            `json:"recalculate_taxes_on_adjustment,omitempty"`
}

func (r *UpdatePayrollSettingsRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.DefaultScheduleType != nil && !ScheduleType(*r.DefaultScheduleType).IsValid() {
		errs.Add("default_schedule_type", "must be weekly, bi-weekly, semi-monthly or monthly")
	}
	if r.OvertimeMultiplier != nil && r.OvertimeMultiplier.LessThan(decimal.NewFromInt(1)) {
		errs.Add("overtime_multiplier", "must be at least 1")
	}
	if r.DoubleTimeMultiplier != nil && r.DoubleTimeMultiplier.LessThan(decimal.NewFromInt(1)) {
		errs.Add("double_time_multiplier", "must be at least 1")
	}
	if r.DailyOvertimeThreshold != nil && !r.DailyOvertimeThreshold.IsPositive() {
		errs.Add("daily_overtime_threshold", "must be positive")
	}
	if r.DoubleTimeThreshold != nil && r.DoubleTimeThreshold.IsNegative() {
		errs.Add("double_time_threshold", "must be non-negative")
	}
	if r.WeeklyOvertimeThreshold != nil && !r.WeeklyOvertimeThreshold.IsPositive() {
		errs.Add("weekly_overtime_threshold", "must be positive")
	}
	if r.DefaultRetirementPercent != nil &&
		(r.DefaultRetirementPercent.IsNegative() || r.DefaultRetirementPercent.GreaterThan(decimal.NewFromInt(100))) {
		errs.Add("default_retirement_percent", "must be between 0 and 100")
	}
	if r.HealthInsuranceAmount != nil && r.HealthInsuranceAmount.IsNegative() {
		errs.Add("health_insurance_amount", "must be non-negative")
	}
	if r.StateCode != nil && !validator.IsValidStateCode(*r.StateCode) {
		errs.Add("state_code", "must be a two-letter uppercase state code")
	}

	return errs.Err()
}

// ========== CALCULATOR DTOs ==========

type PreviewPayPeriodRequest struct {
	ScheduleType  string  `json:"schedule_type"`
	ReferenceDate *string `json:"reference_date,omitempty"` // YYYY-MM-DD, defaults to today
}

func (r *PreviewPayPeriodRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.ScheduleType != "" && !ScheduleType(r.ScheduleType).IsValid() {
		errs.Add("schedule_type", "must be weekly, bi-weekly, semi-monthly or monthly")
	}
	if r.ReferenceDate != nil {
		if _, ok := validator.IsValidDate(*r.ReferenceDate); !ok {
			errs.Add("reference_date", "must be in YYYY-MM-DD format")
		}
	}

	return errs.Err()
}

type TaxPreviewRequest struct {
	GrossPay              decimal.Decimal `json:"gross_pay"`
	ScheduleType          string          `json:"schedule_type"`
	FilingStatus          string          `json:"filing_status"`
	Allowances            int             `json:"allowances"`
	AdditionalWithholding decimal.Decimal `json:"additional_withholding"`
	Exempt                bool            `json:"exempt"`
	StateCode             string          `json:"state_code"`
	YTDGrossBefore        decimal.Decimal `json:"ytd_gross_before"`
	TaxYear               int             `json:"tax_year,omitempty"`
}

func (r *TaxPreviewRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.GrossPay.IsNegative() {
		errs.Add("gross_pay", "must be non-negative")
	}
	if !ScheduleType(r.ScheduleType).IsValid() {
		errs.Add("schedule_type", "must be weekly, bi-weekly, semi-monthly or monthly")
	}
	if !FilingStatus(r.FilingStatus).IsValid() {
		errs.Add("filing_status", "must be 'single' or 'married_filing_jointly'")
	}
	if r.Allowances < 0 {
		errs.Add("allowances", "must be non-negative")
	}
	if r.AdditionalWithholding.IsNegative() {
		errs.Add("additional_withholding", "must be non-negative")
	}
	if r.StateCode != "" && !validator.IsValidStateCode(r.StateCode) {
		errs.Add("state_code", "must be a two-letter uppercase state code")
	}
	if r.YTDGrossBefore.IsNegative() {
		errs.Add("ytd_gross_before", "must be non-negative")
	}

	return errs.Err()
}

type TaxPreviewResponse struct {
	TaxBreakdown
	TaxYear int `json:"tax_year"`
}

// ========== RUN DTOs ==========

type GeneratePayrollRunRequest struct {
	ScheduleType  string   `json:"schedule_type,omitempty"`  // Empty = settings default
	ReferenceDate *string  `json:"reference_date,omitempty"` // YYYY-MM-DD, defaults to today
	EmployeeIDs   []string `json:"employee_ids,omitempty"`   // Empty = all active employees
}

func (r *GeneratePayrollRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.ScheduleType != "" && !ScheduleType(r.ScheduleType).IsValid() {
		errs.Add("schedule_type", "must be weekly, bi-weekly, semi-monthly or monthly")
	}
	if r.ReferenceDate != nil {
		if _, ok := validator.IsValidDate(*r.ReferenceDate); !ok {
			errs.Add("reference_date", "must be in YYYY-MM-DD format")
		}
	}
	for _, id := range r.EmployeeIDs {
		if validator.IsEmpty(id) {
			errs.Add("employee_ids", "must not contain empty ids")
			break
		}
	}

	return errs.Err()
}

type RunFilter struct {
	Year   *int    `json:"year,omitempty"`
	Status *string `json:"status,omitempty"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

type UpdatePayrollEntryRequest struct {
	RunID   string `json:"-"`
	EntryID string `json:"-"`

	RegularHours    *decimal.Decimal `json:"regular_hours,omitempty"`
	OvertimeHours   *decimal.Decimal `json:"overtime_hours,omitempty"`
	DoubleTimeHours *decimal.Decimal `json:"double_time_hours,omitempty"`
	PTOHours        *decimal.Decimal `json:"pto_hours,omitempty"`
	SickHours       *decimal.Decimal `json:"sick_hours,omitempty"`
	HolidayHours    *decimal.Decimal `json:"holiday_hours,omitempty"`

	RegularPay     *decimal.Decimal `json:"regular_pay,omitempty"`
	OvertimePay    *decimal.Decimal `json:"overtime_pay,omitempty"`
	DoubleTimePay  *decimal.Decimal `json:"double_time_pay,omitempty"`
	PTOPay         *decimal.Decimal `json:"pto_pay,omitempty"`
	SickPay        *decimal.Decimal `json:"sick_pay,omitempty"`
	HolidayPay     *decimal.Decimal `json:"holiday_pay,omitempty"`
	Bonuses        *decimal.Decimal `json:"bonuses,omitempty"`
	Commissions    *decimal.Decimal `json:"commissions,omitempty"`
	Reimbursements *decimal.Decimal `json:"reimbursements,omitempty"`
	GrossPay       *decimal.Decimal `json:"gross_pay,omitempty"`

	FederalWithholding *decimal.Decimal `json:"federal_withholding,omitempty"`
	StateWithholding   *decimal.Decimal `json:"state_withholding,omitempty"`
	SocialSecurity     *decimal.Decimal `json:"social_security,omitempty"`
	Medicare           *decimal.Decimal `json:"medicare,omitempty"`
	LocalTax           *decimal.Decimal `json:"local_tax,omitempty"`

	Retirement401k  *decimal.Decimal `json:"retirement_401k,omitempty"`
	HealthInsurance *decimal.Decimal `json:"health_insurance,omitempty"`
	OtherDeductions *decimal.Decimal `json:"other_deductions,omitempty"`
}

func (r *UpdatePayrollEntryRequest) Validate() error {
	var errs validator.ValidationErrors

	fields := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"regular_hours", r.RegularHours},
		{"overtime_hours", r.OvertimeHours},
		{"double_time_hours", r.DoubleTimeHours},
		{"pto_hours", r.PTOHours},
		{"sick_hours", r.SickHours},
		{"holiday_hours", r.HolidayHours},
		{"regular_pay", r.RegularPay},
		{"overtime_pay", r.OvertimePay},
		{"double_time_pay", r.DoubleTimePay},
		{"pto_pay", r.PTOPay},
		{"sick_pay", r.SickPay},
		{"holiday_pay", r.HolidayPay},
		{"bonuses", r.Bonuses},
		{"commissions", r.Commissions},
		{"reimbursements", r.Reimbursements},
		{"gross_pay", r.GrossPay},
		{"federal_withholding", r.FederalWithholding},
		{"state_withholding", r.StateWithholding},
		{"social_security", r.SocialSecurity},
		{"medicare", r.Medicare},
		{"local_tax", r.LocalTax},
		{"retirement_401k", r.Retirement401k},
		{"health_insurance", r.HealthInsurance},
		{"other_deductions", r.OtherDeductions},
	}
	for _, f := range fields {
		if f.value != nil && f.value.IsNegative() {
			errs.Add(f.name, "must be non-negative")
		}
	}

	return errs.Err()
}

type AddPayrollAdjustmentRequest struct {
	RunID       string          `json:"-"`
	EntryID     string          `json:"-"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Taxable     bool            `json:"taxable"`
}

func (r *AddPayrollAdjustmentRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Description) {
		errs.Add("description", "is required")
	}
	if r.Amount.IsZero() {
		errs.Add("amount", "must not be zero")
	}

	return errs.Err()
}

type PayrollRunResponse struct {
	ID            string         `json:"id"`
	CompanyID     string         `json:"company_id"`
	RunNumber     int            `json:"run_number"`
	Period        PayPeriod      `json:"period"`
	Status        string         `json:"status"`
	Entries       []PayrollEntry `json:"entries"`
	EmployeeCount int            `json:"employee_count"`
	Totals        RunTotals      `json:"totals"`
	Exported      bool           `json:"exported"`
	ExportedAt    *string        `json:"exported_at,omitempty"`
	ExportedBy    *string        `json:"exported_by,omitempty"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     string         `json:"created_at"`
	ApprovedBy    *string        `json:"approved_by,omitempty"`
	ApprovedAt    *string        `json:"approved_at,omitempty"`
	ProcessedBy   *string        `json:"processed_by,omitempty"`
	ProcessedAt   *string        `json:"processed_at,omitempty"`
}

type ListPayrollRunResponse struct {
	Data       []PayrollRunResponse `json:"data"`
	TotalCount int64                `json:"total_count"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
}

type EmployeeYTDResponse struct {
	EmployeeID string    `json:"employee_id"`
	Year       int       `json:"year"`
	RunCount   int       `json:"run_count"`
	Totals     YTDTotals `json:"totals"`
}

// ========== EXPORT DTOs ==========

// ExportFormat enum
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewRunResponse maps a run to its API representation.
func NewRunResponse(r PayrollRun) PayrollRunResponse {
	entries := r.Entries
	if entries == nil {
		entries = []PayrollEntry{}
	}
	return PayrollRunResponse{
		ID:            r.ID,
		CompanyID:     r.CompanyID,
		RunNumber:     r.RunNumber,
		Period:        r.Period,
		Status:        string(r.Status),
		Entries:       entries,
		EmployeeCount: r.EmployeeCount,
		Totals:        r.Totals,
		Exported:      r.Exported,
		ExportedAt:    formatTime(r.ExportedAt),
		ExportedBy:    r.ExportedBy,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		ApprovedBy:    r.ApprovedBy,
		ApprovedAt:    formatTime(r.ApprovedAt),
		ProcessedBy:   r.ProcessedBy,
		ProcessedAt:   formatTime(r.ProcessedAt),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	str := t.Format(time.RFC3339)
	return &str
}
