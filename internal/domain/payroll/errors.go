package payroll

import "errors"

var (
	ErrPayrollSettingsNotFound = errors.New("payroll settings not found")
	ErrPayrollRunNotFound      = errors.New("payroll run not found")
	ErrPayrollEntryNotFound    = errors.New("payroll entry not found")
	ErrEmployeeNotFound        = errors.New("employee not found")
	ErrNoEmployeesForRun       = errors.New("no employees to include in payroll run")
	ErrCanOnlyDeleteDraft      = errors.New("Can only delete draft payroll runs")
	ErrInvalidStatusTransition = errors.New("invalid payroll run status transition")
	ErrRunNotEditable          = errors.New("only draft payroll runs can have entries edited")
	ErrRunCompleted            = errors.New("completed payroll runs cannot be adjusted")
	ErrInvalidScheduleType     = errors.New("invalid pay schedule type")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrTaxTableNotFound        = errors.New("no tax table configured")
	ErrInvalidTaxTable         = errors.New("invalid tax table")
	ErrCompanyIDRequired       = errors.New("company_id claim is missing or invalid")
)
