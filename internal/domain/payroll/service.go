package payroll

import "context"

type PayrollService interface {
	// Settings
	GetSettings(ctx context.Context) (PayrollSettingsResponse, error)
	UpdateSettings(ctx context.Context, req UpdatePayrollSettingsRequest) (PayrollSettingsResponse, error)

	// Calculators
	PreviewPayPeriod(ctx context.Context, req PreviewPayPeriodRequest) (PayPeriod, error)
	CalculateTaxPreview(ctx context.Context, req TaxPreviewRequest) (TaxPreviewResponse, error)

	// Runs
	GeneratePayrollRun(ctx context.Context, req GeneratePayrollRunRequest) (PayrollRunResponse, error)
	GetPayrollRun(ctx context.Context, id string) (PayrollRunResponse, error)
	ListPayrollRuns(ctx context.Context, filter RunFilter) (ListPayrollRunResponse, error)
	ApprovePayrollRun(ctx context.Context, id string) (PayrollRunResponse, error)
	CompletePayrollRun(ctx context.Context, id string) (PayrollRunResponse, error)
	MarkPayrollRunExported(ctx context.Context, id string) (PayrollRunResponse, error)
	DeletePayrollRun(ctx context.Context, id string) error

	// Entries
	UpdatePayrollEntry(ctx context.Context, req UpdatePayrollEntryRequest) (PayrollRunResponse, error)
	AddPayrollAdjustment(ctx context.Context, req AddPayrollAdjustmentRequest) (PayrollRunResponse, error)

	// Year to date
	GetEmployeeYTD(ctx context.Context, employeeID string, year int) (EmployeeYTDResponse, error)

	// Export
	ExportPayrollRun(ctx context.Context, id string, format ExportFormat) (ExportFile, error)
	GeneratePayStub(ctx context.Context, runID, entryID string) (ExportFile, error)
}
