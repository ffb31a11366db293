package payroll

import (
	"context"
	"time"
)

// PayrollRepository defines data access methods for payroll.
// All methods include companyID parameter to prevent cross-company data access attacks.
type PayrollRepository interface {
	// Settings
	GetSettings(ctx context.Context, companyID string) (PayrollSettings, error)
	UpsertSettings(ctx context.Context, settings PayrollSettings) (PayrollSettings, error)

	// Inputs
	ListEmployees(ctx context.Context, companyID string, employeeIDs []string) ([]Employee, error)
	ListTimeEntries(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) ([]TimeEntry, error)

	// Runs
	CreateRun(ctx context.Context, run PayrollRun) (PayrollRun, error)
	GetRunByID(ctx context.Context, id string, companyID string) (PayrollRun, error)
	// GetRunForUpdate locks the run row; callers must be inside WithTransaction.
	GetRunForUpdate(ctx context.Context, id string, companyID string) (PayrollRun, error)
	ListRuns(ctx context.Context, companyID string, filter RunFilter) ([]PayrollRun, int64, error)
	ListCompletedRuns(ctx context.Context, companyID string, year int) ([]PayrollRun, error)
	ListRunStamps(ctx context.Context, companyID string, year int) ([]RunStamp, error)
	UpdateRun(ctx context.Context, run PayrollRun) error
	DeleteRun(ctx context.Context, id string, companyID string) error

	// LockRunNumbering serializes run creation for a company and year.
	LockRunNumbering(ctx context.Context, companyID string, year int) error

	// WithTransaction runs fn with a transaction bound to the returned context.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TimeOffProvider supplies paid time-off hours for an employee and period.
type TimeOffProvider interface {
	TimeOffHours(ctx context.Context, companyID, employeeID string, period PayPeriod) (TimeOffHours, error)
}
