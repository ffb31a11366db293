package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertEmployee(t *testing.T, setup *TestDatabaseSetup, companyID, name, status string, rate string) string {
	t.Helper()
	id := uuid.Must(uuid.NewV7()).String()
	_, err := setup.DB.Exec(context.Background(), `
		INSERT INTO employees (id, company_id, full_name, employment_type, employment_status, hourly_rate, filing_status, allowances)
		VALUES ($1, $2, $3, 'hourly', $4, $5, 'single', 1)
	`, id, companyID, name, status, rate)
	require.NoError(t, err)
	return id
}

func insertTimeEntry(t *testing.T, setup *TestDatabaseSetup, companyID, employeeID string, clockIn time.Time, minutes int) {
	t.Helper()
	_, err := setup.DB.Exec(context.Background(), `
		INSERT INTO time_entries (company_id, employee_id, clock_in, total_minutes)
		VALUES ($1, $2, $3, $4)
	`, companyID, employeeID, clockIn, minutes)
	require.NoError(t, err)
}

func newDraftRun(companyID string, runNumber int, payDate time.Time) payroll.PayrollRun {
	now := time.Now().UTC().Truncate(time.Microsecond)
	start := payDate.AddDate(0, 0, -12)
	return payroll.PayrollRun{
		ID:        uuid.Must(uuid.NewV7()).String(),
		CompanyID: companyID,
		RunNumber: runNumber,
		Period: payroll.PayPeriod{
			ID:           "weekly-test",
			ScheduleType: payroll.ScheduleWeekly,
			StartDate:    start,
			EndDate:      start.AddDate(0, 0, 7),
			PayDate:      payDate,
			Label:        "Test Period",
		},
		Status: payroll.RunStatusDraft,
		Entries: []payroll.PayrollEntry{{
			ID:           uuid.Must(uuid.NewV7()).String(),
			EmployeeID:   "emp-1",
			EmployeeName: "Dana Builder",
			GrossPay:     decimal.RequireFromString("1187.50"),
			NetPay:       decimal.RequireFromString("992.30"),
			Taxes: payroll.TaxWithholding{
				Federal:        decimal.RequireFromString("104.35"),
				SocialSecurity: decimal.RequireFromString("73.63"),
				Medicare:       decimal.RequireFromString("17.22"),
			},
		}},
		EmployeeCount: 1,
		Totals: payroll.RunTotals{
			RegularHours:  decimal.NewFromInt(40),
			OvertimeHours: decimal.NewFromInt(5),
			GrossPay:      decimal.RequireFromString("1187.50"),
			Deductions:    decimal.RequireFromString("195.20"),
			NetPay:        decimal.RequireFromString("992.30"),
		},
		CreatedBy: "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPayrollRepository_Settings(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRepository(setup.DB)
	ctx := context.Background()
	companyID := uuid.NewString()

	_, err := repo.GetSettings(ctx, companyID)
	assert.ErrorIs(t, err, payroll.ErrPayrollSettingsNotFound)

	settings := payroll.DefaultSettings(companyID)
	settings.StateCode = "CA"
	saved, err := repo.UpsertSettings(ctx, settings)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "CA", saved.StateCode)

	settings.EnableDailyOvertime = true
	updated, err := repo.UpsertSettings(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.True(t, updated.EnableDailyOvertime)
	assert.True(t, updated.OvertimeMultiplier.Equal(decimal.NewFromFloat(1.5)))
}

func TestPayrollRepository_Inputs(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRepository(setup.DB)
	ctx := context.Background()
	companyID := uuid.NewString()

	dana := insertEmployee(t, setup, companyID, "Dana Builder", "active", "25.00")
	sam := insertEmployee(t, setup, companyID, "Sam Framer", "active", "30.00")
	insertEmployee(t, setup, companyID, "Former Worker", "inactive", "20.00")
	insertEmployee(t, setup, uuid.NewString(), "Other Company", "active", "20.00")

	t.Run("active employees of the company only", func(t *testing.T) {
		employees, err := repo.ListEmployees(ctx, companyID, nil)
		require.NoError(t, err)
		require.Len(t, employees, 2)
		assert.Equal(t, "Dana Builder", employees[0].Name)
		assert.Equal(t, payroll.FilingSingle, employees[0].Withholding.FilingStatus)
		assert.True(t, employees[0].HourlyRate.Equal(decimal.NewFromInt(25)))
	})

	t.Run("restricted to requested ids", func(t *testing.T) {
		employees, err := repo.ListEmployees(ctx, companyID, []string{sam})
		require.NoError(t, err)
		require.Len(t, employees, 1)
		assert.Equal(t, sam, employees[0].ID)
	})

	start := time.Date(2024, time.June, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 15, 23, 59, 59, 0, time.UTC)
	insertTimeEntry(t, setup, companyID, dana, start.Add(7*time.Hour), 480)
	insertTimeEntry(t, setup, companyID, dana, start.AddDate(0, 0, 1).Add(7*time.Hour), 540)
	insertTimeEntry(t, setup, companyID, sam, start.AddDate(0, 0, 1).Add(7*time.Hour), 600)
	insertTimeEntry(t, setup, companyID, dana, start.AddDate(0, 0, 7).Add(7*time.Hour), 480)

	t.Run("time entries within the window", func(t *testing.T) {
		entries, err := repo.ListTimeEntries(ctx, companyID, nil, start, end)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("time entries for one employee", func(t *testing.T) {
		entries, err := repo.ListTimeEntries(ctx, companyID, []string{dana}, start, end)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 480, entries[0].TotalMinutes)
		assert.Equal(t, payroll.TimeEntryClock, entries[0].Type)
	})
}

func TestPayrollRepository_RunLifecycle(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRepository(setup.DB)
	ctx := context.Background()
	companyID := uuid.NewString()
	payDate := time.Date(2024, time.June, 21, 0, 0, 0, 0, time.UTC)

	run := newDraftRun(companyID, 1, payDate)
	created, err := repo.CreateRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, run.ID, created.ID)
	require.Len(t, created.Entries, 1)
	assert.True(t, created.Entries[0].NetPay.Equal(decimal.RequireFromString("992.30")))

	t.Run("company scoping", func(t *testing.T) {
		_, err := repo.GetRunByID(ctx, run.ID, uuid.NewString())
		assert.ErrorIs(t, err, payroll.ErrPayrollRunNotFound)
	})

	t.Run("update under lock", func(t *testing.T) {
		err := repo.WithTransaction(ctx, func(txCtx context.Context) error {
			locked, err := repo.GetRunForUpdate(txCtx, run.ID, companyID)
			if err != nil {
				return err
			}
			approver := "user-2"
			approvedAt := time.Now().UTC()
			locked.Status = payroll.RunStatusApproved
			locked.ApprovedBy = &approver
			locked.ApprovedAt = &approvedAt
			return repo.UpdateRun(txCtx, locked)
		})
		require.NoError(t, err)

		got, err := repo.GetRunByID(ctx, run.ID, companyID)
		require.NoError(t, err)
		assert.Equal(t, payroll.RunStatusApproved, got.Status)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, "user-2", *got.ApprovedBy)
	})

	t.Run("lock requires a transaction", func(t *testing.T) {
		_, err := repo.GetRunForUpdate(ctx, run.ID, companyID)
		assert.Error(t, err)
		assert.Error(t, repo.LockRunNumbering(ctx, companyID, 2024))
	})

	t.Run("stamps and listing", func(t *testing.T) {
		second := newDraftRun(companyID, 2, payDate.AddDate(0, 0, 7))
		_, err := repo.CreateRun(ctx, second)
		require.NoError(t, err)

		stamps, err := repo.ListRunStamps(ctx, companyID, run.CreatedAt.In(time.Local).Year())
		require.NoError(t, err)
		assert.Len(t, stamps, 2)

		status := string(payroll.RunStatusDraft)
		runs, total, err := repo.ListRuns(ctx, companyID, payroll.RunFilter{Status: &status, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, runs, 1)
		assert.Equal(t, second.ID, runs[0].ID)

		all, total, err := repo.ListRuns(ctx, companyID, payroll.RunFilter{Page: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, all, 1)
	})

	t.Run("completed runs by pay date year", func(t *testing.T) {
		completedRun := newDraftRun(companyID, 3, payDate.AddDate(0, 0, 14))
		completedRun.Status = payroll.RunStatusCompleted
		_, err := repo.CreateRun(ctx, completedRun)
		require.NoError(t, err)

		runs, err := repo.ListCompletedRuns(ctx, companyID, 2024)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, completedRun.ID, runs[0].ID)

		runs, err = repo.ListCompletedRuns(ctx, companyID, 2023)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteRun(ctx, run.ID, companyID))
		assert.ErrorIs(t, repo.DeleteRun(ctx, run.ID, companyID), payroll.ErrPayrollRunNotFound)
	})
}

func TestPayrollRepository_TransactionRollback(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRepository(setup.DB)
	ctx := context.Background()
	companyID := uuid.NewString()
	run := newDraftRun(companyID, 1, time.Date(2024, time.June, 21, 0, 0, 0, 0, time.UTC))

	err := repo.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.LockRunNumbering(txCtx, companyID, 2024); err != nil {
			return err
		}
		if _, err := repo.CreateRun(txCtx, run); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.GetRunByID(ctx, run.ID, companyID)
	assert.ErrorIs(t, err, payroll.ErrPayrollRunNotFound)
}

func TestTimeOffRepository_TimeOffHours(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewTimeOffRepository(setup.DB)
	ctx := context.Background()
	companyID := uuid.NewString()
	employeeID := insertEmployee(t, setup, companyID, "Dana Builder", "active", "25.00")

	insert := func(company, category, day, hours, status string) {
		_, err := setup.DB.Exec(ctx, `
			INSERT INTO time_off_entries (company_id, employee_id, category, work_date, hours, status)
			VALUES ($1, $2, $3, $4::date, $5, $6)
		`, company, employeeID, category, day, hours, status)
		require.NoError(t, err)
	}
	insert(companyID, "pto", "2024-06-10", "8", "approved")
	insert(companyID, "pto", "2024-06-11", "4", "approved")
	insert(companyID, "sick", "2024-06-12", "8", "approved")
	insert(companyID, "holiday", "2024-06-13", "8", "pending")
	insert(companyID, "pto", "2024-06-20", "8", "approved")
	otherCompanyID := uuid.NewString()
	insert(otherCompanyID, "sick", "2024-06-14", "6", "approved")

	period := payroll.PayPeriod{
		StartDate: time.Date(2024, time.June, 9, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.June, 15, 23, 59, 59, 0, time.UTC),
	}

	hours, err := repo.TimeOffHours(ctx, companyID, employeeID, period)
	require.NoError(t, err)
	assert.True(t, hours.PTO.Equal(decimal.NewFromInt(12)), hours.PTO.String())
	assert.True(t, hours.Sick.Equal(decimal.NewFromInt(8)), hours.Sick.String())
	assert.True(t, hours.Holiday.IsZero())

	foreign, err := repo.TimeOffHours(ctx, otherCompanyID, employeeID, period)
	require.NoError(t, err)
	assert.True(t, foreign.PTO.IsZero())
	assert.True(t, foreign.Sick.Equal(decimal.NewFromInt(6)), foreign.Sick.String())
}
