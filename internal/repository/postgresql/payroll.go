package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

func (r *payrollRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithContextTransaction(ctx, r.db, fn)
}

// yearBounds returns [Jan 1 of year, Jan 1 of year+1) in the process time zone.
func yearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(1, 0, 0)
}

// ========== SETTINGS ==========

const settingsColumns = `
	id, company_id, default_schedule_type, overtime_multiplier, double_time_multiplier,
	enable_daily_overtime, daily_overtime_threshold, double_time_threshold, weekly_overtime_threshold,
	default_retirement_percent, health_insurance_amount, state_code, recalculate_taxes_on_adjustment,
	created_at, updated_at`

func scanSettings(row pgx.Row) (payroll.PayrollSettings, error) {
	var s payroll.PayrollSettings
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.DefaultScheduleType, &s.OvertimeMultiplier, &s.DoubleTimeMultiplier,
		&s.EnableDailyOvertime, &s.DailyOvertimeThreshold, &s.DoubleTimeThreshold, &s.WeeklyOvertimeThreshold,
		&s.DefaultRetirementPercent, &s.HealthInsuranceAmount, &s.StateCode, &s.RecalculateTaxesOnAdjustment,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *payrollRepository) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + settingsColumns + ` FROM payroll_settings WHERE company_id = $1`

	s, err := scanSettings(q.QueryRow(ctx, query, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
		}
		return payroll.PayrollSettings{}, fmt.Errorf("failed to get payroll settings: %w", err)
	}

	return s, nil
}

func (r *payrollRepository) UpsertSettings(ctx context.Context, settings payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_settings (
			company_id, default_schedule_type, overtime_multiplier, double_time_multiplier,
			enable_daily_overtime, daily_overtime_threshold, double_time_threshold, weekly_overtime_threshold,
			default_retirement_percent, health_insurance_amount, state_code, recalculate_taxes_on_adjustment
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (company_id) DO UPDATE SET
			default_schedule_type = EXCLUDED.default_schedule_type,
			overtime_multiplier = EXCLUDED.overtime_multiplier,
			double_time_multiplier = EXCLUDED.double_time_multiplier,
			enable_daily_overtime = EXCLUDED.enable_daily_overtime,
			daily_overtime_threshold = EXCLUDED.daily_overtime_threshold,
			double_time_threshold = EXCLUDED.double_time_threshold,
			weekly_overtime_threshold = EXCLUDED.weekly_overtime_threshold,
			default_retirement_percent = EXCLUDED.default_retirement_percent,
			health_insurance_amount = EXCLUDED.health_insurance_amount,
			state_code = EXCLUDED.state_code,
			recalculate_taxes_on_adjustment = EXCLUDED.recalculate_taxes_on_adjustment,
			updated_at = NOW()
		RETURNING ` + settingsColumns

	s, err := scanSettings(q.QueryRow(ctx, query,
		settings.CompanyID, settings.DefaultScheduleType, settings.OvertimeMultiplier, settings.DoubleTimeMultiplier,
		settings.EnableDailyOvertime, settings.DailyOvertimeThreshold, settings.DoubleTimeThreshold, settings.WeeklyOvertimeThreshold,
		settings.DefaultRetirementPercent, settings.HealthInsuranceAmount, settings.StateCode, settings.RecalculateTaxesOnAdjustment,
	))
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to upsert payroll settings: %w", err)
	}

	return s, nil
}

// ========== INPUTS ==========

func (r *payrollRepository) ListEmployees(ctx context.Context, companyID string, employeeIDs []string) ([]payroll.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, full_name, employment_type, hourly_rate, salary,
			   overtime_rate, double_time_rate, filing_status, allowances,
			   additional_withholding, tax_exempt
		FROM employees
		WHERE company_id = $1 AND employment_status = 'active'
	`
	args := []interface{}{companyID}
	if len(employeeIDs) > 0 {
		query += ` AND id::text = ANY($2)`
		args = append(args, employeeIDs)
	}
	query += ` ORDER BY full_name, id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []payroll.Employee
	for rows.Next() {
		var e payroll.Employee
		if err := rows.Scan(
			&e.ID, &e.CompanyID, &e.Name, &e.EmploymentType, &e.HourlyRate, &e.Salary,
			&e.OvertimeRate, &e.DoubleTimeRate, &e.Withholding.FilingStatus, &e.Withholding.Allowances,
			&e.Withholding.AdditionalWithholding, &e.Withholding.Exempt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return employees, nil
}

func (r *payrollRepository) ListTimeEntries(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) ([]payroll.TimeEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, clock_in, total_minutes, entry_type
		FROM time_entries
		WHERE company_id = $1 AND clock_in >= $2 AND clock_in <= $3
	`
	args := []interface{}{companyID, start, end}
	if len(employeeIDs) > 0 {
		query += ` AND employee_id::text = ANY($4)`
		args = append(args, employeeIDs)
	}
	query += ` ORDER BY clock_in`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	var entries []payroll.TimeEntry
	for rows.Next() {
		var te payroll.TimeEntry
		if err := rows.Scan(&te.ID, &te.EmployeeID, &te.ClockIn, &te.TotalMinutes, &te.Type); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, te)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time entries: %w", err)
	}

	return entries, nil
}

// ========== RUNS ==========

const runColumns = `
	id, company_id, run_number, period_id, schedule_type, period_start, period_end, pay_date, period_label,
	status, entries, employee_count,
	total_regular_hours, total_overtime_hours, total_gross_pay, total_deductions, total_net_pay,
	exported, exported_at, exported_by, created_by, created_at,
	approved_by, approved_at, processed_by, processed_at, updated_at`

func scanRun(row pgx.Row) (payroll.PayrollRun, error) {
	var (
		run          payroll.PayrollRun
		entriesBytes []byte
	)
	err := row.Scan(
		&run.ID, &run.CompanyID, &run.RunNumber, &run.Period.ID, &run.Period.ScheduleType,
		&run.Period.StartDate, &run.Period.EndDate, &run.Period.PayDate, &run.Period.Label,
		&run.Status, &entriesBytes, &run.EmployeeCount,
		&run.Totals.RegularHours, &run.Totals.OvertimeHours, &run.Totals.GrossPay, &run.Totals.Deductions, &run.Totals.NetPay,
		&run.Exported, &run.ExportedAt, &run.ExportedBy, &run.CreatedBy, &run.CreatedAt,
		&run.ApprovedBy, &run.ApprovedAt, &run.ProcessedBy, &run.ProcessedAt, &run.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := json.Unmarshal(entriesBytes, &run.Entries); err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to decode payroll entries: %w", err)
	}
	return run, nil
}

func (r *payrollRepository) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	entriesJSON, err := json.Marshal(run.Entries)
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to encode payroll entries: %w", err)
	}

	query := `
		INSERT INTO payroll_runs (
			id, company_id, run_number, period_id, schedule_type, period_start, period_end, pay_date, period_label,
			status, entries, employee_count,
			total_regular_hours, total_overtime_hours, total_gross_pay, total_deductions, total_net_pay,
			exported, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING ` + runColumns

	created, err := scanRun(q.QueryRow(ctx, query,
		run.ID, run.CompanyID, run.RunNumber, run.Period.ID, run.Period.ScheduleType,
		run.Period.StartDate, run.Period.EndDate, run.Period.PayDate, run.Period.Label,
		run.Status, entriesJSON, run.EmployeeCount,
		run.Totals.RegularHours, run.Totals.OvertimeHours, run.Totals.GrossPay, run.Totals.Deductions, run.Totals.NetPay,
		run.Exported, run.CreatedBy, run.CreatedAt, run.UpdatedAt,
	))
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	return created, nil
}

func (r *payrollRepository) getRun(ctx context.Context, id, companyID string, forUpdate bool) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1 AND company_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	run, err := scanRun(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRepository) GetRunByID(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	return r.getRun(ctx, id, companyID, false)
}

func (r *payrollRepository) GetRunForUpdate(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	if _, ok := txFromContext(ctx); !ok {
		return payroll.PayrollRun{}, errors.New("GetRunForUpdate requires a transaction")
	}
	return r.getRun(ctx, id, companyID, true)
}

func (r *payrollRepository) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.PayrollRun, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := []string{"company_id = $1"}
	args := []interface{}{companyID}
	argIdx := 2

	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Year != nil {
		start, end := yearBounds(*filter.Year)
		where = append(where, fmt.Sprintf("pay_date >= $%d AND pay_date < $%d", argIdx, argIdx+1))
		args = append(args, start, end)
		argIdx += 2
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM payroll_runs WHERE ` + whereClause
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM payroll_runs WHERE %s ORDER BY created_at DESC, run_number DESC LIMIT $%d OFFSET $%d`,
		runColumns, whereClause, argIdx, argIdx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	runs, err := r.queryRuns(ctx, q, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func (r *payrollRepository) ListCompletedRuns(ctx context.Context, companyID string, year int) ([]payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)
	start, end := yearBounds(year)

	query := `SELECT ` + runColumns + `
		FROM payroll_runs
		WHERE company_id = $1 AND status = $2 AND pay_date >= $3 AND pay_date < $4
		ORDER BY pay_date`

	return r.queryRuns(ctx, q, query, companyID, payroll.RunStatusCompleted, start, end)
}

func (r *payrollRepository) queryRuns(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]payroll.PayrollRun, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}

	return runs, nil
}

func (r *payrollRepository) ListRunStamps(ctx context.Context, companyID string, year int) ([]payroll.RunStamp, error) {
	q := GetQuerier(ctx, r.db)
	start, end := yearBounds(year)

	query := `
		SELECT run_number, created_at
		FROM payroll_runs
		WHERE company_id = $1 AND created_at >= $2 AND created_at < $3
	`

	rows, err := q.Query(ctx, query, companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll run numbers: %w", err)
	}
	defer rows.Close()

	var stamps []payroll.RunStamp
	for rows.Next() {
		var s payroll.RunStamp
		if err := rows.Scan(&s.RunNumber, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payroll run number: %w", err)
		}
		stamps = append(stamps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll run numbers: %w", err)
	}

	return stamps, nil
}

func (r *payrollRepository) UpdateRun(ctx context.Context, run payroll.PayrollRun) error {
	q := GetQuerier(ctx, r.db)

	entriesJSON, err := json.Marshal(run.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode payroll entries: %w", err)
	}

	// Entries and totals are written in one statement so readers never see them disagree.
	query := `
		UPDATE payroll_runs SET
			status = $3,
			entries = $4,
			employee_count = $5,
			total_regular_hours = $6,
			total_overtime_hours = $7,
			total_gross_pay = $8,
			total_deductions = $9,
			total_net_pay = $10,
			exported = $11,
			exported_at = $12,
			exported_by = $13,
			approved_by = $14,
			approved_at = $15,
			processed_by = $16,
			processed_at = $17,
			updated_at = $18
		WHERE id = $1 AND company_id = $2
	`

	tag, err := q.Exec(ctx, query,
		run.ID, run.CompanyID,
		run.Status, entriesJSON, run.EmployeeCount,
		run.Totals.RegularHours, run.Totals.OvertimeHours, run.Totals.GrossPay, run.Totals.Deductions, run.Totals.NetPay,
		run.Exported, run.ExportedAt, run.ExportedBy,
		run.ApprovedBy, run.ApprovedAt, run.ProcessedBy, run.ProcessedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayrollRunNotFound
	}

	return nil
}

func (r *payrollRepository) DeleteRun(ctx context.Context, id string, companyID string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM payroll_runs WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayrollRunNotFound
	}

	return nil
}

func (r *payrollRepository) LockRunNumbering(ctx context.Context, companyID string, year int) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return errors.New("LockRunNumbering requires a transaction")
	}

	key := fmt.Sprintf("payroll_run_number:%s:%d", companyID, year)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock payroll run numbering: %w", err)
	}

	return nil
}
