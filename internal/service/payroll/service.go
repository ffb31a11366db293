package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/pkg/validator"
	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRunPageSize = 20
	maxRunPageSize     = 100
)

type PayrollServiceImpl struct {
	payrollRepo payroll.PayrollRepository
	taxTables   *TaxTableSet
	calculator  *EntryCalculator
	timeOff     payroll.TimeOffProvider
	now         func() time.Time
}

func NewPayrollService(
	payrollRepo payroll.PayrollRepository,
	taxTables *TaxTableSet,
	timeOff payroll.TimeOffProvider,
) payroll.PayrollService {
	if timeOff == nil {
		timeOff = NoTimeOff{}
	}
	return &PayrollServiceImpl{
		payrollRepo: payrollRepo,
		taxTables:   taxTables,
		calculator:  NewEntryCalculator(taxTables, nil),
		timeOff:     timeOff,
		now:         time.Now,
	}
}

// Helper to get company_id and user_id from JWT context
func getClaimsFromContext(ctx context.Context) (companyID, userID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return "", "", payroll.ErrCompanyIDRequired
	}

	userID, _ = claims["user_id"].(string)

	return companyID, userID, nil
}

// ========== SETTINGS ==========

func (s *PayrollServiceImpl) loadSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	settings, err := s.payrollRepo.GetSettings(ctx, companyID)
	if errors.Is(err, payroll.ErrPayrollSettingsNotFound) {
		return payroll.DefaultSettings(companyID), nil
	}
	return settings, err
}

func (s *PayrollServiceImpl) GetSettings(ctx context.Context) (payroll.PayrollSettingsResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}
	return toSettingsResponse(settings), nil
}

func (s *PayrollServiceImpl) UpdateSettings(ctx context.Context, req payroll.UpdatePayrollSettingsRequest) (payroll.PayrollSettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	current, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	// Apply updates
	if req.DefaultScheduleType != nil {
		current.DefaultScheduleType = payroll.ScheduleType(*req.DefaultScheduleType)
	}
	if req.OvertimeMultiplier != nil {
		current.OvertimeMultiplier = *req.OvertimeMultiplier
	}
	if req.DoubleTimeMultiplier != nil {
		current.DoubleTimeMultiplier = *req.DoubleTimeMultiplier
	}
	if req.EnableDailyOvertime != nil {
		current.EnableDailyOvertime = *req.EnableDailyOvertime
	}
	if req.DailyOvertimeThreshold != nil {
		current.DailyOvertimeThreshold = *req.DailyOvertimeThreshold
	}
	if req.DoubleTimeThreshold != nil {
		current.DoubleTimeThreshold = *req.DoubleTimeThreshold
	}
	if req.WeeklyOvertimeThreshold != nil {
		current.WeeklyOvertimeThreshold = *req.WeeklyOvertimeThreshold
	}
	if req.DefaultRetirementPercent != nil {
		current.DefaultRetirementPercent = *req.DefaultRetirementPercent
	}
	if req.HealthInsuranceAmount != nil {
		current.HealthInsuranceAmount = *req.HealthInsuranceAmount
	}
	if req.StateCode != nil {
		current.StateCode = *req.StateCode
	}
	if req.RecalculateTaxesOnAdjustment != nil {
		current.RecalculateTaxesOnAdjustment = *req.RecalculateTaxesOnAdjustment
	}

	// Cross-field rules only hold on the merged result.
	if err := ValidateSettings(current); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}
	s.warnUnknownState(current.StateCode, s.now().Year())

	updated, err := s.payrollRepo.UpsertSettings(ctx, current)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	slog.Info("Payroll settings updated", "company_id", companyID)
	return toSettingsResponse(updated), nil
}

func toSettingsResponse(st payroll.PayrollSettings) payroll.PayrollSettingsResponse {
	return payroll.PayrollSettingsResponse{
		ID:                           st.ID,
		CompanyID:                    st.CompanyID,
		DefaultScheduleType:          string(st.DefaultScheduleType),
		OvertimeMultiplier:           st.OvertimeMultiplier,
		DoubleTimeMultiplier:         st.DoubleTimeMultiplier,
		EnableDailyOvertime:          st.EnableDailyOvertime,
		DailyOvertimeThreshold:       st.DailyOvertimeThreshold,
		DoubleTimeThreshold:          st.DoubleTimeThreshold,
		WeeklyOvertimeThreshold:      st.WeeklyOvertimeThreshold,
		DefaultRetirementPercent:     st.DefaultRetirementPercent,
		HealthInsuranceAmount:        st.HealthInsuranceAmount,
		StateCode:                    st.StateCode,
		RecalculateTaxesOnAdjustment: st.RecalculateTaxesOnAdjustment,
	}
}

// warnUnknownState logs state codes that have no rate and are therefore taxed at 0%.
func (s *PayrollServiceImpl) warnUnknownState(code string, year int) {
	if code != "" && !s.taxTables.ForYear(year).HasStateRate(code) {
		slog.Warn("State code has no tax rate, withholding 0%", "state_code", code, "tax_year", year)
	}
}

// ========== CALCULATORS ==========

func (s *PayrollServiceImpl) referenceDate(value *string) time.Time {
	now := s.now()
	if value == nil {
		return now
	}
	t, err := time.ParseInLocation("2006-01-02", *value, now.Location())
	if err != nil {
		return now
	}
	return t
}

func (s *PayrollServiceImpl) PreviewPayPeriod(ctx context.Context, req payroll.PreviewPayPeriodRequest) (payroll.PayPeriod, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayPeriod{}, err
	}

	scheduleType := payroll.ScheduleType(req.ScheduleType)
	if scheduleType == "" {
		companyID, _, err := getClaimsFromContext(ctx)
		if err != nil {
			return payroll.PayPeriod{}, err
		}
		settings, err := s.loadSettings(ctx, companyID)
		if err != nil {
			return payroll.PayPeriod{}, err
		}
		scheduleType = settings.DefaultScheduleType
	}

	return GeneratePayPeriod(scheduleType, s.referenceDate(req.ReferenceDate))
}

func (s *PayrollServiceImpl) CalculateTaxPreview(ctx context.Context, req payroll.TaxPreviewRequest) (payroll.TaxPreviewResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.TaxPreviewResponse{}, err
	}

	year := req.TaxYear
	if year == 0 {
		year = s.now().Year()
	}
	table := s.taxTables.ForYear(year)

	breakdown := table.CalculateTaxes(TaxInput{
		GrossPay:     req.GrossPay,
		ScheduleType: payroll.ScheduleType(req.ScheduleType),
		Withholding: payroll.WithholdingProfile{
			FilingStatus:          payroll.FilingStatus(req.FilingStatus),
			Allowances:            req.Allowances,
			AdditionalWithholding: req.AdditionalWithholding,
			Exempt:                req.Exempt,
		},
		StateCode:      req.StateCode,
		YTDGrossBefore: req.YTDGrossBefore,
	})

	return payroll.TaxPreviewResponse{TaxBreakdown: breakdown, TaxYear: table.Year}, nil
}

// ========== RUNS ==========

func (s *PayrollServiceImpl) GeneratePayrollRun(ctx context.Context, req payroll.GeneratePayrollRunRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	if err := ValidateSettings(settings); err != nil {
		return payroll.PayrollRunResponse{}, fmt.Errorf("stored payroll settings are invalid: %w", err)
	}

	scheduleType := settings.DefaultScheduleType
	if req.ScheduleType != "" {
		scheduleType = payroll.ScheduleType(req.ScheduleType)
	}
	period, err := GeneratePayPeriod(scheduleType, s.referenceDate(req.ReferenceDate))
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	taxYear := period.PayDate.Year()

	var (
		employees     []payroll.Employee
		timeEntries   []payroll.TimeEntry
		completedRuns []payroll.PayrollRun
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		employees, err = s.payrollRepo.ListEmployees(gCtx, companyID, req.EmployeeIDs)
		return err
	})

	g.Go(func() error {
		var err error
		timeEntries, err = s.payrollRepo.ListTimeEntries(gCtx, companyID, req.EmployeeIDs, period.StartDate, period.EndDate)
		return err
	})

	// Completed runs are immutable, so reading them alongside the rest is safe.
	g.Go(func() error {
		var err error
		completedRuns, err = s.payrollRepo.ListCompletedRuns(gCtx, companyID, taxYear)
		return err
	})

	if err := g.Wait(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	if len(employees) == 0 {
		return payroll.PayrollRunResponse{}, payroll.ErrNoEmployeesForRun
	}
	if len(req.EmployeeIDs) > 0 && len(employees) != len(uniqueStrings(req.EmployeeIDs)) {
		return payroll.PayrollRunResponse{}, payroll.ErrEmployeeNotFound
	}

	s.warnUnknownState(settings.StateCode, taxYear)

	byEmployee := make(map[string][]payroll.TimeEntry, len(employees))
	for _, te := range timeEntries {
		byEmployee[te.EmployeeID] = append(byEmployee[te.EmployeeID], te)
	}

	entries := make([]payroll.PayrollEntry, 0, len(employees))
	for _, emp := range employees {
		timeOff, err := s.timeOff.TimeOffHours(ctx, companyID, emp.ID, period)
		if err != nil {
			return payroll.PayrollRunResponse{}, fmt.Errorf("failed to get time off for employee %s: %w", emp.ID, err)
		}

		entry, err := s.calculator.Calculate(EntryInput{
			Employee:    emp,
			TimeEntries: byEmployee[emp.ID],
			Period:      period,
			Settings:    settings,
			PriorYTD:    SumYTD(completedRuns, emp.ID, taxYear),
			TimeOff:     timeOff,
		})
		if err != nil {
			return payroll.PayrollRunResponse{}, fmt.Errorf("employee %s: %w", emp.ID, err)
		}
		entries = append(entries, entry)
	}

	var created payroll.PayrollRun
	err = s.payrollRepo.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.now()
		if err := s.payrollRepo.LockRunNumbering(txCtx, companyID, now.Year()); err != nil {
			return err
		}
		stamps, err := s.payrollRepo.ListRunStamps(txCtx, companyID, now.Year())
		if err != nil {
			return err
		}

		run := NewRun(companyID, userID, period, entries, NextRunNumber(stamps, now), now)
		created, err = s.payrollRepo.CreateRun(txCtx, run)
		return err
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	slog.Info("Payroll run generated",
		"run_id", created.ID,
		"company_id", companyID,
		"run_number", created.RunNumber,
		"period", created.Period.ID,
		"employee_count", created.EmployeeCount,
	)
	return payroll.NewRunResponse(created), nil
}

func (s *PayrollServiceImpl) GetPayrollRun(ctx context.Context, id string) (payroll.PayrollRunResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	run, err := s.payrollRepo.GetRunByID(ctx, id, companyID)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) ListPayrollRuns(ctx context.Context, filter payroll.RunFilter) (payroll.ListPayrollRunResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ListPayrollRunResponse{}, err
	}

	if filter.Status != nil && !payroll.RunStatus(*filter.Status).IsValid() {
		var errs validator.ValidationErrors
		errs.Add("status", "must be draft, approved or completed")
		return payroll.ListPayrollRunResponse{}, errs
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultRunPageSize
	}
	if filter.Limit > maxRunPageSize {
		filter.Limit = maxRunPageSize
	}

	runs, total, err := s.payrollRepo.ListRuns(ctx, companyID, filter)
	if err != nil {
		return payroll.ListPayrollRunResponse{}, err
	}

	data := make([]payroll.PayrollRunResponse, 0, len(runs))
	for _, r := range runs {
		data = append(data, payroll.NewRunResponse(r))
	}

	return payroll.ListPayrollRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// mutateRun locks the run, applies fn and persists the result in one transaction.
func (s *PayrollServiceImpl) mutateRun(ctx context.Context, id string, fn func(run payroll.PayrollRun, userID string, now time.Time) (payroll.PayrollRun, error)) (payroll.PayrollRun, error) {
	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	var updated payroll.PayrollRun
	err = s.payrollRepo.WithTransaction(ctx, func(txCtx context.Context) error {
		run, err := s.payrollRepo.GetRunForUpdate(txCtx, id, companyID)
		if err != nil {
			return err
		}
		updated, err = fn(run, userID, s.now())
		if err != nil {
			return err
		}
		return s.payrollRepo.UpdateRun(txCtx, updated)
	})
	return updated, err
}

func (s *PayrollServiceImpl) ApprovePayrollRun(ctx context.Context, id string) (payroll.PayrollRunResponse, error) {
	run, err := s.mutateRun(ctx, id, Approve)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	slog.Info("Payroll run approved", "run_id", run.ID, "company_id", run.CompanyID, "status", run.Status)
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) CompletePayrollRun(ctx context.Context, id string) (payroll.PayrollRunResponse, error) {
	run, err := s.mutateRun(ctx, id, Complete)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	slog.Info("Payroll run completed", "run_id", run.ID, "company_id", run.CompanyID, "status", run.Status)
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) MarkPayrollRunExported(ctx context.Context, id string) (payroll.PayrollRunResponse, error) {
	run, err := s.mutateRun(ctx, id, func(run payroll.PayrollRun, userID string, now time.Time) (payroll.PayrollRun, error) {
		return MarkExported(run, userID, now), nil
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) DeletePayrollRun(ctx context.Context, id string) error {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return err
	}

	err = s.payrollRepo.WithTransaction(ctx, func(txCtx context.Context) error {
		run, err := s.payrollRepo.GetRunForUpdate(txCtx, id, companyID)
		if err != nil {
			return err
		}
		if err := EnsureDeletable(run); err != nil {
			return err
		}
		return s.payrollRepo.DeleteRun(txCtx, id, companyID)
	})
	if err != nil {
		return err
	}

	slog.Info("Payroll run deleted", "run_id", id, "company_id", companyID)
	return nil
}

// ========== ENTRIES ==========

func (s *PayrollServiceImpl) UpdatePayrollEntry(ctx context.Context, req payroll.UpdatePayrollEntryRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	run, err := s.mutateRun(ctx, req.RunID, func(run payroll.PayrollRun, _ string, now time.Time) (payroll.PayrollRun, error) {
		return UpdateEntry(run, req, now)
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	slog.Info("Payroll entry updated", "run_id", run.ID, "entry_id", req.EntryID)
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) AddPayrollAdjustment(ctx context.Context, req payroll.AddPayrollAdjustmentRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	run, err := s.mutateRun(ctx, req.RunID, func(run payroll.PayrollRun, userID string, now time.Time) (payroll.PayrollRun, error) {
		var table *TaxTable
		if settings.RecalculateTaxesOnAdjustment {
			table = s.taxTables.ForYear(run.Period.PayDate.Year())
		}
		adj := payroll.PayrollAdjustment{
			Description: req.Description,
			Amount:      req.Amount,
			Taxable:     req.Taxable,
			CreatedBy:   userID,
		}
		return AddAdjustment(run, req.EntryID, adj, table, now)
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	slog.Info("Payroll adjustment added",
		"run_id", run.ID,
		"entry_id", req.EntryID,
		"taxable", req.Taxable,
		"taxes_recalculated", settings.RecalculateTaxesOnAdjustment,
	)
	return payroll.NewRunResponse(run), nil
}

// ========== YEAR TO DATE ==========

func (s *PayrollServiceImpl) GetEmployeeYTD(ctx context.Context, employeeID string, year int) (payroll.EmployeeYTDResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.EmployeeYTDResponse{}, err
	}
	if year == 0 {
		year = s.now().Year()
	}

	runs, err := s.payrollRepo.ListCompletedRuns(ctx, companyID, year)
	if err != nil {
		return payroll.EmployeeYTDResponse{}, err
	}

	count := 0
	for i := range runs {
		if runs[i].Period.PayDate.Year() != year {
			continue
		}
		for _, e := range runs[i].Entries {
			if e.EmployeeID == employeeID {
				count++
				break
			}
		}
	}

	return payroll.EmployeeYTDResponse{
		EmployeeID: employeeID,
		Year:       year,
		RunCount:   count,
		Totals:     SumYTD(runs, employeeID, year),
	}, nil
}

// ========== EXPORT ==========

func (s *PayrollServiceImpl) ExportPayrollRun(ctx context.Context, id string, format payroll.ExportFormat) (payroll.ExportFile, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ExportFile{}, err
	}

	run, err := s.payrollRepo.GetRunByID(ctx, id, companyID)
	if err != nil {
		return payroll.ExportFile{}, err
	}

	switch format {
	case payroll.ExportFormatCSV, "":
		return ExportCSV(run)
	case payroll.ExportFormatXLSX:
		return ExportXLSX(run)
	default:
		return payroll.ExportFile{}, fmt.Errorf("%w: %q", payroll.ErrUnsupportedExportFormat, format)
	}
}

func (s *PayrollServiceImpl) GeneratePayStub(ctx context.Context, runID, entryID string) (payroll.ExportFile, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ExportFile{}, err
	}

	run, err := s.payrollRepo.GetRunByID(ctx, runID, companyID)
	if err != nil {
		return payroll.ExportFile{}, err
	}
	idx := run.EntryByID(entryID)
	if idx < 0 {
		return payroll.ExportFile{}, payroll.ErrPayrollEntryNotFound
	}
	return RenderPayStub(run, run.Entries[idx])
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
