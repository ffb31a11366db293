package payroll

import (
	"fmt"
	"time"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// NewRun assembles computed entries into a draft run.
func NewRun(companyID, createdBy string, period payroll.PayPeriod, entries []payroll.PayrollEntry, runNumber int, now time.Time) payroll.PayrollRun {
	run := payroll.PayrollRun{
		ID:        NewID(),
		CompanyID: companyID,
		RunNumber: runNumber,
		Period:    period,
		Status:    payroll.RunStatusDraft,
		Entries:   entries,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	RecalculateTotals(&run)
	return run
}

// NextRunNumber returns one more than the highest run number created in now's calendar year.
func NextRunNumber(existing []payroll.RunStamp, now time.Time) int {
	highest := 0
	for _, stamp := range existing {
		if stamp.CreatedAt.In(now.Location()).Year() != now.Year() {
			continue
		}
		if stamp.RunNumber > highest {
			highest = stamp.RunNumber
		}
	}
	return highest + 1
}

// RecalculateTotals derives every run-level aggregate from the entry list.
func RecalculateTotals(run *payroll.PayrollRun) {
	var totals payroll.RunTotals
	for _, e := range run.Entries {
		totals.RegularHours = totals.RegularHours.Add(e.Hours.Regular)
		totals.OvertimeHours = totals.OvertimeHours.Add(e.Hours.Overtime)
		totals.GrossPay = totals.GrossPay.Add(e.GrossPay)
		totals.Deductions = totals.Deductions.Add(e.TotalDeductions)
		totals.NetPay = totals.NetPay.Add(e.NetPay)
	}
	run.Totals = totals
	run.EmployeeCount = len(run.Entries)
}

// ========== LIFECYCLE ==========

func Approve(run payroll.PayrollRun, approverID string, now time.Time) (payroll.PayrollRun, error) {
	if err := payroll.CheckTransition(run.Status, payroll.RunStatusApproved); err != nil {
		return run, err
	}
	out := cloneRun(run)
	out.Status = payroll.RunStatusApproved
	out.ApprovedBy = &approverID
	out.ApprovedAt = &now
	out.UpdatedAt = now
	return out, nil
}

func Complete(run payroll.PayrollRun, processorID string, now time.Time) (payroll.PayrollRun, error) {
	if err := payroll.CheckTransition(run.Status, payroll.RunStatusCompleted); err != nil {
		return run, err
	}
	out := cloneRun(run)
	out.Status = payroll.RunStatusCompleted
	out.ProcessedBy = &processorID
	out.ProcessedAt = &now
	out.UpdatedAt = now
	return out, nil
}

// MarkExported sets the export marker, which is independent of status.
func MarkExported(run payroll.PayrollRun, userID string, now time.Time) payroll.PayrollRun {
	out := cloneRun(run)
	out.Exported = true
	out.ExportedBy = &userID
	out.ExportedAt = &now
	out.UpdatedAt = now
	return out
}

func EnsureDeletable(run payroll.PayrollRun) error {
	if run.Status != payroll.RunStatusDraft {
		return payroll.ErrCanOnlyDeleteDraft
	}
	return nil
}

// ========== ENTRY CHANGES ==========

// UpdateEntry merges manual field overrides into one entry of a draft run.
func UpdateEntry(run payroll.PayrollRun, req payroll.UpdatePayrollEntryRequest, now time.Time) (payroll.PayrollRun, error) {
	if run.Status != payroll.RunStatusDraft {
		return run, payroll.ErrRunNotEditable
	}
	idx := run.EntryByID(req.EntryID)
	if idx < 0 {
		return run, payroll.ErrPayrollEntryNotFound
	}

	out := cloneRun(run)
	e := &out.Entries[idx]

	merge(&e.Hours.Regular, req.RegularHours)
	merge(&e.Hours.Overtime, req.OvertimeHours)
	merge(&e.Hours.DoubleTime, req.DoubleTimeHours)
	merge(&e.Hours.PTO, req.PTOHours)
	merge(&e.Hours.Sick, req.SickHours)
	merge(&e.Hours.Holiday, req.HolidayHours)

	before := paySum(e.Pay)
	merge(&e.Pay.Regular, req.RegularPay)
	merge(&e.Pay.Overtime, req.OvertimePay)
	merge(&e.Pay.DoubleTime, req.DoubleTimePay)
	merge(&e.Pay.PTO, req.PTOPay)
	merge(&e.Pay.Sick, req.SickPay)
	merge(&e.Pay.Holiday, req.HolidayPay)
	merge(&e.Pay.Bonuses, req.Bonuses)
	merge(&e.Pay.Commissions, req.Commissions)
	merge(&e.Pay.Reimbursements, req.Reimbursements)
	if req.GrossPay != nil {
		e.GrossPay = req.GrossPay.Round(2)
	} else {
		e.GrossPay = e.GrossPay.Add(paySum(e.Pay).Sub(before))
	}

	merge(&e.Taxes.Federal, req.FederalWithholding)
	merge(&e.Taxes.State, req.StateWithholding)
	merge(&e.Taxes.SocialSecurity, req.SocialSecurity)
	merge(&e.Taxes.Medicare, req.Medicare)
	merge(&e.Taxes.Local, req.LocalTax)

	merge(&e.Deductions.Retirement401k, req.Retirement401k)
	merge(&e.Deductions.HealthInsurance, req.HealthInsurance)
	merge(&e.Deductions.Other, req.OtherDeductions)

	if e.GrossPay.IsNegative() {
		var errs validator.ValidationErrors
		errs.Add("gross_pay", "must be non-negative")
		return run, errs
	}

	e.HasManualOverrides = true
	refreshEntry(e)
	RecalculateTotals(&out)
	out.UpdatedAt = now
	return out, nil
}

// AddAdjustment appends an adjustment to an entry of a draft or approved run.
// When table is non-nil the entry's taxes and retirement contribution are recomputed
// against the adjusted wages.
func AddAdjustment(run payroll.PayrollRun, entryID string, adj payroll.PayrollAdjustment, table *TaxTable, now time.Time) (payroll.PayrollRun, error) {
	if run.Status == payroll.RunStatusCompleted {
		return run, payroll.ErrRunCompleted
	}
	idx := run.EntryByID(entryID)
	if idx < 0 {
		return run, payroll.ErrPayrollEntryNotFound
	}

	out := cloneRun(run)
	e := &out.Entries[idx]

	if adj.ID == "" {
		adj.ID = NewID()
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = now
	}
	adj.Amount = adj.Amount.Round(2)

	if !adj.Taxable {
		e.Pay.Reimbursements = e.Pay.Reimbursements.Add(adj.Amount)
	}
	e.GrossPay = e.GrossPay.Add(adj.Amount)
	if e.GrossPay.IsNegative() || e.Pay.Reimbursements.IsNegative() {
		var errs validator.ValidationErrors
		errs.Add("amount", fmt.Sprintf("would make entry %s negative", entryID))
		return run, errs
	}
	e.Adjustments = append(e.Adjustments, adj)

	if table != nil {
		wages := e.GrossPay.Sub(e.Pay.Reimbursements)
		breakdown := table.CalculateTaxes(TaxInput{
			GrossPay:       wages,
			ScheduleType:   out.Period.ScheduleType,
			Withholding:    e.Withholding,
			StateCode:      e.StateCode,
			YTDGrossBefore: e.PriorYTD.Gross,
		})
		e.Taxes.Federal = breakdown.Federal
		e.Taxes.State = breakdown.State
		e.Taxes.SocialSecurity = breakdown.SocialSecurity
		e.Taxes.Medicare = breakdown.Medicare
		e.Deductions.Retirement401k = decimal.Zero
		if wages.IsPositive() {
			e.Deductions.Retirement401k = wages.Mul(e.RetirementPercent).Div(hundred).Round(2)
		}
	}

	refreshEntry(e)
	RecalculateTotals(&out)
	out.UpdatedAt = now
	return out, nil
}

// SumYTD folds an employee's figures across the completed runs paid in year.
func SumYTD(runs []payroll.PayrollRun, employeeID string, year int) payroll.YTDTotals {
	var total payroll.YTDTotals
	for _, run := range runs {
		if run.Status != payroll.RunStatusCompleted || run.Period.PayDate.Year() != year {
			continue
		}
		for _, e := range run.Entries {
			if e.EmployeeID == employeeID {
				total = total.Add(e.PeriodYTD())
			}
		}
	}
	return total
}

func merge(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = v.Round(2)
	}
}

func paySum(p payroll.PayBreakdown) decimal.Decimal {
	return p.Regular.Add(p.Overtime).Add(p.DoubleTime).
		Add(p.PTO).Add(p.Sick).Add(p.Holiday).
		Add(p.Bonuses).Add(p.Commissions).Add(p.Reimbursements)
}

// cloneRun copies the run deeply enough that edits to entries never alias the input.
func cloneRun(run payroll.PayrollRun) payroll.PayrollRun {
	out := run
	out.Entries = make([]payroll.PayrollEntry, len(run.Entries))
	for i, e := range run.Entries {
		e.TimeEntryIDs = append([]string(nil), e.TimeEntryIDs...)
		e.Adjustments = append([]payroll.PayrollAdjustment(nil), e.Adjustments...)
		out.Entries[i] = e
	}
	return out
}
