package payroll

import (
	"strings"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FederalInput is the data the federal withholding formula needs for one period.
type FederalInput struct {
	GrossPay              decimal.Decimal
	ScheduleType          payroll.ScheduleType
	FilingStatus          payroll.FilingStatus
	Allowances            int
	AdditionalWithholding decimal.Decimal
	Exempt                bool
}

// TaxInput is one period's taxable wages together with the employee's tax profile.
type TaxInput struct {
	GrossPay       decimal.Decimal
	ScheduleType   payroll.ScheduleType
	Withholding    payroll.WithholdingProfile
	StateCode      string
	YTDGrossBefore decimal.Decimal
}

// CalculateFederalWithholding annualizes the period's gross, applies the bracket table
// for the filing status and de-annualizes the result.
func (t *TaxTable) CalculateFederalWithholding(in FederalInput) decimal.Decimal {
	if in.Exempt || !in.GrossPay.IsPositive() {
		return decimal.Zero
	}

	periods := decimal.NewFromInt(int64(PeriodsPerYear(in.ScheduleType)))
	schedule, ok := t.Federal[in.FilingStatus]
	if !ok {
		schedule = t.Federal[payroll.FilingSingle]
	}

	annual := in.GrossPay.Mul(periods)
	allowances := t.AllowanceValue.Mul(decimal.NewFromInt(int64(in.Allowances)))
	taxable := decimal.Max(decimal.Zero, annual.Sub(schedule.StandardDeduction).Sub(allowances))

	annualTax := bracketTax(schedule.Brackets, taxable)
	withholding := annualTax.Div(periods).Add(in.AdditionalWithholding)
	return decimal.Max(decimal.Zero, withholding).Round(2)
}

func bracketTax(brackets []TaxBracket, taxable decimal.Decimal) decimal.Decimal {
	tax := decimal.Zero
	remaining := taxable
	floor := decimal.Zero
	for _, b := range brackets {
		if !remaining.IsPositive() {
			break
		}
		width := remaining
		if !b.Ceiling.IsZero() {
			width = decimal.Min(remaining, b.Ceiling.Sub(floor))
			floor = b.Ceiling
		}
		tax = tax.Add(width.Mul(b.Rate))
		remaining = remaining.Sub(width)
	}
	return tax
}

// CalculateStateWithholding applies the state's flat rate. Unknown states withhold nothing.
func (t *TaxTable) CalculateStateWithholding(gross decimal.Decimal, stateCode string) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	rate, ok := t.StateRates[strings.ToUpper(stateCode)]
	if !ok {
		return decimal.Zero
	}
	return gross.Mul(rate).Round(2)
}

// CalculateSocialSecurity taxes only the wages still under the annual wage base.
func (t *TaxTable) CalculateSocialSecurity(gross, ytdGrossBefore decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() || ytdGrossBefore.GreaterThanOrEqual(t.SocialSecurityWageBase) {
		return decimal.Zero
	}
	taxable := decimal.Min(gross, t.SocialSecurityWageBase.Sub(ytdGrossBefore))
	return taxable.Mul(t.SocialSecurityRate).Round(2)
}

// CalculateMedicare adds the additional rate on the part of this period's wages above the threshold.
func (t *TaxTable) CalculateMedicare(gross, ytdGrossBefore decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	base := gross.Mul(t.MedicareRate)

	threshold := t.AdditionalMedicareThreshold
	ytdAfter := ytdGrossBefore.Add(gross)
	over := decimal.Max(decimal.Zero, ytdAfter.Sub(threshold)).
		Sub(decimal.Max(decimal.Zero, ytdGrossBefore.Sub(threshold)))

	return base.Add(over.Mul(t.AdditionalMedicareRate)).Round(2)
}

// CalculateTaxes runs every withholding component for one period.
func (t *TaxTable) CalculateTaxes(in TaxInput) payroll.TaxBreakdown {
	federal := t.CalculateFederalWithholding(FederalInput{
		GrossPay:              in.GrossPay,
		ScheduleType:          in.ScheduleType,
		FilingStatus:          in.Withholding.FilingStatus,
		Allowances:            in.Withholding.Allowances,
		AdditionalWithholding: in.Withholding.AdditionalWithholding,
		Exempt:                in.Withholding.Exempt,
	})
	state := t.CalculateStateWithholding(in.GrossPay, in.StateCode)
	socialSecurity := t.CalculateSocialSecurity(in.GrossPay, in.YTDGrossBefore)
	medicare := t.CalculateMedicare(in.GrossPay, in.YTDGrossBefore)

	total := federal.Add(state).Add(socialSecurity).Add(medicare)
	effective := decimal.Zero
	if in.GrossPay.IsPositive() {
		effective = total.Div(in.GrossPay).Mul(hundred).Round(2)
	}

	return payroll.TaxBreakdown{
		GrossPay:       in.GrossPay,
		Federal:        federal,
		State:          state,
		SocialSecurity: socialSecurity,
		Medicare:       medicare,
		TotalTax:       total,
		EffectiveRate:  effective,
	}
}
