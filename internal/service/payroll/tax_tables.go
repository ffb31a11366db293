package payroll

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TaxBracket is one marginal band. A zero Ceiling marks the open-ended top band.
type TaxBracket struct {
	Ceiling decimal.Decimal
	Rate    decimal.Decimal
}

// FederalSchedule holds the filing-status dependent federal parameters.
type FederalSchedule struct {
	StandardDeduction decimal.Decimal
	Brackets          []TaxBracket
}

// TaxTable is the immutable rate data for one tax year. Do not mutate after construction.
type TaxTable struct {
	Year                        int
	AllowanceValue              decimal.Decimal
	Federal                     map[payroll.FilingStatus]FederalSchedule
	SocialSecurityRate          decimal.Decimal
	SocialSecurityWageBase      decimal.Decimal
	MedicareRate                decimal.Decimal
	AdditionalMedicareRate      decimal.Decimal
	AdditionalMedicareThreshold decimal.Decimal
	StateRates                  map[string]decimal.Decimal
}

// HasStateRate reports whether the state code appears in the table at all.
func (t *TaxTable) HasStateRate(code string) bool {
	_, ok := t.StateRates[strings.ToUpper(code)]
	return ok
}

func (t *TaxTable) validate() error {
	if t.Year <= 0 {
		return fmt.Errorf("%w: year must be positive", payroll.ErrInvalidTaxTable)
	}
	for _, status := range []payroll.FilingStatus{payroll.FilingSingle, payroll.FilingMarriedFilingJointly} {
		schedule, ok := t.Federal[status]
		if !ok {
			return fmt.Errorf("%w: %d missing federal schedule for %s", payroll.ErrInvalidTaxTable, t.Year, status)
		}
		if len(schedule.Brackets) == 0 {
			return fmt.Errorf("%w: %d %s has no brackets", payroll.ErrInvalidTaxTable, t.Year, status)
		}
		prev := decimal.Zero
		for i, b := range schedule.Brackets {
			last := i == len(schedule.Brackets)-1
			if b.Ceiling.IsZero() != last {
				return fmt.Errorf("%w: %d %s only the last bracket may be open-ended", payroll.ErrInvalidTaxTable, t.Year, status)
			}
			if !last && !b.Ceiling.GreaterThan(prev) {
				return fmt.Errorf("%w: %d %s brackets must ascend", payroll.ErrInvalidTaxTable, t.Year, status)
			}
			if !validRate(b.Rate) {
				return fmt.Errorf("%w: %d %s bracket rate out of range", payroll.ErrInvalidTaxTable, t.Year, status)
			}
			prev = b.Ceiling
		}
	}
	for _, r := range []decimal.Decimal{t.SocialSecurityRate, t.MedicareRate, t.AdditionalMedicareRate} {
		if !validRate(r) {
			return fmt.Errorf("%w: %d FICA rate out of range", payroll.ErrInvalidTaxTable, t.Year)
		}
	}
	for code, r := range t.StateRates {
		if !validRate(r) {
			return fmt.Errorf("%w: %d state %s rate out of range", payroll.ErrInvalidTaxTable, t.Year, code)
		}
	}
	return nil
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(decimal.NewFromInt(1))
}

// TaxTableSet indexes tax tables by year.
type TaxTableSet struct {
	tables []*TaxTable // ascending by Year
}

func NewTaxTableSet(tables ...*TaxTable) (*TaxTableSet, error) {
	if len(tables) == 0 {
		return nil, payroll.ErrTaxTableNotFound
	}
	seen := make(map[int]bool, len(tables))
	sorted := make([]*TaxTable, 0, len(tables))
	for _, t := range tables {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if seen[t.Year] {
			return nil, fmt.Errorf("%w: duplicate year %d", payroll.ErrInvalidTaxTable, t.Year)
		}
		seen[t.Year] = true
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })
	return &TaxTableSet{tables: sorted}, nil
}

// ForYear returns the table for year, else the latest earlier year, else the earliest table.
func (s *TaxTableSet) ForYear(year int) *TaxTable {
	var match *TaxTable
	for _, t := range s.tables {
		if t.Year <= year {
			match = t
		}
	}
	if match == nil {
		return s.tables[0]
	}
	return match
}

func (s *TaxTableSet) Years() []int {
	years := make([]int, 0, len(s.tables))
	for _, t := range s.tables {
		years = append(years, t.Year)
	}
	return years
}

// ========== YAML LOADING ==========

type taxFile struct {
	TaxYears []taxYearDoc `yaml:"tax_years"`
}

type taxYearDoc struct {
	Year           int                   `yaml:"year"`
	AllowanceValue float64               `yaml:"allowance_value"`
	SocialSecurity ficaDoc               `yaml:"social_security"`
	Medicare       ficaDoc               `yaml:"medicare"`
	Federal        map[string]federalDoc `yaml:"federal"`
	StateRates     map[string]float64    `yaml:"state_rates"`
}

type ficaDoc struct {
	Rate                float64 `yaml:"rate"`
	WageBase            float64 `yaml:"wage_base"`
	AdditionalRate      float64 `yaml:"additional_rate"`
	AdditionalThreshold float64 `yaml:"additional_threshold"`
}

type federalDoc struct {
	StandardDeduction float64      `yaml:"standard_deduction"`
	Brackets          []bracketDoc `yaml:"brackets"`
}

type bracketDoc struct {
	UpTo *float64 `yaml:"up_to"`
	Rate float64  `yaml:"rate"`
}

// LoadTaxTables reads a YAML tax table file.
func LoadTaxTables(path string) (*TaxTableSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tax tables: %w", err)
	}
	return ParseTaxTables(data)
}

func ParseTaxTables(data []byte) (*TaxTableSet, error) {
	var doc taxFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", payroll.ErrInvalidTaxTable, err)
	}

	tables := make([]*TaxTable, 0, len(doc.TaxYears))
	for _, y := range doc.TaxYears {
		t := &TaxTable{
			Year:                        y.Year,
			AllowanceValue:              decimal.NewFromFloat(y.AllowanceValue),
			Federal:                     make(map[payroll.FilingStatus]FederalSchedule, len(y.Federal)),
			SocialSecurityRate:          decimal.NewFromFloat(y.SocialSecurity.Rate),
			SocialSecurityWageBase:      decimal.NewFromFloat(y.SocialSecurity.WageBase),
			MedicareRate:                decimal.NewFromFloat(y.Medicare.Rate),
			AdditionalMedicareRate:      decimal.NewFromFloat(y.Medicare.AdditionalRate),
			AdditionalMedicareThreshold: decimal.NewFromFloat(y.Medicare.AdditionalThreshold),
			StateRates:                  make(map[string]decimal.Decimal, len(y.StateRates)),
		}
		for status, f := range y.Federal {
			schedule := FederalSchedule{StandardDeduction: decimal.NewFromFloat(f.StandardDeduction)}
			for _, b := range f.Brackets {
				bracket := TaxBracket{Rate: decimal.NewFromFloat(b.Rate)}
				if b.UpTo != nil {
					bracket.Ceiling = decimal.NewFromFloat(*b.UpTo)
				}
				schedule.Brackets = append(schedule.Brackets, bracket)
			}
			t.Federal[payroll.FilingStatus(status)] = schedule
		}
		for code, rate := range y.StateRates {
			t.StateRates[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
		}
		tables = append(tables, t)
	}
	return NewTaxTableSet(tables...)
}

// ========== BUILT-IN TABLES ==========

// DefaultTaxTables returns the built-in estimates. These are not legally accurate.
func DefaultTaxTables() *TaxTableSet {
	set, err := NewTaxTableSet(defaultTaxTable2024())
	if err != nil {
		panic("built-in tax table is invalid: " + err.Error())
	}
	return set
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func defaultTaxTable2024() *TaxTable {
	return &TaxTable{
		Year:           2024,
		AllowanceValue: d("4300"),
		Federal: map[payroll.FilingStatus]FederalSchedule{
			payroll.FilingSingle: {
				StandardDeduction: d("14600"),
				Brackets: []TaxBracket{
					{Ceiling: d("11600"), Rate: d("0.10")},
					{Ceiling: d("47150"), Rate: d("0.12")},
					{Ceiling: d("100525"), Rate: d("0.22")},
					{Ceiling: d("191950"), Rate: d("0.24")},
					{Ceiling: d("243725"), Rate: d("0.32")},
					{Ceiling: d("609350"), Rate: d("0.35")},
					{Rate: d("0.37")},
				},
			},
			payroll.FilingMarriedFilingJointly: {
				StandardDeduction: d("29200"),
				Brackets: []TaxBracket{
					{Ceiling: d("23200"), Rate: d("0.10")},
					{Ceiling: d("94300"), Rate: d("0.12")},
					{Ceiling: d("201050"), Rate: d("0.22")},
					{Ceiling: d("383900"), Rate: d("0.24")},
					{Ceiling: d("487450"), Rate: d("0.32")},
					{Ceiling: d("731200"), Rate: d("0.35")},
					{Rate: d("0.37")},
				},
			},
		},
		SocialSecurityRate:          d("0.062"),
		SocialSecurityWageBase:      d("168600"),
		MedicareRate:                d("0.0145"),
		AdditionalMedicareRate:      d("0.009"),
		AdditionalMedicareThreshold: d("200000"),
		StateRates:                  defaultStateRates(),
	}
}

// defaultStateRates are flat approximations; listed states with 0 levy no wage income tax.
func defaultStateRates() map[string]decimal.Decimal {
	rates := map[string]string{
		"AL": "0.05", "AK": "0", "AZ": "0.025", "AR": "0.044", "CA": "0.06",
		"CO": "0.044", "CT": "0.05", "DE": "0.055", "DC": "0.065", "FL": "0",
		"GA": "0.0549", "HI": "0.07", "ID": "0.058", "IL": "0.0495", "IN": "0.0305",
		"IA": "0.057", "KS": "0.055", "KY": "0.04", "LA": "0.0425", "ME": "0.0675",
		"MD": "0.0475", "MA": "0.05", "MI": "0.0425", "MN": "0.0685", "MS": "0.047",
		"MO": "0.048", "MT": "0.059", "NE": "0.0584", "NV": "0", "NH": "0",
		"NJ": "0.0553", "NM": "0.049", "NY": "0.0585", "NC": "0.045", "ND": "0.0195",
		"OH": "0.035", "OK": "0.0475", "OR": "0.0875", "PA": "0.0307", "RI": "0.0475",
		"SC": "0.064", "SD": "0", "TN": "0", "TX": "0", "UT": "0.0465",
		"VT": "0.066", "VA": "0.0575", "WA": "0", "WV": "0.0512", "WI": "0.053",
		"WY": "0",
	}
	out := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		out[code] = d(rate)
	}
	return out
}
