package payroll

import (
	"path/filepath"
	"testing"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalTables = `
tax_years:
  - year: 2023
    allowance_value: 4000
    social_security: { rate: 0.062, wage_base: 160200 }
    medicare: { rate: 0.0145, additional_rate: 0.009, additional_threshold: 200000 }
    federal:
      single:
        standard_deduction: 13850
        brackets:
          - { up_to: 11000, rate: 0.10 }
          - { rate: 0.12 }
      married_filing_jointly:
        standard_deduction: 27700
        brackets:
          - { up_to: 22000, rate: 0.10 }
          - { rate: 0.12 }
    state_rates:
      tx: 0
      ca: 0.06
  - year: 2025
    allowance_value: 4300
    social_security: { rate: 0.062, wage_base: 176100 }
    medicare: { rate: 0.0145, additional_rate: 0.009, additional_threshold: 200000 }
    federal:
      single:
        standard_deduction: 15000
        brackets:
          - { rate: 0.10 }
      married_filing_jointly:
        standard_deduction: 30000
        brackets:
          - { rate: 0.10 }
`

func TestParseTaxTables(t *testing.T) {
	set, err := ParseTaxTables([]byte(minimalTables))
	require.NoError(t, err)

	assert.Equal(t, []int{2023, 2025}, set.Years())

	t2023 := set.ForYear(2023)
	assert.Equal(t, 2023, t2023.Year)
	assertMoney(t, "160200", t2023.SocialSecurityWageBase)
	assertMoney(t, "13850", t2023.Federal[payroll.FilingSingle].StandardDeduction)
	require.Len(t, t2023.Federal[payroll.FilingSingle].Brackets, 2)
	assert.True(t, t2023.Federal[payroll.FilingSingle].Brackets[1].Ceiling.IsZero())
	assert.True(t, t2023.HasStateRate("CA"), "state codes are normalized to upper case")
	assertMoney(t, "0.06", t2023.StateRates["CA"])
}

func TestTaxTableSet_ForYear(t *testing.T) {
	set, err := ParseTaxTables([]byte(minimalTables))
	require.NoError(t, err)

	cases := []struct {
		year int
		want int
	}{
		{2023, 2023},
		{2024, 2023}, // latest earlier year
		{2025, 2025},
		{2030, 2025},
		{2019, 2023}, // earliest when nothing precedes
	}
	for _, c := range cases {
		assert.Equal(t, c.want, set.ForYear(c.year).Year, "ForYear(%d)", c.year)
	}
}

func TestParseTaxTables_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty": `tax_years: []`,
		"missing filing status": `
tax_years:
  - year: 2024
    federal:
      single:
        brackets:
          - { rate: 0.1 }
`,
		"open bracket not last": `
tax_years:
  - year: 2024
    federal:
      single:
        brackets:
          - { rate: 0.1 }
          - { up_to: 1000, rate: 0.2 }
      married_filing_jointly:
        brackets:
          - { rate: 0.1 }
`,
		"rate above one": `
tax_years:
  - year: 2024
    federal:
      single:
        brackets:
          - { rate: 1.5 }
      married_filing_jointly:
        brackets:
          - { rate: 0.1 }
`,
		"not yaml": `tax_years: [`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTaxTables([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTaxTables_BundledFile(t *testing.T) {
	set, err := LoadTaxTables(filepath.Join("..", "..", "..", "configs", "tax_tables.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []int{2024, 2025}, set.Years())

	// The bundled 2024 table must agree with the built-in one.
	builtin := DefaultTaxTables().ForYear(2024)
	loaded := set.ForYear(2024)
	in := FederalInput{GrossPay: dec("1187.50"), ScheduleType: payroll.ScheduleWeekly, FilingStatus: payroll.FilingSingle}
	assert.True(t, builtin.CalculateFederalWithholding(in).Equal(loaded.CalculateFederalWithholding(in)))
	assert.Equal(t, len(builtin.StateRates), len(loaded.StateRates))
}

func TestLoadTaxTables_MissingFile(t *testing.T) {
	_, err := LoadTaxTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
