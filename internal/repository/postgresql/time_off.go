package postgresql

import (
	"context"
	"fmt"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type timeOffRepository struct {
	db *database.DB
}

// NewTimeOffRepository returns a TimeOffProvider reading approved time off.
func NewTimeOffRepository(db *database.DB) payroll.TimeOffProvider {
	return &timeOffRepository{db: db}
}

func (r *timeOffRepository) TimeOffHours(ctx context.Context, companyID, employeeID string, period payroll.PayPeriod) (payroll.TimeOffHours, error) {
	q := GetQuerier(ctx, r.db)

	// Dates are compared as calendar days in the period's own location.
	query := `
		SELECT category, COALESCE(SUM(hours), 0)
		FROM time_off_entries
		WHERE company_id = $1
		  AND employee_id = $2
		  AND status = 'approved'
		  AND work_date BETWEEN $3::date AND $4::date
		GROUP BY category
	`

	rows, err := q.Query(ctx, query, companyID, employeeID,
		period.StartDate.Format("2006-01-02"),
		period.EndDate.Format("2006-01-02"),
	)
	if err != nil {
		return payroll.TimeOffHours{}, fmt.Errorf("failed to get time off hours: %w", err)
	}
	defer rows.Close()

	var hours payroll.TimeOffHours
	for rows.Next() {
		var (
			category string
			total    decimal.Decimal
		)
		if err := rows.Scan(&category, &total); err != nil {
			return payroll.TimeOffHours{}, fmt.Errorf("failed to scan time off hours: %w", err)
		}
		switch category {
		case "pto":
			hours.PTO = total
		case "sick":
			hours.Sick = total
		case "holiday":
			hours.Holiday = total
		}
	}
	if err := rows.Err(); err != nil {
		return payroll.TimeOffHours{}, fmt.Errorf("failed to iterate time off hours: %w", err)
	}

	return hours, nil
}
