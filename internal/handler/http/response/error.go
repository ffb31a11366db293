package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	case errors.Is(err, payroll.ErrCompanyIDRequired):
		Forbidden(w, "Company membership required")

	// Not found
	case errors.Is(err, payroll.ErrPayrollRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrPayrollEntryNotFound):
		NotFound(w, "Payroll entry not found")
	case errors.Is(err, payroll.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, payroll.ErrPayrollSettingsNotFound):
		NotFound(w, "Payroll settings not found")

	// Lifecycle violations
	case errors.Is(err, payroll.ErrCanOnlyDeleteDraft):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrInvalidStatusTransition):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrRunNotEditable):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrRunCompleted):
		Conflict(w, err.Error())

	// Bad input
	case errors.Is(err, payroll.ErrInvalidScheduleType):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrUnsupportedExportFormat):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrNoEmployeesForRun):
		BadRequest(w, err.Error(), nil)

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
