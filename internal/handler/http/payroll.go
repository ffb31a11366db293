package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/buildcrew/payroll-service/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Settings
	GetSettings(w http.ResponseWriter, r *http.Request)
	UpdateSettings(w http.ResponseWriter, r *http.Request)

	// Calculators
	PreviewPayPeriod(w http.ResponseWriter, r *http.Request)
	CalculateTaxes(w http.ResponseWriter, r *http.Request)

	// Runs
	GenerateRun(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	ApproveRun(w http.ResponseWriter, r *http.Request)
	CompleteRun(w http.ResponseWriter, r *http.Request)
	MarkRunExported(w http.ResponseWriter, r *http.Request)
	DeleteRun(w http.ResponseWriter, r *http.Request)
	ExportRun(w http.ResponseWriter, r *http.Request)

	// Entries
	UpdateEntry(w http.ResponseWriter, r *http.Request)
	AddAdjustment(w http.ResponseWriter, r *http.Request)
	GetPayStub(w http.ResponseWriter, r *http.Request)

	// Year to date
	GetEmployeeYTD(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== SETTINGS ==========

func (h *payrollHandlerImpl) GetSettings(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetSettings(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req payroll.UpdatePayrollSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.UpdateSettings(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== CALCULATORS ==========

func (h *payrollHandlerImpl) PreviewPayPeriod(w http.ResponseWriter, r *http.Request) {
	req := payroll.PreviewPayPeriodRequest{
		ScheduleType: r.URL.Query().Get("schedule_type"),
	}
	if ref := r.URL.Query().Get("reference_date"); ref != "" {
		req.ReferenceDate = &ref
	}

	result, err := h.payrollService.PreviewPayPeriod(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) CalculateTaxes(w http.ResponseWriter, r *http.Request) {
	var req payroll.TaxPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.CalculateTaxPreview(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) GenerateRun(w http.ResponseWriter, r *http.Request) {
	var req payroll.GeneratePayrollRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.GeneratePayrollRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run generated", result)
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	result, err := h.payrollService.GetPayrollRun(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := payroll.RunFilter{
		Page:  1,
		Limit: 20,
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			response.BadRequest(w, "Invalid year", nil)
			return
		}
		filter.Year = &year
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = &status
	}

	result, err := h.payrollService.ListPayrollRuns(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Data, response.NewMeta(result.Page, result.Limit, result.TotalCount))
}

func (h *payrollHandlerImpl) ApproveRun(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.payrollService.ApprovePayrollRun, "Payroll run approved")
}

func (h *payrollHandlerImpl) CompleteRun(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.payrollService.CompletePayrollRun, "Payroll run completed")
}

func (h *payrollHandlerImpl) MarkRunExported(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.payrollService.MarkPayrollRunExported, "Payroll run marked as exported")
}

func (h *payrollHandlerImpl) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id string) (payroll.PayrollRunResponse, error),
	message string,
) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	result, err := fn(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, message, result)
}

func (h *payrollHandlerImpl) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	if err := h.payrollService.DeletePayrollRun(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run deleted successfully", nil)
}

func (h *payrollHandlerImpl) ExportRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	format := payroll.ExportFormat(r.URL.Query().Get("format"))
	file, err := h.payrollService.ExportPayrollRun(r.Context(), id, format)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, file.Filename, file.ContentType, file.Data)
}

// ========== ENTRIES ==========

func (h *payrollHandlerImpl) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryId")
	if runID == "" || entryID == "" {
		response.BadRequest(w, "Run ID and entry ID are required", nil)
		return
	}

	var req payroll.UpdatePayrollEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = runID
	req.EntryID = entryID

	result, err := h.payrollService.UpdatePayrollEntry(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryId")
	if runID == "" || entryID == "" {
		response.BadRequest(w, "Run ID and entry ID are required", nil)
		return
	}

	var req payroll.AddPayrollAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = runID
	req.EntryID = entryID

	result, err := h.payrollService.AddPayrollAdjustment(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Adjustment added", result)
}

func (h *payrollHandlerImpl) GetPayStub(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryId")
	if runID == "" || entryID == "" {
		response.BadRequest(w, "Run ID and entry ID are required", nil)
		return
	}

	file, err := h.payrollService.GeneratePayStub(r.Context(), runID, entryID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, file.Filename, file.ContentType, file.Data)
}

// ========== YEAR TO DATE ==========

func (h *payrollHandlerImpl) GetEmployeeYTD(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	if employeeID == "" {
		response.BadRequest(w, "Employee ID is required", nil)
		return
	}

	year := 0
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil || y < 1 {
			response.BadRequest(w, "Invalid year", nil)
			return
		}
		year = y
	}

	result, err := h.payrollService.GetEmployeeYTD(r.Context(), employeeID, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
