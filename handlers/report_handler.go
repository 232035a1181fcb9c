package handlers

import (
	"log/slog"
	"net/http"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/services"
)

type ReportHandler struct {
	responder
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		responder:     newResponder(logger),
		reportService: reportService,
	}
}

type createReportRequest struct {
	TargetType  models.ReportTargetType `json:"target_type"`
	TargetID    string                  `json:"target_id"`
	Reason      models.ReportReason     `json:"reason"`
	Description string                  `json:"description"`
}

type moderateReportRequest struct {
	Action   models.ReportAction `json:"action"`
	Response string              `json:"response"`
}

func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req createReportRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	report, err := h.reportService.Create(r.Context(), userID, services.CreateReportInput{
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, jsonResponse{"report": report})
}

func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	q := newQueryReader(r)
	input := services.ListReportsInput{
		Status: models.ReportStatus(q.String("status")),
		Page:   q.Int("page", 0),
		Limit:  q.Int("limit", 0),
	}
	if !q.Valid() {
		h.failedValidationResponse(w, r, q.errors)
		return
	}

	page, err := h.reportService.List(r.Context(), userID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, page)
}

func (h *ReportHandler) ModerateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	reportID, ok := h.urlParam(w, r, "reportID")
	if !ok {
		return
	}

	var req moderateReportRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	report, err := h.reportService.Moderate(r.Context(), userID, reportID, services.ModerateReportInput{
		Action:   req.Action,
		Response: req.Response,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"report": report})
}
