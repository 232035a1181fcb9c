package handlers

import (
	"log/slog"
	"net/http"

	"github.com/orbisplace/orbis-api/services"
)

type TaxonomyHandler struct {
	responder
	taxonomyService services.TaxonomyService
}

func NewTaxonomyHandler(taxonomyService services.TaxonomyService, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		responder:       newResponder(logger),
		taxonomyService: taxonomyService,
	}
}

func (h *TaxonomyHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.taxonomyService.ListCategories(r.Context())
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"categories": categories})
}

func (h *TaxonomyHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	slug, ok := h.urlParam(w, r, "slug")
	if !ok {
		return
	}

	category, err := h.taxonomyService.GetCategory(r.Context(), slug)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"category": category})
}

func (h *TaxonomyHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.taxonomyService.ListTags(r.Context())
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"tags": tags})
}

func (h *TaxonomyHandler) PopularTags(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	limit := q.Int("limit", 0)
	if !q.Valid() {
		h.failedValidationResponse(w, r, q.errors)
		return
	}

	tags, err := h.taxonomyService.PopularTags(r.Context(), limit)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"tags": tags})
}

func (h *TaxonomyHandler) GetTag(w http.ResponseWriter, r *http.Request) {
	slug, ok := h.urlParam(w, r, "slug")
	if !ok {
		return
	}

	tag, err := h.taxonomyService.GetTag(r.Context(), slug)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"tag": tag})
}
