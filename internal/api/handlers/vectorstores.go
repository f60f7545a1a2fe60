package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/ragdesk/internal/rag"
)

type VectorStoreHandler struct {
	svc       *rag.Service
	apiPrefix string
}

func NewVectorStoreHandler(svc *rag.Service, apiPrefix string) *VectorStoreHandler {
	return &VectorStoreHandler{svc: svc, apiPrefix: apiPrefix}
}

type createStoreResponse struct {
	StoreID   string `json:"storeId"`
	TaskID    string `json:"taskId"`
	StatusURL string `json:"statusUrl"`
}

func (h *VectorStoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rag.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, createStoreResponse{
		StoreID:   rec.ID,
		TaskID:    rec.ID,
		StatusURL: h.apiPrefix + "/vector-stores/" + rec.ID,
	})
}

func (h *VectorStoreHandler) List(w http.ResponseWriter, r *http.Request) {
	stores, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stores)
}

func (h *VectorStoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *VectorStoreHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.TaskStatus(r.Context(), chi.URLParam(r, "storeId"), chi.URLParam(r, "taskId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *VectorStoreHandler) Recall(w http.ResponseWriter, r *http.Request) {
	var req rag.RecallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.svc.Recall(r.Context(), chi.URLParam(r, "storeId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
