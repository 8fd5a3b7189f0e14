package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DataHandler exposes the caller's free-form data records.
type DataHandler struct {
	vaults VaultProvider
}

func NewDataHandler(vaults VaultProvider) *DataHandler { return &DataHandler{vaults: vaults} }

type dataRequest struct {
	Info string `json:"info" validate:"required"`
}

func (h *DataHandler) List(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	recs, err := svc.ListData(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DataEnvelope{Data: recs})
}

func (h *DataHandler) Create(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	var req dataRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := svc.AddData(r.Context(), req.Info)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DataEnvelope{Data: rec})
}

func (h *DataHandler) Update(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	var req dataRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := svc.UpdateData(r.Context(), chi.URLParam(r, "recordID"), req.Info)
	if err != nil {
		httpError(w, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "record updated"})
}

func (h *DataHandler) Delete(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	deleted, err := svc.DeleteData(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		httpError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
