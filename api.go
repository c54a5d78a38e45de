package formkeep

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the diagnostics HTTP router:
//
//	GET  /forms                   registry + persisted summaries
//	POST /forms/save              persist all forms now
//	POST /forms/restore           restore all forms now
//	POST /forms/clear             clear all persisted state
//	POST /forms/{formID}/save     and the per-form variants
func (k *Keeper) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/forms", func(w http.ResponseWriter, req *http.Request) {
		ins, err := k.Inspect(req.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ins)
	})

	r.Post("/forms/save", k.opHandler(k.Save, ""))
	r.Post("/forms/restore", k.opHandler(k.Restore, ""))
	r.Post("/forms/clear", k.opHandler(k.Clear, ""))

	r.Post("/forms/{formID}/save", k.opHandler(k.Save, "formID"))
	r.Post("/forms/{formID}/restore", k.opHandler(k.Restore, "formID"))
	r.Post("/forms/{formID}/clear", k.opHandler(k.Clear, "formID"))

	return r
}

func (k *Keeper) opHandler(op func(ctx context.Context, formID string) error, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		formID := ""
		if param != "" {
			formID = chi.URLParam(req, param)
		}
		if err := op(req.Context(), formID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrUnknownForm) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
