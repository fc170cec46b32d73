package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/drafter/internal/export"
)

func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	session, err := h.runner.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	data := export.CSV(session, h.profile)
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(h.now())))
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write CSV export", "session_id", session.ID, "err", err)
	}
}

func (h *Handler) HandleExportParquet(w http.ResponseWriter, r *http.Request) {
	session, err := h.runner.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteParquet(&buf, session); err != nil {
		h.writeError(w, "Failed to build archive: "+err.Error(), http.StatusInternalServerError)
		return
	}

	name := strings.TrimSuffix(export.FileName(h.now()), ".csv") + ".parquet"
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Unable to write parquet export", "session_id", session.ID, "err", err)
	}
}
