package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

// exportSessions выгружает живые сессии мастера в Excel для стаффа.
func (h *Handler) exportSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.List(r.Context())
	if err != nil {
		h.log.Error("session list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"session_id",
		"created_at",
		"current_step",
		"glass_category",
		"flow_type",
		"task_id",
		"quote_id",
		"generation_error",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	row := 2
	for _, s := range list {
		glass := ""
		if s.Glass != nil {
			glass = string(s.Glass.Category)
		}
		excelRow := []interface{}{
			s.ID,
			s.CreatedAt.Format(time.RFC3339),
			s.CurrentStep.Name(),
			glass,
			string(s.FlowType()),
			s.TaskID,
			s.QuoteID,
			s.GenerationError,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to build export")
			return
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to build export")
			return
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write export")
		return
	}

	fileName := fmt.Sprintf("wizard_sessions_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	_, _ = w.Write(buf.Bytes())
}
