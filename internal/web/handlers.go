package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/gateway"
	"github.com/hpungsan/recap/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *db.Handle
	gen      gateway.Generator
	cfg      *config.Config
	logger   *zap.Logger
	renderer *Renderer
}

// database returns the open store or renders STORAGE_UNAVAILABLE.
func (h *Handlers) database(w http.ResponseWriter, r *http.Request) (*sql.DB, bool) {
	database, err := h.store.DB(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return nil, false
	}
	return database, true
}

// HandleHome handles GET / — the analyze form.
func (h *Handlers) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "home", HomePageData{
		PageData: h.renderer.page("Analyze", "analyze"),
	})
}

// HandleSummarize handles POST /summarize — generate and save both reports.
// Failures re-render the form with the submitted text so nothing has to be pasted again.
func (h *Handlers) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	text := r.FormValue("text")

	data := HomePageData{
		PageData: h.renderer.page("Analyze", "analyze"),
		Text:     text,
		Stats:    ops.Stats(ops.StatsInput{Text: text}),
	}

	database, err := h.store.DB(r.Context())
	if err == nil {
		var out *ops.SummarizeOutput
		out, err = ops.Summarize(r.Context(), database, h.gen, h.cfg, h.logger, ops.SummarizeInput{Text: text})
		if err == nil {
			if wantsJSON(r) {
				renderJSON(w, http.StatusOK, out)
				return
			}
			data.Result = out
			data.NarrativeHTML = renderMarkdown(out.Summary.Narrative)
			data.TechnicalHTML = renderMarkdown(out.Summary.Technical)
			h.renderer.renderPage(w, r, "home", data)
			return
		}
	}

	rErr := asRecapError(err)
	if wantsJSON(r) {
		renderJSON(w, rErr.Status, errorBody(rErr))
		return
	}
	data.Error = rErr.Message
	h.renderer.renderPageStatus(w, r, rErr.Status, "home", data)
}

// HandleHistory handles GET /history — saved summaries, most recent first.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	database, ok := h.database(w, r)
	if !ok {
		return
	}

	result, err := ops.ListHistory(r.Context(), database, h.cfg, ops.ListHistoryInput{
		Limit:  parseIntParam(r, "limit", 0),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "history", HistoryPageData{
		PageData:   h.renderer.page("History", "history"),
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleDetail handles GET /history/{id} — view a saved summary.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	database, ok := h.database(w, r)
	if !ok {
		return
	}

	s, err := ops.FetchSummary(r.Context(), database, ops.FetchSummaryInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, s)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:      h.renderer.page(s.Title, "history"),
		Summary:       s,
		NarrativeHTML: renderMarkdown(s.Narrative),
		TechnicalHTML: renderMarkdown(s.Technical),
	})
}

// HandleDeleteSummary handles DELETE /history/{id}.
func (h *Handlers) HandleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	database, ok := h.database(w, r)
	if !ok {
		return
	}

	result, err := ops.DeleteSummary(r.Context(), database, ops.DeleteSummaryInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	respondAfterWrite(w, r, "/history", result)
}

// HandleSettings handles GET /settings — instruction templates.
// ?edit={id} prefills the form with an existing template.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	database, ok := h.database(w, r)
	if !ok {
		return
	}

	result, err := ops.ListInstructions(r.Context(), database)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data := SettingsPageData{
		PageData: h.renderer.page("Settings", "settings"),
		Items:    result.Items,
		ActiveID: result.ActiveID,
	}
	if editID := int64(parseIntParam(r, "edit", 0)); editID > 0 {
		for i := range result.Items {
			if result.Items[i].ID == editID {
				data.Editing = &result.Items[i]
				break
			}
		}
	}
	h.renderer.renderPage(w, r, "settings", data)
}

// HandleSaveInstruction handles POST /settings/instructions — create or edit a template.
func (h *Handlers) HandleSaveInstruction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input := ops.SaveInstructionInput{
		Name:     r.FormValue("name"),
		Content:  r.FormValue("content"),
		Activate: r.FormValue("activate") == "true" || r.FormValue("activate") == "on",
	}
	if s := r.FormValue("id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("id must be an integer"))
			return
		}
		input.ID = id
	}

	database, ok := h.database(w, r)
	if !ok {
		return
	}

	result, err := ops.SaveInstruction(r.Context(), database, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	respondAfterWrite(w, r, "/settings", result)
}

// HandleActivateInstruction handles POST /settings/instructions/{id}/activate.
func (h *Handlers) HandleActivateInstruction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	database, ok := h.database(w, r)
	if !ok {
		return
	}

	result, err := ops.ActivateInstruction(r.Context(), database, ops.ActivateInstructionInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	respondAfterWrite(w, r, "/settings", result)
}

// HandleDeleteInstruction handles DELETE /settings/instructions/{id}.
func (h *Handlers) HandleDeleteInstruction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	database, ok := h.database(w, r)
	if !ok {
		return
	}

	result, err := ops.DeleteInstruction(r.Context(), database, ops.DeleteInstructionInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	respondAfterWrite(w, r, "/settings", result)
}

// respondAfterWrite finishes a mutating request: HX-Redirect for htmx,
// the result for JSON clients, otherwise a redirect to target.
func respondAfterWrite(w http.ResponseWriter, r *http.Request, target string, result any) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest("id must be a positive integer")
	}
	return id, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
