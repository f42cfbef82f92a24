package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"remind/internal/domain"
	"remind/internal/service"
	"remind/internal/store"
)

type LogStore interface {
	ListLogs(ctx context.Context, f store.LogFilter) ([]domain.ReminderLog, error)
}

type API struct {
	Rules     *service.RuleService
	Templates *service.TemplateService
	Settings  *service.SettingsService
	Stats     *service.StatsService
	Logs      LogStore
	Now       func() time.Time
}

func (a *API) Register(m *mux.Router) {
	m.HandleFunc("/v1/rules", a.handleListRules).Methods(http.MethodGet)
	m.HandleFunc("/v1/rules", a.handleCreateRule).Methods(http.MethodPost)
	m.HandleFunc("/v1/rules/{id}", a.handleGetRule).Methods(http.MethodGet)
	m.HandleFunc("/v1/rules/{id}", a.handleUpdateRule).Methods(http.MethodPut)
	m.HandleFunc("/v1/rules/{id}", a.handleDeleteRule).Methods(http.MethodDelete)
	m.HandleFunc("/v1/rules/{id}/test", a.handleTestRule).Methods(http.MethodPost)

	m.HandleFunc("/v1/templates", a.handleListTemplates).Methods(http.MethodGet)
	m.HandleFunc("/v1/templates", a.handleCreateTemplate).Methods(http.MethodPost)
	m.HandleFunc("/v1/templates/{id}", a.handleUpdateTemplate).Methods(http.MethodPut)
	m.HandleFunc("/v1/templates/{id}", a.handleDeleteTemplate).Methods(http.MethodDelete)

	m.HandleFunc("/v1/settings", a.handleGetSettings).Methods(http.MethodGet)
	m.HandleFunc("/v1/settings", a.handleUpdateSettings).Methods(http.MethodPut)

	m.HandleFunc("/v1/stats", a.handleStats).Methods(http.MethodGet)
	m.HandleFunc("/v1/logs", a.handleListLogs).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps domain errors onto status codes; anything unexpected is a
// dependency failure worth a log line.
func fail(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, ErrNotFound, http.StatusNotFound)
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error(what+" failed", "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
	}
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.Rules.GetRules(r.Context())
	if err != nil {
		fail(w, err, "list rules")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var in domain.ReminderRule
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	rule, err := a.Rules.CreateRule(r.Context(), in)
	if err != nil {
		fail(w, err, "create rule")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (a *API) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := a.Rules.GetRule(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "get rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var patch service.RulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	rule, err := a.Rules.UpdateRule(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		fail(w, err, "update rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := a.Rules.DeleteRule(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, err, "delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleTestRule(w http.ResponseWriter, r *http.Request) {
	subject, body, err := a.Rules.TestRule(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "test rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"subject": subject, "body": body})
}

func (a *API) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := a.Templates.GetTemplates(r.Context())
	if err != nil {
		fail(w, err, "list templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (a *API) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in domain.ReminderTemplate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	tpl, err := a.Templates.CreateTemplate(r.Context(), in)
	if err != nil {
		fail(w, err, "create template")
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (a *API) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var patch service.TemplatePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	tpl, err := a.Templates.UpdateTemplate(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		fail(w, err, "update template")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (a *API) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := a.Templates.DeleteTemplate(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, err, "delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.Settings.Get(r.Context())
	if err != nil {
		fail(w, err, "get settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in domain.ReminderSettings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := a.Settings.Update(r.Context(), in); err != nil {
		fail(w, err, "update settings")
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Stats.Stats(r.Context(), a.Now())
	if err != nil {
		fail(w, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleListLogs(w http.ResponseWriter, r *http.Request) {
	f := store.LogFilter{InvoiceID: r.URL.Query().Get("invoiceId"), Limit: 50}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	logs, err := a.Logs.ListLogs(r.Context(), f)
	if err != nil {
		fail(w, err, "list logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
