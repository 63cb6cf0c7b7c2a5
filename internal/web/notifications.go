package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/metrics"
	"github.com/goodtune/cortes/internal/report"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/gorilla/mux"
)

// Query sources reported in cortes_queries_total.
const (
	sourceHTML = "html"
	sourceAPI  = "api"
)

type queryRequest struct {
	Criterion cnel.Criterion
	ID        string
	Account   string
	Clock24h  bool
}

// parseQuery validates the raw request values. clock is "12", "24" or empty
// for the configured default.
func (s *Server) parseQuery(criterion, id, account, clock string) (queryRequest, error) {
	c, err := cnel.ParseCriterion(criterion, s.config.DefaultCriterion)
	if err != nil {
		return queryRequest{}, err
	}

	q := queryRequest{
		Criterion: c,
		ID:        strings.TrimSpace(id),
		Account:   strings.TrimSpace(account),
		Clock24h:  s.config.Clock24h,
	}
	switch clock {
	case "12":
		q.Clock24h = false
	case "24":
		q.Clock24h = true
	}

	if err := cnel.ValidateIdentifier(q.Criterion, q.ID); err != nil {
		return queryRequest{}, err
	}
	return q, nil
}

// run queries the API and builds the report. A response that was superseded
// by a newer query for the same identifier is still rendered, but it leaves
// the countdowns and the saved identifiers alone.
func (s *Server) run(ctx context.Context, q queryRequest, source string) (*report.Report, error) {
	scope := report.Scope(q.Criterion, q.ID)
	ticket := s.sequencer.Issue(scope)

	res, err := s.client.Query(ctx, q.Criterion, q.ID)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(string(q.Criterion), source, "error").Inc()
		return nil, err
	}

	stale := !s.sequencer.Current(ticket)
	rep := s.builder.Build(s.clock.Now(), res, report.Options{
		Account:  q.Account,
		Clock24h: q.Clock24h,
		Snapshot: stale,
	})

	result := "ok"
	switch {
	case stale:
		result = "stale"
		metrics.StaleResponses.Inc()
		s.logger.Debug().Str("scope", scope).Msg("Superseded response rendered as snapshot")
	case res.Empty():
		result = "empty"
	}
	metrics.QueriesTotal.WithLabelValues(string(q.Criterion), source, result).Inc()

	if !stale {
		s.remember(ctx, q)
	}

	return rep, nil
}

func (s *Server) remember(ctx context.Context, q queryRequest) {
	added, err := s.identifiers.Save(ctx, storage.SavedIdentifier{
		ID:        q.ID,
		Criterion: string(q.Criterion),
		SavedAt:   s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("id", q.ID).Msg("Failed to save identifier")
		return
	}
	if added {
		metrics.SavedIdentifiers.Inc()
	}
}

// countInvalid records a rejected query without letting arbitrary input
// become a label value.
func countInvalid(criterion, source string) {
	c := cnel.Criterion(strings.ToUpper(criterion))
	if !c.Valid() {
		c = "unknown"
	}
	metrics.QueriesTotal.WithLabelValues(string(c), source, "invalid").Inc()
}

// queryStatus maps a query error to an HTTP status and a user-facing message.
func queryStatus(err error) (int, string) {
	var ue *cnel.UpstreamError
	switch {
	case errors.Is(err, cnel.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "La consulta tardó demasiado"
	case errors.As(err, &ue):
		return http.StatusBadGateway, ue.Message
	default:
		return http.StatusInternalServerError, "Error en la solicitud"
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	q, err := s.parseQuery(vars["criterion"], vars["id"], r.URL.Query().Get("account"), r.URL.Query().Get("clock"))
	if err != nil {
		countInvalid(vars["criterion"], sourceAPI)
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.run(r.Context(), q, sourceAPI)
	if err != nil {
		status, msg := queryStatus(err)
		WriteError(w, status, msg)
		return
	}

	WriteJSON(w, http.StatusOK, rep)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	q, err := s.parseQuery(vars["criterion"], vars["id"], "", "")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.client.Query(r.Context(), q.Criterion, q.ID)
	if err != nil {
		status, msg := queryStatus(err)
		WriteError(w, status, msg)
		return
	}

	body := report.Calendar(res, s.builder.Board().Location(), s.clock.Now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="cortes-`+q.ID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// pageData is the data passed to index.html.
type pageData struct {
	Title            string
	Criteria         []cnel.Criterion
	Criterion        cnel.Criterion
	ID               string
	Clock24h         bool
	Saved            []storage.SavedIdentifier
	Report           *report.Report
	Error            string
	RemainingCaption string
}

func (s *Server) newPage(r *http.Request) *pageData {
	page := &pageData{
		Title:            "Cortes de luz",
		Criteria:         cnel.Criteria,
		Criterion:        s.config.DefaultCriterion,
		Clock24h:         s.config.Clock24h,
		RemainingCaption: "Tiempo restante para que regrese la luz",
	}

	saved, err := s.identifiers.List(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list saved identifiers")
	}
	page.Saved = saved

	return page
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.newPage(r))
}

func (s *Server) handleConsulta(w http.ResponseWriter, r *http.Request) {
	page := s.newPage(r)
	params := r.URL.Query()
	page.ID = strings.TrimSpace(params.Get("id"))

	q, err := s.parseQuery(params.Get("criterion"), params.Get("id"), params.Get("account"), params.Get("clock"))
	if err != nil {
		countInvalid(params.Get("criterion"), sourceHTML)
		page.Error = err.Error()
		s.render(w, http.StatusBadRequest, page)
		return
	}
	page.Criterion = q.Criterion
	page.Clock24h = q.Clock24h

	rep, err := s.run(r.Context(), q, sourceHTML)
	if err != nil {
		status, msg := queryStatus(err)
		page.Error = msg
		s.render(w, status, page)
		return
	}
	page.Report = rep

	// Refresh the dropdown with the identifier that was just saved.
	if saved, err := s.identifiers.List(r.Context()); err == nil {
		page.Saved = saved
	}

	s.render(w, http.StatusOK, page)
}

func (s *Server) render(w http.ResponseWriter, status int, page *pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", page); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render index template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
