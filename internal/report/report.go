// Package report turns a notifications result into the grouped, classified
// view rendered by the web UI, the CLI and the calendar export.
package report

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/metrics"
	"github.com/goodtune/cortes/internal/schedule"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// EmptyMessage is shown when a query returns no notifications.
const EmptyMessage = "No hay notificaciones disponibles."

// Options controls how a report is built.
type Options struct {
	// Account selects one account when the result has several. Empty picks
	// the first.
	Account  string
	Clock24h bool
	// Snapshot evaluates without touching countdowns, for results that
	// were superseded by a newer query.
	Snapshot bool
}

// Report is the rendered view of one query.
type Report struct {
	Criterion      cnel.Criterion `json:"criterion"`
	CriterionLabel string         `json:"criterion_label"`
	Identifier     string         `json:"identifier"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Details        *cnel.Details  `json:"details,omitempty"`
	Accounts       []string       `json:"accounts"`
	ActiveAccount  string         `json:"active_account,omitempty"`
	Groups         []GroupView    `json:"groups"`
	Empty          bool           `json:"empty"`
	Message        string         `json:"message,omitempty"`
}

// HasTabs reports whether the result spans more than one account.
func (r *Report) HasTabs() bool {
	return len(r.Accounts) > 1
}

// ActiveCount returns how many windows are currently active.
func (r *Report) ActiveCount() int {
	n := 0
	for _, g := range r.Groups {
		for _, w := range g.Windows {
			if w.Status == schedule.StatusActive {
				n++
			}
		}
	}
	return n
}

// GroupView is one (cut date, account) card.
type GroupView struct {
	CutDate        string           `json:"cut_date"`
	Title          string           `json:"title"`
	Account        string           `json:"account"`
	Summary        schedule.Summary `json:"summary"`
	CutHours       string           `json:"cut_hours"`
	AvailableHours string           `json:"available_hours"`
	Windows        []WindowView     `json:"windows"`
}

// WindowView is one classified cut window.
type WindowView struct {
	Start            string          `json:"start"`
	End              string          `json:"end"`
	StartAt          time.Time       `json:"start_at,omitempty"`
	EndAt            time.Time       `json:"end_at,omitempty"`
	Comment          string          `json:"comment,omitempty"`
	Status           schedule.Status `json:"status,omitempty"`
	StatusLabel      string          `json:"status_label,omitempty"`
	Pinned           bool            `json:"pinned,omitempty"`
	Remaining        string          `json:"remaining,omitempty"`
	RemainingSeconds int64           `json:"remaining_seconds,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Active reports whether the window is currently active.
func (w WindowView) Active() bool {
	return w.Status == schedule.StatusActive
}

// Builder builds reports against a shared board.
type Builder struct {
	board  *schedule.Board
	logger zerolog.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(board *schedule.Board, logger zerolog.Logger) *Builder {
	return &Builder{
		board:  board,
		logger: logger.With().Str("component", "report").Logger(),
	}
}

// Board returns the board the builder evaluates against.
func (b *Builder) Board() *schedule.Board {
	return b.board
}

// Scope is the board scope used for a query.
func Scope(criterion cnel.Criterion, id string) string {
	return string(criterion) + "/" + id
}

// Build classifies and summarizes res at now.
func (b *Builder) Build(now time.Time, res *cnel.Result, opts Options) *Report {
	r := &Report{
		Criterion:      res.Criterion,
		CriterionLabel: res.Criterion.Label(),
		Identifier:     res.Identifier,
		GeneratedAt:    now,
		Groups:         []GroupView{},
	}

	if res.Empty() {
		r.Empty = true
		r.Message = EmptyMessage
		r.Accounts = []string{}
		if !opts.Snapshot {
			b.board.Forget(Scope(res.Criterion, res.Identifier))
			metrics.ActiveCuts.Set(float64(b.board.ActiveCount()))
		}
		return r
	}

	accounts := res.Accounts()
	r.Accounts = schedule.Accounts(accounts)
	r.ActiveAccount = r.Accounts[0]
	for _, a := range r.Accounts {
		if a == opts.Account {
			r.ActiveAccount = a
		}
	}
	r.Details = detailsFor(res, r.ActiveAccount)

	groups := schedule.GroupByDateAndAccount(accounts)
	if r.HasTabs() {
		groups = schedule.FilterAccount(groups, r.ActiveAccount)
	}

	// Evaluate every window of the query in one scope so that switching tabs
	// does not stop the countdowns of the other accounts.
	var all []schedule.CutWindow
	for _, acc := range accounts {
		all = append(all, acc.Windows...)
	}
	var evaluated []schedule.WindowView
	if opts.Snapshot {
		evaluated = b.board.Peek(now, all)
	} else {
		evaluated = b.board.Evaluate(Scope(res.Criterion, res.Identifier), now, all)
		metrics.ActiveCuts.Set(float64(b.board.ActiveCount()))
	}
	byKey := make(map[string]schedule.WindowView, len(evaluated))
	for _, v := range evaluated {
		byKey[v.Window.Key()] = v
	}

	for _, g := range groups {
		r.Groups = append(r.Groups, b.buildGroup(g, byKey, opts))
	}

	return r
}

func (b *Builder) buildGroup(g schedule.Group, byKey map[string]schedule.WindowView, opts Options) GroupView {
	summary := schedule.Summarize(g.Windows)
	for _, pe := range summary.Skipped {
		metrics.ParseErrors.WithLabelValues(pe.Field).Inc()
		b.logger.Warn().
			Str("account", g.Account).
			Str("cut_date", g.CutDate).
			Str("field", pe.Field).
			Str("value", pe.Value).
			Msg("Skipping malformed cut window")
	}
	if summary.Overbooked {
		metrics.OverbookedGroups.Inc()
		b.logger.Warn().
			Str("account", g.Account).
			Str("cut_date", g.CutDate).
			Int("total_cut_minutes", summary.TotalCutMinutes).
			Msg("Cut windows add up to more than a day")
	}

	gv := GroupView{
		CutDate:        g.CutDate,
		Title:          CapitalizeFirst(g.CutDate),
		Account:        g.Account,
		Summary:        summary,
		CutHours:       FormatHours(summary.CutHours),
		AvailableHours: FormatHours(summary.AvailableHours),
		Windows:        make([]WindowView, 0, len(g.Windows)),
	}

	for _, w := range g.Windows {
		gv.Windows = append(gv.Windows, windowView(w, byKey[w.Key()], opts.Clock24h))
	}
	return gv
}

func windowView(w schedule.CutWindow, v schedule.WindowView, clock24h bool) WindowView {
	out := WindowView{
		Start:   FormatClock(w.StartTime, clock24h),
		End:     FormatClock(w.EndTime, clock24h),
		Comment: w.Comment,
	}
	if v.Err != nil {
		var pe *schedule.ParseError
		if errors.As(v.Err, &pe) {
			out.Error = pe.Error()
		} else {
			out.Error = v.Err.Error()
		}
		return out
	}

	out.StartAt = v.Start
	out.EndAt = v.End
	out.Status = v.Status
	out.StatusLabel = v.Status.Label()
	out.Pinned = v.Pinned
	if v.Status == schedule.StatusActive {
		out.Remaining = schedule.FormatRemaining(v.Remaining)
		out.RemainingSeconds = int64(v.Remaining / time.Second)
	}
	return out
}

func detailsFor(res *cnel.Result, account string) *cnel.Details {
	for _, n := range res.Notifications {
		if n.CuentaContrato == account {
			return &cnel.Details{
				BusinessUnit: n.IDUnidadNegocios,
				Account:      n.CuentaContrato,
				Feeder:       n.Alimentador,
				UniqueCode:   n.Cuen,
				Address:      n.Direccion,
				RegisteredAt: n.FechaRegistro,
			}
		}
	}
	return res.Details
}

// FormatClock renders an "HH:MM" value in the requested clock. Malformed
// values are returned unchanged.
func FormatClock(s string, clock24h bool) string {
	c, err := schedule.ParseClock("hora", s)
	if err != nil {
		return s
	}
	return c.Format(clock24h)
}

// FormatHours renders an hour count with Spanish decimal notation and at
// most two fraction digits.
func FormatHours(h float64) string {
	p := message.NewPrinter(language.Spanish)
	return p.Sprint(number.Decimal(h, number.MaxFractionDigits(2)))
}

// CapitalizeFirst upper-cases the first letter of s using Spanish rules and
// leaves the rest untouched.
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(language.Spanish).String(s[:size]) + s[size:]
}
