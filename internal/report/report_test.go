package report

import (
	"strings"
	"testing"
	"time"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/schedule"
	"github.com/rs/zerolog"
)

var testLoc = time.FixedZone("ECT", -5*60*60)

func detail(date, anchorDay, start, end string) cnel.PlanningDetail {
	return cnel.PlanningDetail{
		FechaCorte:     date,
		HoraDesde:      start,
		HoraHasta:      end,
		FechaHoraCorte: anchorDay + " " + start,
	}
}

func sampleResult() *cnel.Result {
	notifications := []cnel.Notification{
		{
			IDUnidadNegocios: 7,
			CuentaContrato:   "A",
			Direccion:        "AV. 9 DE OCTUBRE",
			FechaRegistro:    "2024-06-01",
			DetallePlanificacion: []cnel.PlanningDetail{
				detail("lunes 10 de junio", "2024-06-10", "08:00", "10:00"),
				detail("lunes 10 de junio", "2024-06-10", "13:00", "16:00"),
				detail("lunes 10 de junio", "2024-06-10", "20:00", "21:00"),
				detail("martes 11 de junio", "2024-06-11", "08:00", "12:00"),
			},
		},
		{
			IDUnidadNegocios: 7,
			CuentaContrato:   "B",
			Direccion:        "CALLE B",
			DetallePlanificacion: []cnel.PlanningDetail{
				detail("lunes 10 de junio", "2024-06-10", "14:00", "15:30"),
			},
		},
	}
	return &cnel.Result{
		Criterion:     cnel.CriterionID,
		Identifier:    "0912345678",
		Notifications: notifications,
	}
}

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	board := schedule.NewBoard(testLoc, nil)
	t.Cleanup(board.Close)
	return NewBuilder(board, zerolog.Nop())
}

func TestBuild_GroupsAndSummaries(t *testing.T) {
	b := newBuilder(t)
	now := time.Date(2024, 6, 10, 14, 0, 0, 0, testLoc)

	r := b.Build(now, sampleResult(), Options{Clock24h: true})

	if r.Empty {
		t.Fatal("Expected non-empty report")
	}
	if !r.HasTabs() || r.ActiveAccount != "A" {
		t.Fatalf("Expected tabs with account A active, got %v / %s", r.Accounts, r.ActiveAccount)
	}
	if r.Details == nil || r.Details.Address != "AV. 9 DE OCTUBRE" {
		t.Errorf("Unexpected details: %+v", r.Details)
	}
	if r.CriterionLabel != "Número de identificación" {
		t.Errorf("Unexpected criterion label %s", r.CriterionLabel)
	}
	if len(r.Groups) != 2 {
		t.Fatalf("Expected 2 groups for account A, got %d", len(r.Groups))
	}

	monday := r.Groups[0]
	if monday.Title != "Lunes 10 de junio" {
		t.Errorf("Expected capitalized title, got %s", monday.Title)
	}
	if monday.Summary.CutHours != 6 || monday.Summary.AvailableHours != 18 {
		t.Errorf("Expected 6/18 hours, got %v/%v", monday.Summary.CutHours, monday.Summary.AvailableHours)
	}
	if monday.CutHours != "6" || monday.AvailableHours != "18" {
		t.Errorf("Unexpected formatted hours %s/%s", monday.CutHours, monday.AvailableHours)
	}

	want := []schedule.Status{schedule.StatusAlreadyOccurred, schedule.StatusActive, schedule.StatusPending}
	for i, s := range want {
		if monday.Windows[i].Status != s {
			t.Errorf("window %d: expected %s, got %s", i, s, monday.Windows[i].Status)
		}
	}
	active := monday.Windows[1]
	if active.Remaining != "02:00:00" || active.RemainingSeconds != 7200 {
		t.Errorf("Expected 02:00:00 remaining, got %s (%d)", active.Remaining, active.RemainingSeconds)
	}
	if active.StatusLabel != "¡Corte Activo!" {
		t.Errorf("Unexpected status label %s", active.StatusLabel)
	}
	if r.ActiveCount() != 1 {
		t.Errorf("Expected 1 active window in view, got %d", r.ActiveCount())
	}

	// Countdowns run for every account of the query, not only the visible tab.
	if got := b.Board().ActiveCount(); got != 2 {
		t.Errorf("Expected 2 running countdowns, got %d", got)
	}
}

func TestBuild_AccountTab(t *testing.T) {
	b := newBuilder(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, testLoc)

	r := b.Build(now, sampleResult(), Options{Account: "B"})
	if r.ActiveAccount != "B" {
		t.Fatalf("Expected account B, got %s", r.ActiveAccount)
	}
	if len(r.Groups) != 1 || r.Groups[0].Account != "B" {
		t.Fatalf("Expected one group for B, got %+v", r.Groups)
	}
	if r.Details == nil || r.Details.Address != "CALLE B" {
		t.Errorf("Expected details of account B, got %+v", r.Details)
	}
	if r.Groups[0].CutHours != "1,5" {
		t.Errorf("Expected Spanish decimal 1,5, got %s", r.Groups[0].CutHours)
	}

	unknown := b.Build(now, sampleResult(), Options{Account: "Z"})
	if unknown.ActiveAccount != "A" {
		t.Errorf("Expected unknown account to fall back to A, got %s", unknown.ActiveAccount)
	}
}

func TestBuild_TwelveHourClock(t *testing.T) {
	b := newBuilder(t)
	now := time.Date(2024, 6, 9, 9, 0, 0, 0, testLoc)

	r := b.Build(now, sampleResult(), Options{Clock24h: false})
	w := r.Groups[0].Windows[1]
	if w.Start != "01:00 PM" || w.End != "04:00 PM" {
		t.Errorf("Expected 12h range, got %s - %s", w.Start, w.End)
	}
}

func TestBuild_Empty(t *testing.T) {
	b := newBuilder(t)
	r := b.Build(time.Now(), &cnel.Result{Criterion: cnel.CriterionID, Identifier: "1"}, Options{})

	if !r.Empty || r.Message != EmptyMessage {
		t.Errorf("Expected empty report with message, got %+v", r)
	}
	if len(r.Groups) != 0 {
		t.Errorf("Expected no groups, got %d", len(r.Groups))
	}
}

func TestBuild_MalformedEntryDoesNotAbortBatch(t *testing.T) {
	b := newBuilder(t)
	res := &cnel.Result{
		Criterion:  cnel.CriterionID,
		Identifier: "1",
		Notifications: []cnel.Notification{{
			CuentaContrato: "A",
			DetallePlanificacion: []cnel.PlanningDetail{
				detail("lunes", "2024-06-10", "08:00", "10:00"),
				detail("lunes", "2024-06-10", "8h", "10:00"),
			},
		}},
	}

	r := b.Build(time.Date(2024, 6, 10, 9, 0, 0, 0, testLoc), res, Options{Clock24h: true})
	g := r.Groups[0]
	if g.Summary.TotalCutMinutes != 120 {
		t.Errorf("Expected malformed entry excluded from total, got %d", g.Summary.TotalCutMinutes)
	}
	if g.Windows[0].Status != schedule.StatusActive {
		t.Errorf("Expected first window ACTIVE, got %s", g.Windows[0].Status)
	}
	if g.Windows[1].Error == "" {
		t.Error("Expected error on malformed window")
	}
	if g.Windows[1].Start != "8h" {
		t.Errorf("Expected malformed time shown verbatim, got %s", g.Windows[1].Start)
	}
}

func TestBuild_SnapshotLeavesBoardAlone(t *testing.T) {
	b := newBuilder(t)
	now := time.Date(2024, 6, 10, 14, 0, 0, 0, testLoc)

	r := b.Build(now, sampleResult(), Options{Snapshot: true})
	if b.Board().ActiveCount() != 0 {
		t.Errorf("Expected no countdowns from a snapshot, got %d", b.Board().ActiveCount())
	}
	if r.Groups[0].Windows[1].Remaining != "02:00:00" {
		t.Errorf("Expected remaining computed from the window end, got %s", r.Groups[0].Windows[1].Remaining)
	}
}

func TestBuild_Overbooked(t *testing.T) {
	b := newBuilder(t)
	res := &cnel.Result{
		Criterion:  cnel.CriterionID,
		Identifier: "1",
		Notifications: []cnel.Notification{{
			CuentaContrato: "A",
			DetallePlanificacion: []cnel.PlanningDetail{
				detail("lunes", "2024-06-10", "00:00", "23:00"),
				detail("lunes", "2024-06-10", "06:00", "12:00"),
			},
		}},
	}

	r := b.Build(time.Date(2024, 6, 9, 9, 0, 0, 0, testLoc), res, Options{})
	g := r.Groups[0]
	if !g.Summary.Overbooked {
		t.Error("Expected overbooked group")
	}
	if g.AvailableHours != "-5" {
		t.Errorf("Expected -5 available hours, got %s", g.AvailableHours)
	}
}

func TestCapitalizeFirst(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"lunes 10 de junio", "Lunes 10 de junio"},
		{"miércoles", "Miércoles"},
		{"ñandú", "Ñandú"},
		{"", ""},
		{"Domingo", "Domingo"},
	}
	for _, tt := range tests {
		if got := CapitalizeFirst(tt.in); got != tt.want {
			t.Errorf("CapitalizeFirst(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	tests := map[float64]string{
		6:     "6",
		1.75:  "1,75",
		22.25: "22,25",
		0.5:   "0,5",
	}
	for in, want := range tests {
		if got := FormatHours(in); got != want {
			t.Errorf("FormatHours(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestScope(t *testing.T) {
	if got := Scope(cnel.CriterionUniqueCode, "123"); !strings.HasPrefix(got, "CUEN/") {
		t.Errorf("Unexpected scope %s", got)
	}
}
