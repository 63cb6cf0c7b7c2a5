package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/report"
	"github.com/goodtune/cortes/internal/schedule"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/goodtune/cortes/internal/storage/memory"
	"github.com/rs/zerolog"
)

var testLoc = time.FixedZone("ECT", -5*60*60)

const payload = `{"resp":"OK","notificaciones":[{
  "cuentaContrato":"100200300","direccion":"AV. 9 DE OCTUBRE",
  "detallePlanificacion":[
    {"fechaCorte":"lunes","horaDesde":"13:00","horaHasta":"16:00","fechaHoraCorte":"2024-06-10 13:00"},
    {"fechaCorte":"lunes","horaDesde":"20:00","horaHasta":"22:00","fechaHoraCorte":"2024-06-10 20:00"}
  ]}]}`

func newWatcher(t *testing.T, store storage.IdentifierStore) *Watcher {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/999/") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(upstream.Close)

	client := cnel.New(cnel.Config{BaseURL: upstream.URL, Timeout: 5 * time.Second}, zerolog.Nop())
	board := schedule.NewBoard(testLoc, nil)
	t.Cleanup(board.Close)

	w, err := New("*/15 * * * *", client, report.NewBuilder(board, zerolog.Nop()), store, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.SetClock(&schedule.TestClock{CurrentTime: time.Date(2024, 6, 10, 14, 0, 0, 0, testLoc)})
	return w
}

func save(t *testing.T, store storage.IdentifierStore, id string) {
	t.Helper()
	if _, err := store.Save(context.Background(), storage.SavedIdentifier{
		ID:        id,
		Criterion: string(cnel.CriterionID),
		SavedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("Save(%s) error = %v", id, err)
	}
}

func TestRunOnce(t *testing.T) {
	store := memory.New().Identifiers()
	save(t, store, "0912345678")
	save(t, store, "999")

	w := newWatcher(t, store)
	sum, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if sum.RunID == "" {
		t.Error("Expected a run ID")
	}
	if sum.Checked != 2 || sum.Refreshed != 1 || sum.Failed != 1 {
		t.Errorf("Expected 2 checked, 1 refreshed, 1 failed, got %+v", sum)
	}
	if sum.Active != 1 {
		t.Errorf("Expected the 13:00-16:00 window to have a running countdown, got %d", sum.Active)
	}

	ok, err := store.Get(context.Background(), "0912345678")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok.Windows != 2 {
		t.Errorf("Expected 2 windows recorded, got %d", ok.Windows)
	}
	if !ok.RefreshedAt.Equal(time.Date(2024, 6, 10, 14, 0, 0, 0, testLoc)) {
		t.Errorf("Unexpected refreshed_at %s", ok.RefreshedAt)
	}

	failed, err := store.Get(context.Background(), "999")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !failed.RefreshedAt.IsZero() {
		t.Error("Expected failed identifier to keep a zero refreshed_at")
	}
}

func TestRunOnce_Empty(t *testing.T) {
	w := newWatcher(t, memory.New().Identifiers())

	sum, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sum.Checked != 0 || sum.Failed != 0 {
		t.Errorf("Expected nothing checked, got %+v", sum)
	}
}

func TestRunOnce_SkipsSupersededResult(t *testing.T) {
	store := memory.New().Identifiers()
	save(t, store, "0912345678")

	w := newWatcher(t, store)
	// The web handler took a newer ticket for the same identifier while the
	// refresh was in flight.
	w.client.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		w.sequencer.Issue(report.Scope(cnel.CriterionID, "0912345678"))
		return http.DefaultTransport.RoundTrip(r)
	})})

	sum, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sum.Stale != 1 || sum.Refreshed != 0 {
		t.Errorf("Expected one stale result, got %+v", sum)
	}
	if sum.Active != 0 {
		t.Errorf("Expected no countdowns from a stale result, got %d", sum.Active)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestNew_InvalidSchedule(t *testing.T) {
	board := schedule.NewBoard(testLoc, nil)
	defer board.Close()

	_, err := New("every minute", cnel.New(cnel.Config{}, zerolog.Nop()), report.NewBuilder(board, zerolog.Nop()), memory.New().Identifiers(), nil, zerolog.Nop())
	if err == nil {
		t.Error("Expected error for invalid cron spec")
	}
}

func TestStartStop(t *testing.T) {
	w := newWatcher(t, memory.New().Identifiers())

	w.Start()
	next := w.Next()
	w.Stop()

	if next.IsZero() {
		t.Fatal("Expected a next run after Start")
	}
	if next.Minute()%15 != 0 || next.Second() != 0 {
		t.Errorf("Expected next run on a quarter hour, got %s", next)
	}
}
