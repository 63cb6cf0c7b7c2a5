package cnel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const okPayload = `{
  "resp": "OK",
  "mensaje": null,
  "mensajeError": null,
  "extra": null,
  "notificaciones": [
    {
      "idUnidadNegocios": 7,
      "cuentaContrato": "200054509332",
      "alimentador": "ALIM-1",
      "cuen": "1234567",
      "direccion": "AV. 9 DE OCTUBRE",
      "fechaRegistro": "2024-06-01 10:00",
      "detallePlanificacion": [
        {"alimentador": "ALIM-1", "fechaCorte": "lunes 10 de junio", "horaDesde": "08:00", "horaHasta": "12:00", "comentario": "Mantenimiento", "fechaRegistro": "2024-06-01", "fechaHoraCorte": "2024-06-10 08:00"},
        {"alimentador": "ALIM-1", "fechaCorte": "lunes 10 de junio", "horaDesde": "20:00", "horaHasta": "00:00", "comentario": "", "fechaRegistro": "2024-06-01", "fechaHoraCorte": "2024-06-10 20:00"}
      ]
    },
    {
      "idUnidadNegocios": 7,
      "cuentaContrato": "200054509333",
      "alimentador": "ALIM-2",
      "cuen": "7654321",
      "direccion": "CALLE B",
      "fechaRegistro": "2024-06-02 10:00",
      "detallePlanificacion": [
        {"alimentador": "ALIM-2", "fechaCorte": "martes 11 de junio", "horaDesde": "23:00", "horaHasta": "01:00", "comentario": "", "fechaRegistro": "2024-06-02", "fechaHoraCorte": "2024-06-11 23:00"}
      ]
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL + "/consultar"
	return New(cfg, zerolog.Nop())
}

func TestClient_QueryDecodes(t *testing.T) {
	var gotPath, gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okPayload))
	}, Config{UserAgent: "cortes-test"})

	res, err := c.Query(context.Background(), CriterionID, "0912345678")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if gotPath != "/consultar/0912345678/IDENTIFICACION" {
		t.Errorf("Unexpected request path %s", gotPath)
	}
	if gotUA != "cortes-test" {
		t.Errorf("Expected User-Agent cortes-test, got %s", gotUA)
	}
	if len(res.Notifications) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(res.Notifications))
	}
	if res.Details == nil || res.Details.Account != "200054509332" || res.Details.BusinessUnit != 7 {
		t.Errorf("Unexpected details: %+v", res.Details)
	}

	accounts := res.Accounts()
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(accounts))
	}
	w := accounts[0].Windows[1]
	if w.Account != "200054509332" || w.StartTime != "20:00" || w.EndTime != "00:00" || w.CutDateTime != "2024-06-10 20:00" {
		t.Errorf("Unexpected window: %+v", w)
	}
	if accounts[0].Windows[0].Comment != "Mantenimiento" {
		t.Errorf("Expected comment to be carried over, got %q", accounts[0].Windows[0].Comment)
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resp":"ERROR","mensaje":"No existen notificaciones para la identificación ingresada","notificaciones":[{"cuentaContrato":"x"}]}`))
	}, Config{})

	_, err := c.Query(context.Background(), CriterionID, "0912345678")

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UpstreamError, got %v", err)
	}
	if ue.Message != "No existen notificaciones para la identificación ingresada" {
		t.Errorf("Expected API message verbatim, got %q", ue.Message)
	}
	if ue.Status != 0 || ue.Err != nil {
		t.Errorf("Expected API-level error without status or cause, got %+v", ue)
	}
}

func TestClient_APIErrorFallbackMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resp":"ERROR","mensaje":null,"mensajeError":"Servicio no disponible"}`))
	}, Config{})

	_, err := c.Query(context.Background(), CriterionID, "0912345678")
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Message != "Servicio no disponible" {
		t.Errorf("Expected mensajeError fallback, got %v", err)
	}
}

func TestClient_HTTPStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}, Config{})

	_, err := c.Query(context.Background(), CriterionContractAccount, "200054509332")

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UpstreamError, got %v", err)
	}
	if ue.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", ue.Status)
	}
	if ue.Message != genericErrorMessage {
		t.Errorf("Expected generic message, got %q", ue.Message)
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resp":`))
	}, Config{})

	_, err := c.Query(context.Background(), CriterionID, "0912345678")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UpstreamError, got %v", err)
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(Config{BaseURL: base, Timeout: time.Second}, zerolog.Nop())
	_, err := c.Query(context.Background(), CriterionID, "0912345678")

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UpstreamError, got %v", err)
	}
	if ue.Err == nil {
		t.Error("Expected transport cause to be wrapped")
	}
}

func TestClient_EmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resp":"OK","mensaje":null,"notificaciones":[]}`))
	}, Config{})

	res, err := c.Query(context.Background(), CriterionID, "0912345678")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !res.Empty() {
		t.Error("Expected empty result")
	}
	if res.Details != nil {
		t.Error("Expected no details for empty result")
	}
}

func TestClient_RejectsInvalidInput(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, Config{})

	for _, tt := range []struct {
		criterion Criterion
		id        string
	}{
		{CriterionID, ""},
		{CriterionID, "09-1234"},
		{CriterionID, "12345678901234"},
		{Criterion("NOMBRE"), "123"},
	} {
		if _, err := c.Query(context.Background(), tt.criterion, tt.id); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Query(%s, %q): expected ErrInvalidQuery, got %v", tt.criterion, tt.id, err)
		}
	}

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("Expected no upstream calls for invalid input, got %d", n)
	}
}

func TestClient_Cache(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(okPayload))
	}, Config{CacheSize: 10, CacheTTL: time.Minute})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Query(ctx, CriterionID, "0912345678"); err != nil {
			t.Fatalf("Query() error = %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 upstream call, got %d", n)
	}
	if c.CacheLen() != 1 {
		t.Errorf("Expected 1 cached entry, got %d", c.CacheLen())
	}

	if _, err := c.Fetch(ctx, CriterionID, "0912345678"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Expected Fetch to bypass the cache, got %d calls", n)
	}

	c.Invalidate(CriterionID, "0912345678")
	if _, err := c.Query(ctx, CriterionID, "0912345678"); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected Query after Invalidate to hit upstream, got %d calls", n)
	}
}

func TestClient_ErrorsAreNotCached(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"resp":"ERROR","mensaje":"fallo"}`))
	}, Config{CacheSize: 10, CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		_, _ = c.Query(context.Background(), CriterionID, "0912345678")
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Expected errors to bypass the cache, got %d calls", n)
	}
}
