package cnel

import "github.com/goodtune/cortes/internal/schedule"

// Response status values reported in the resp field.
const (
	RespOK    = "OK"
	RespError = "ERROR"
)

// Response is the payload returned by the notifications endpoint.
type Response struct {
	Resp           string         `json:"resp"`
	Mensaje        *string        `json:"mensaje"`
	MensajeError   *string        `json:"mensajeError"`
	Extra          *string        `json:"extra"`
	Notificaciones []Notification `json:"notificaciones"`
}

// Notification is the per-account record of scheduled cuts.
type Notification struct {
	IDUnidadNegocios     int              `json:"idUnidadNegocios"`
	CuentaContrato       string           `json:"cuentaContrato"`
	Alimentador          string           `json:"alimentador"`
	Cuen                 string           `json:"cuen"`
	Direccion            string           `json:"direccion"`
	FechaRegistro        string           `json:"fechaRegistro"`
	DetallePlanificacion []PlanningDetail `json:"detallePlanificacion"`
}

// PlanningDetail is one scheduled outage segment as sent by the API.
type PlanningDetail struct {
	Alimentador    string `json:"alimentador"`
	FechaCorte     string `json:"fechaCorte"`
	HoraDesde      string `json:"horaDesde"`
	HoraHasta      string `json:"horaHasta"`
	Comentario     string `json:"comentario"`
	FechaRegistro  string `json:"fechaRegistro"`
	FechaHoraCorte string `json:"fechaHoraCorte"`
}

// Details describes the account shown in the result header. It is taken
// from the first notification of a response.
type Details struct {
	BusinessUnit int    `json:"business_unit"`
	Account      string `json:"account"`
	Feeder       string `json:"feeder"`
	UniqueCode   string `json:"unique_code"`
	Address      string `json:"address"`
	RegisteredAt string `json:"registered_at"`
}

// Result is a successful, decoded query.
type Result struct {
	Criterion     Criterion
	Identifier    string
	Details       *Details
	Notifications []Notification
}

// Empty reports whether the query returned no notifications.
func (r *Result) Empty() bool {
	return len(r.Notifications) == 0
}

// Window converts a planning detail into a cut window for account.
func (d PlanningDetail) Window(account string) schedule.CutWindow {
	return schedule.CutWindow{
		Account:     account,
		CutDate:     d.FechaCorte,
		StartTime:   d.HoraDesde,
		EndTime:     d.HoraHasta,
		CutDateTime: d.FechaHoraCorte,
		Comment:     d.Comentario,
	}
}

// Accounts flattens the notifications into per-account window lists in
// source order.
func (r *Result) Accounts() []schedule.AccountWindows {
	out := make([]schedule.AccountWindows, 0, len(r.Notifications))
	for _, n := range r.Notifications {
		windows := make([]schedule.CutWindow, 0, len(n.DetallePlanificacion))
		for _, d := range n.DetallePlanificacion {
			windows = append(windows, d.Window(n.CuentaContrato))
		}
		out = append(out, schedule.AccountWindows{Account: n.CuentaContrato, Windows: windows})
	}
	return out
}

func detailsOf(notifications []Notification) *Details {
	if len(notifications) == 0 {
		return nil
	}
	n := notifications[0]
	return &Details{
		BusinessUnit: n.IDUnidadNegocios,
		Account:      n.CuentaContrato,
		Feeder:       n.Alimentador,
		UniqueCode:   n.Cuen,
		Address:      n.Direccion,
		RegisteredAt: n.FechaRegistro,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
