package report

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/schedule"
)

const calendarProductID = "-//cortes//Cortes de luz//ES"

// Calendar renders every well-formed window of res as an iCalendar feed.
// Malformed windows are left out.
func Calendar(res *cnel.Result, loc *time.Location, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(fmt.Sprintf("Cortes de luz %s", res.Identifier))
	if loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	for _, n := range res.Notifications {
		for _, d := range n.DetallePlanificacion {
			w := d.Window(n.CuentaContrato)
			iv, err := w.Bounds(loc)
			if err != nil {
				continue
			}

			event := cal.AddEvent(eventUID(w))
			event.SetDtStampTime(now)
			event.SetStartAt(iv.Start)
			event.SetEndAt(iv.End)
			event.SetSummary(fmt.Sprintf("Corte de luz %s - %s", w.StartTime, w.EndTime))
			event.SetLocation(n.Direccion)
			event.SetDescription(eventDescription(n, w))
		}
	}

	return cal.Serialize()
}

func eventUID(w schedule.CutWindow) string {
	sum := sha1.Sum([]byte(w.Key()))
	return hex.EncodeToString(sum[:]) + "@cortes"
}

func eventDescription(n cnel.Notification, w schedule.CutWindow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cuenta contrato: %s\n", n.CuentaContrato)
	if n.Alimentador != "" {
		fmt.Fprintf(&b, "Alimentador: %s\n", n.Alimentador)
	}
	fmt.Fprintf(&b, "Fecha: %s\n", CapitalizeFirst(w.CutDate))
	if w.Comment != "" {
		b.WriteString(w.Comment)
	}
	return strings.TrimRight(b.String(), "\n")
}
