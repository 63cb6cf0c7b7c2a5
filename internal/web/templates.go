package web

import (
	"html/template"

	"github.com/goodtune/cortes/internal/schedule"
)

var templateFuncs = template.FuncMap{
	"clockParam": func(clock24h bool) string {
		if clock24h {
			return "24"
		}
		return "12"
	},
	"statusClass": func(s schedule.Status) string {
		switch s {
		case schedule.StatusActive:
			return "active"
		case schedule.StatusAlreadyOccurred:
			return "done"
		case schedule.StatusPending:
			return "pending"
		default:
			return "invalid"
		}
	},
}
