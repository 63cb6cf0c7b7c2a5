package schedule

import (
	"errors"
	"testing"
	"time"
)

var testLoc = time.FixedZone("ECT", -5*60*60)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, testLoc)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		now         string
		cutDateTime string
		start       string
		end         string
		want        Status
	}{
		{"before start", "2024-06-10T07:59:59", "2024-06-10 08:00", "08:00", "12:00", StatusPending},
		{"at start", "2024-06-10T08:00:00", "2024-06-10 08:00", "08:00", "12:00", StatusActive},
		{"inside window", "2024-06-10T10:00:00", "2024-06-10 08:00", "08:00", "12:00", StatusActive},
		{"at end", "2024-06-10T12:00:00", "2024-06-10 08:00", "08:00", "12:00", StatusActive},
		{"after end", "2024-06-10T12:00:01", "2024-06-10 08:00", "08:00", "12:00", StatusAlreadyOccurred},
		{"next day", "2024-06-11T00:00:00", "2024-06-10 08:00", "08:00", "12:00", StatusAlreadyOccurred},
		{"previous day", "2024-06-09T10:00:00", "2024-06-10 08:00", "08:00", "12:00", StatusPending},
		{"midnight end, late evening", "2024-06-10T23:30:00", "2024-06-10 20:00", "20:00", "00:00", StatusActive},
		{"midnight end, one minute before", "2024-06-10T23:59:00", "2024-06-10 20:00", "20:00", "00:00", StatusActive},
		{"midnight end, after rollover", "2024-06-11T00:00:01", "2024-06-10 20:00", "20:00", "00:00", StatusAlreadyOccurred},
		{"wrapped window ends early on anchor day", "2024-06-10T02:00:00", "2024-06-10 23:00", "23:00", "01:00", StatusAlreadyOccurred},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(at(tt.now), tt.cutDateTime, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_MidnightEquivalentTo24(t *testing.T) {
	iv, err := Bounds("2024-06-10 18:00", "18:00", "00:00", testLoc)
	if err != nil {
		t.Fatalf("Bounds() error = %v", err)
	}

	want := time.Date(2024, time.June, 11, 0, 0, 0, 0, testLoc)
	if !iv.End.Equal(want) {
		t.Errorf("Expected end %s, got %s", want, iv.End)
	}

	for _, now := range []string{"2024-06-10T18:00:00", "2024-06-10T21:15:00", "2024-06-10T23:59:59"} {
		if got := iv.Classify(at(now)); got != StatusActive {
			t.Errorf("Classify(%s) = %s, want %s", now, got, StatusActive)
		}
	}
}

func TestClassify_ActiveScenarioRemaining(t *testing.T) {
	now := at("2024-06-10T10:00:00")
	iv, err := Bounds("2024-06-10 08:00", "08:00", "12:00", testLoc)
	if err != nil {
		t.Fatalf("Bounds() error = %v", err)
	}

	if got := iv.Classify(now); got != StatusActive {
		t.Fatalf("Expected ACTIVE, got %s", got)
	}
	if got := iv.Remaining(now); got != 2*time.Hour {
		t.Errorf("Expected remaining 2h, got %s", got)
	}
}

func TestClassify_ParseErrors(t *testing.T) {
	now := at("2024-06-10T10:00:00")

	tests := []struct {
		name        string
		cutDateTime string
		start       string
		end         string
		field       string
	}{
		{"hour out of range", "2024-06-10 08:00", "24:00", "12:00", "horaDesde"},
		{"minute out of range", "2024-06-10 08:00", "08:00", "12:60", "horaHasta"},
		{"not a time", "2024-06-10 08:00", "ocho", "12:00", "horaDesde"},
		{"missing colon", "2024-06-10 08:00", "0800", "12:00", "horaDesde"},
		{"bad anchor", "10/06/2024 08:00", "08:00", "12:00", "fechaHoraCorte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(now, tt.cutDateTime, tt.start, tt.end)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected *ParseError, got %v", err)
			}
			if pe.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, pe.Field)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"00:00", ClockTime{0, 0}, false},
		{"23:59", ClockTime{23, 59}, false},
		{"07:05", ClockTime{7, 5}, false},
		{"7:05", ClockTime{}, true},
		{"-1:00", ClockTime{}, true},
		{"12:5a", ClockTime{}, true},
		{"", ClockTime{}, true},
	}

	for _, tt := range tests {
		got, err := ParseClock("hora", tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClockTime_Format(t *testing.T) {
	c := ClockTime{Hour: 15, Minute: 30}
	if got := c.Format(true); got != "15:30" {
		t.Errorf("Expected 15:30, got %s", got)
	}
	if got := c.Format(false); got != "03:30 PM" {
		t.Errorf("Expected 03:30 PM, got %s", got)
	}
	if got := (ClockTime{}).Format(false); got != "12:00 AM" {
		t.Errorf("Expected 12:00 AM, got %s", got)
	}
}
