package domain

import "time"

// closedDates are the fixed month-day closures the shop observes: the
// national holidays plus the year-end closing. Movable holidays are not
// tracked here; the panel blocks those per barber when needed.
var closedDates = map[string]struct{}{
	"01-01": {}, // Confraternização Universal
	"04-21": {}, // Tiradentes
	"05-01": {}, // Dia do Trabalho
	"09-07": {}, // Independência do Brasil
	"10-12": {}, // Nossa Senhora Aparecida
	"11-02": {}, // Finados
	"11-15": {}, // Proclamação da República
	"11-20": {}, // Consciência Negra
	"12-25": {}, // Natal
	"12-31": {}, // Véspera de Ano Novo
}

// IsBookableDay reports whether the shop takes appointments on the given
// calendar day. Sundays are always closed; a fixed closure date counts
// only when it lands on a working day, Monday through Saturday.
func IsBookableDay(day time.Time) bool {
	if day.Weekday() == time.Sunday {
		return false
	}
	_, closed := closedDates[day.Format("01-02")]
	return !closed
}

// BookableDays scans exactly windowDays consecutive days starting at
// start and returns the bookable ones in ascending order. Skipped days
// do not extend the window.
func BookableDays(start time.Time, windowDays int) []time.Time {
	out := make([]time.Time, 0, windowDays)
	for i := 0; i < windowDays; i++ {
		d := start.AddDate(0, 0, i)
		if IsBookableDay(d) {
			out = append(out, d)
		}
	}
	return out
}
