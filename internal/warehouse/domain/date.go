package domain

import (
	"fmt"
	"time"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// DateKey returns the YYYYMMDD key of the calendar day of t.
func DateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// SplitDateKey turns a YYYYMMDD key back into a UTC date.
func SplitDateKey(key int) (time.Time, error) {
	y, m, d := key/10000, time.Month(key/100%100), key%100
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if key <= 0 || t.Year() != y || t.Month() != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDateKey, key)
	}
	return t, nil
}

// MonthName returns the lowercase Spanish name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return spanishMonths[m-1]
}

// NewDimFecha derives the calendar row for t.
func NewDimFecha(t time.Time) DimFecha {
	m := t.Month()
	return DimFecha{
		IDFecha:   DateKey(t),
		Anio:      t.Year(),
		Mes:       int(m),
		Trimestre: (int(m)-1)/3 + 1,
		NombreMes: MonthName(m),
	}
}
