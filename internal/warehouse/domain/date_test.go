package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateKeyRoundTrip(t *testing.T) {
	days := []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, day := range days {
		key := DateKey(day)
		back, err := SplitDateKey(key)
		assert.NoError(t, err)
		assert.Equal(t, key, DateKey(back))
	}
	assert.Equal(t, 20240229, DateKey(days[0]))
}

func TestSplitDateKeyRejectsInvalid(t *testing.T) {
	for _, key := range []int{0, -20240101, 20241301, 20230229, 20240100} {
		_, err := SplitDateKey(key)
		assert.ErrorIs(t, err, ErrInvalidDateKey, "key %d", key)
	}
}

func TestNewDimFecha(t *testing.T) {
	row := NewDimFecha(time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, DimFecha{IDFecha: 20240815, Anio: 2024, Mes: 8, Trimestre: 3, NombreMes: "agosto"}, row)

	assert.Equal(t, 1, NewDimFecha(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)).Trimestre)
	assert.Equal(t, 4, NewDimFecha(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)).Trimestre)
	assert.Equal(t, "septiembre", MonthName(time.September))
	assert.Equal(t, "", MonthName(13))
}
