package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// UTC-5 的 1 月 1 日 22:00 已经是 UTC 的 1 月 2 日
	d := Day(time.Date(2024, 1, 1, 22, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 1, 4, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, -3, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestAddDays(t *testing.T) {
	d := time.Date(2024, 2, 27, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), AddDays(d, 2))
	assert.Equal(t, time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC), AddDays(d, -2))
}
