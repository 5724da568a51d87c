package verse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForDate_StableWithinDay(t *testing.T) {
	morning := time.Date(2026, 4, 10, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, 4, 10, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, ForDate(morning), ForDate(night))
}

func TestForDate_ChangesDaily(t *testing.T) {
	d := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.NotEqual(t, ForDate(d), ForDate(d.AddDate(0, 0, 1)))
	assert.Equal(t, verses[0], ForDate(d))
}

func TestForDate_AllPopulated(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 366; i++ {
		v := ForDate(d.AddDate(0, 0, i))
		assert.NotEmpty(t, v.Text)
		assert.NotEmpty(t, v.Reference)
	}
}

func TestVerses_KingJamesWording(t *testing.T) {
	byRef := map[string]string{}
	for _, v := range verses {
		byRef[v.Reference] = v.Text
	}
	assert.Equal(t, "Charity suffereth long, and is kind.", byRef["1 Corinthians 13:4"])
	for ref, text := range byRef {
		assert.NotContains(t, text, "Love is patient", ref)
	}
}
