package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"example.com/futureself/internal/domain"
)

func TestDiaryArgs(t *testing.T) {
	pattern, month, year := DiaryArgs(domain.DiaryFilter{Search: " 100%_done ", Month: 3, Year: 2026})
	assert.Equal(t, `%100\%\_done%`, pattern)
	assert.Equal(t, "03", month)
	assert.Equal(t, "2026", year)
}

func TestDiaryArgsEmptyFilter(t *testing.T) {
	pattern, month, year := DiaryArgs(domain.DiaryFilter{})
	assert.Empty(t, pattern)
	assert.Empty(t, month)
	assert.Empty(t, year)
}
