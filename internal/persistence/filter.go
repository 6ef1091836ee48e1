// Package persistence contains helpers shared by store implementations.
package persistence

import (
	"fmt"
	"strings"

	"example.com/futureself/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DiaryArgs turns a diary filter into positional query arguments: a
// backslash-escaped LIKE pattern, a two-digit month and a four-digit year.
// Each argument is empty when its filter is unset.
func DiaryArgs(filter domain.DiaryFilter) (pattern, month, year string) {
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern = "%" + likeEscaper.Replace(search) + "%"
	}
	if filter.Month > 0 {
		month = fmt.Sprintf("%02d", filter.Month)
	}
	if filter.Year > 0 {
		year = fmt.Sprintf("%04d", filter.Year)
	}
	return pattern, month, year
}
