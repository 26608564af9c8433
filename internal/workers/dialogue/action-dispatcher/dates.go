// internal/workers/dialogue/action-dispatcher/dates.go
package actiondispatcher

import (
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var relativeDays = map[string]int{
	"today":     0,
	"сьогодні":  0,
	"yesterday": -1,
	"вчора":     -1,
	"tomorrow":  1,
	"завтра":    1,
}

// ParseDate turns a user date into YYYY-MM-DD. It understands relative words
// and dd.mm, dd.mm.yy and dd.mm.yyyy. Anything else, including dates that do
// not exist on the calendar, resolves to today.
func ParseDate(s string, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	s = strings.ToLower(strings.TrimSpace(s))

	if offset, ok := relativeDays[s]; ok {
		return today.AddDate(0, 0, offset).Format(dateLayout)
	}

	parts := strings.Split(s, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return today.Format(dateLayout)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return today.Format(dateLayout)
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], today.Year()
	if len(nums) == 3 {
		year = nums[2]
		if year < 100 {
			year += 2000
		}
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if d.Day() != day || int(d.Month()) != month || d.Year() != year {
		return today.Format(dateLayout)
	}
	return d.Format(dateLayout)
}
