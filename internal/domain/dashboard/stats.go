// Package dashboard derives the clinic's headline numbers from the session
// store.
package dashboard

import (
	"math"
	"time"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

type Stats struct {
	TotalPatients    int `json:"totalClientes"`
	SessionsToday    int `json:"sessoesHoje"`
	SessionsThisWeek int `json:"sessoesSemana"`
	CompletionRate   int `json:"taxaConclusao"`
}

// Compute counts sessions starting today and this week (Monday to Sunday) in
// loc, and the share of completed sessions as a whole percentage. An empty
// set has a completion rate of 0.
func Compute(sessions []*scheduling.Session, now time.Time, loc *time.Location) Stats {
	today := localtime.FormatDate(now, loc)
	weekStart := localtime.StartOfWeek(now, loc)
	weekEnd := weekStart.AddDate(0, 0, 7)

	var st Stats
	completed := 0
	for _, s := range sessions {
		if localtime.FormatDate(s.Start, loc) == today {
			st.SessionsToday++
		}
		if !s.Start.Before(weekStart) && s.Start.Before(weekEnd) {
			st.SessionsThisWeek++
		}
		if s.Status == scheduling.StatusCompleted {
			completed++
		}
	}
	st.CompletionRate = CompletionRate(completed, len(sessions))
	return st
}

// CompletionRate is round(completed/total*100), or 0 when total is 0.
func CompletionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
