package tracker

import (
	"fmt"
	"math"
	"strings"
)

// Stats summarizes a set of jobs
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Interviews   int `json:"interviews"`
	Offers       int `json:"offers"`
	Rejected     int `json:"rejected"`
	Unrecognized int `json:"unrecognized"` // jobs with status outside of the vocabulary
}

// StatusCount is a number of jobs in a given status
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

var (
	closedStatuses    = lowerSet(StatusRejected, StatusWithdrawn, StatusOffer)
	interviewStatuses = lowerSet(StatusPhoneScreen, StatusTechnicalInterview, StatusOnsiteInterview, StatusFinalInterview)
	knownStatuses     = lowerSet(statusValues...)
)

// ComputeStats calculates statistics for jobs. Status labels are trimmed and compared
// case-insensitively, a status outside of the vocabulary counts toward total and active only.
func ComputeStats(jobs []Job) Stats {
	res := Stats{Total: len(jobs)}
	for _, j := range jobs {
		st := lowerLabel(j.Status.String())
		if !closedStatuses[st] {
			res.Active++
		}
		if interviewStatuses[st] {
			res.Interviews++
		}
		switch st {
		case lowerLabel(StatusOffer.name):
			res.Offers++
		case lowerLabel(StatusRejected.name):
			res.Rejected++
		}
		if !knownStatuses[st] {
			res.Unrecognized++
		}
	}
	return res
}

// SuccessRate returns offers as a rounded percentage of total, 0 for empty stats
func (s Stats) SuccessRate() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Offers) / float64(s.Total) * 100))
}

// SuccessRateString returns success rate formatted for display, i.e. "25%"
func (s Stats) SuccessRateString() string {
	return fmt.Sprintf("%d%%", s.SuccessRate())
}

// CountByStatus returns the number of jobs per status. All vocabulary statuses are included
// in pipeline order; labels outside of the vocabulary follow in order of first appearance.
func CountByStatus(jobs []Job) []StatusCount {
	res := make([]StatusCount, 0, len(statusValues))
	pos := make(map[string]int, len(statusValues))
	for i, s := range statusValues {
		res = append(res, StatusCount{Status: s.name})
		pos[lowerLabel(s.name)] = i
	}
	for _, j := range jobs {
		key := lowerLabel(j.Status.String())
		idx, ok := pos[key]
		if !ok {
			res = append(res, StatusCount{Status: j.Status.String()})
			idx = len(res) - 1
			pos[key] = idx
		}
		res[idx].Count++
	}
	return res
}

func lowerSet(statuses ...Status) map[string]bool {
	res := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		res[lowerLabel(s.name)] = true
	}
	return res
}

func lowerLabel(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
