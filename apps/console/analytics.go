package main

import (
	"slices"
	"strings"

	"brims/libs/listview"
)

const analyticsUnknownLabel = "unknown"

type countEntry struct {
	Label string
	Count int
}

type consoleAnalytics struct {
	TotalIncidents      int
	ActiveIncidents     int
	ArchivedIncidents   int
	ResolvedIncidents   int
	ByStatus            []countEntry
	ByType              []countEntry
	ByBarangay          []countEntry
	MonthlyTrend        []countEntry
	AffectedFamilies    int
	AffectedIndividuals int
	PopulationRecords   int
}

// buildAnalytics summarizes incidents and population records. Every incident
// falls in exactly one bucket of each breakdown; blank values count as
// unknown. Incidents with unparseable report dates are left out of the
// monthly trend only.
func buildAnalytics(incidents []Incident, population []PopulationRecord) consoleAnalytics {
	summary := consoleAnalytics{TotalIncidents: len(incidents), PopulationRecords: len(population)}

	byStatus := map[string]int{}
	byType := map[string]int{}
	byBarangay := map[string]int{}
	byMonth := map[string]int{}
	for _, incident := range incidents {
		if incident.IsArchived {
			summary.ArchivedIncidents++
		} else {
			summary.ActiveIncidents++
		}
		if incident.Status == incidentStatusResolved {
			summary.ResolvedIncidents++
		}
		byStatus[labelOrUnknown(incident.Status)]++
		byType[labelOrUnknown(incident.Type)]++
		byBarangay[labelOrUnknown(incident.Barangay)]++
		if reported, ok := listview.Date(incident.ReportedAt).Instant(); ok {
			byMonth[reported.UTC().Format("2006-01")]++
		}
	}

	for _, record := range population {
		summary.AffectedFamilies += record.Families
		summary.AffectedIndividuals += record.Individuals
	}

	summary.ByStatus = rankCounts(byStatus)
	summary.ByType = rankCounts(byType)
	summary.ByBarangay = rankCounts(byBarangay)
	summary.MonthlyTrend = make([]countEntry, 0, len(byMonth))
	for month, count := range byMonth {
		summary.MonthlyTrend = append(summary.MonthlyTrend, countEntry{Label: month, Count: count})
	}
	slices.SortFunc(summary.MonthlyTrend, func(a, b countEntry) int {
		return strings.Compare(a.Label, b.Label)
	})
	return summary
}

func labelOrUnknown(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return analyticsUnknownLabel
	}
	return value
}

// rankCounts orders buckets by count descending, then label ascending.
func rankCounts(counts map[string]int) []countEntry {
	entries := make([]countEntry, 0, len(counts))
	for label, count := range counts {
		entries = append(entries, countEntry{Label: label, Count: count})
	}
	slices.SortFunc(entries, func(a, b countEntry) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Label, b.Label)
	})
	return entries
}
