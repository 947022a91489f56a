package services

import "strings"

// Priority values assigned by the classifier.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// AnalyzeIssue tags a new report with a coarse category and priority.
// Keyword heuristics stand in for a real model.
// TODO: call the hosted classifier endpoint once it is provisioned.
func AnalyzeIssue(title, description string) (category, priority string) {
	text := strings.ToLower(title + " " + description)

	switch {
	case strings.Contains(text, "road") || strings.Contains(text, "pothole") || strings.Contains(text, "bridge"):
		return "Infrastructure", PriorityHigh
	case strings.Contains(text, "garbage") || strings.Contains(text, "trash") || strings.Contains(text, "sewage"):
		return "Sanitation", PriorityMedium
	case strings.Contains(text, "water") || strings.Contains(text, "pipeline") || strings.Contains(text, "leak"):
		return "Water", PriorityHigh
	case strings.Contains(text, "streetlight") || strings.Contains(text, "electric") || strings.Contains(text, "power"):
		return "Electricity", PriorityMedium
	default:
		return "General", PriorityMedium
	}
}
