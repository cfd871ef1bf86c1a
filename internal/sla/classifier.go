package sla

import "github.com/siladan/servicedesk/internal/domain"

// Classify maps an urgency/impact pair onto a priority score and category.
// Score bands are fixed and non-overlapping: 1-5 low, 6-10 medium,
// 11-15 high, 16+ major. Inputs are not validated here; callers clamp
// urgency and impact to 1..5.
func Classify(urgency, impact int) domain.PriorityResult {
	score := urgency * impact

	var category domain.PriorityCategory
	switch {
	case score >= 1 && score <= 5:
		category = domain.PriorityLow
	case score >= 6 && score <= 10:
		category = domain.PriorityMedium
	case score >= 11 && score <= 15:
		category = domain.PriorityHigh
	default:
		category = domain.PriorityMajor
	}

	return domain.PriorityResult{Score: score, Category: category}
}
