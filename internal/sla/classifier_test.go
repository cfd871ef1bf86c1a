package sla

import (
	"testing"

	"github.com/siladan/servicedesk/internal/domain"
)

func TestClassifyBands(t *testing.T) {
	tests := []struct {
		name     string
		urgency  int
		impact   int
		score    int
		category domain.PriorityCategory
	}{
		{"minimum score", 1, 1, 1, domain.PriorityLow},
		{"top of low band", 1, 5, 5, domain.PriorityLow},
		{"bottom of medium band", 2, 3, 6, domain.PriorityMedium},
		{"middle medium", 3, 3, 9, domain.PriorityMedium},
		{"top of medium band", 2, 5, 10, domain.PriorityMedium},
		{"bottom of high band", 3, 4, 12, domain.PriorityHigh},
		{"top of high band", 3, 5, 15, domain.PriorityHigh},
		{"bottom of major band", 4, 4, 16, domain.PriorityMajor},
		{"maximum score", 5, 5, 25, domain.PriorityMajor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.urgency, tt.impact)
			if result.Score != tt.score {
				t.Errorf("Classify(%d, %d).Score = %d, expected %d", tt.urgency, tt.impact, result.Score, tt.score)
			}
			if result.Category != tt.category {
				t.Errorf("Classify(%d, %d).Category = %s, expected %s", tt.urgency, tt.impact, result.Category, tt.category)
			}
		})
	}
}

// Every urgency/impact pair in the documented domain must land in exactly
// one band, with no gaps or overlaps at the 5/6, 10/11 and 15/16 edges.
func TestClassifyCoversDomain(t *testing.T) {
	expected := func(score int) domain.PriorityCategory {
		switch {
		case score <= 5:
			return domain.PriorityLow
		case score <= 10:
			return domain.PriorityMedium
		case score <= 15:
			return domain.PriorityHigh
		default:
			return domain.PriorityMajor
		}
	}

	for urgency := 1; urgency <= 5; urgency++ {
		for impact := 1; impact <= 5; impact++ {
			result := Classify(urgency, impact)
			if result.Score != urgency*impact {
				t.Fatalf("Classify(%d, %d).Score = %d, expected %d", urgency, impact, result.Score, urgency*impact)
			}
			if want := expected(result.Score); result.Category != want {
				t.Errorf("Classify(%d, %d) score %d placed in %s, expected %s",
					urgency, impact, result.Score, result.Category, want)
			}
		}
	}
}
