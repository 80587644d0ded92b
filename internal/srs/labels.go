package srs

import (
	"fmt"
	"math"
	"time"
)

var qualityLabels = map[Quality]string{
	QualityBlackout:            "Complete blackout",
	QualityIncorrect:           "Vaguely familiar",
	QualityIncorrectRemembered: "Remembered after seeing it",
	QualityCorrectDifficult:    "Correct but difficult",
	QualityCorrectHesitation:   "Correct with hesitation",
	QualityPerfect:             "Easy",
}

// QualityLabel returns a human label for q, or "Unknown".
func QualityLabel(q int) string {
	if label, ok := qualityLabels[Quality(q)]; ok {
		return label
	}
	return "Unknown"
}

// QualityOption is one button of the simplified three-choice review UI.
type QualityOption struct {
	Value       Quality `json:"value"`
	Label       string  `json:"label"`
	Color       string  `json:"color"`
	Description string  `json:"description"`
}

// SimpleQualityOptions returns the three-button grading scale.
func SimpleQualityOptions() []QualityOption {
	return []QualityOption{
		{Value: QualityIncorrect, Label: "Don't know", Color: "red", Description: "Could not recall the word"},
		{Value: QualityCorrectDifficult, Label: "Hard", Color: "yellow", Description: "Recalled but not sure"},
		{Value: QualityPerfect, Label: "Easy", Color: "green", Description: "Recalled immediately"},
	}
}

// FormatNextReview renders the time until next in coarse units.
// Partial days round up, so anything later today but in the future is "tomorrow".
func FormatNextReview(next, now time.Time) string {
	days := int(math.Ceil(next.Sub(now).Hours() / 24))

	switch {
	case days < 0:
		return "due"
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days < 7:
		return fmt.Sprintf("in %d days", days)
	case days < 30:
		return pluralize(days/7, "week")
	default:
		return pluralize(days/30, "month")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("in 1 %s", unit)
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}
