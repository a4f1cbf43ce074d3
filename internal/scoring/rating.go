package scoring

// Rating is the gauge label shown next to a score.
type Rating struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var (
	RatingExcellent        = Rating{Label: "Excellent", Color: "#4CAF50"}
	RatingGood             = Rating{Label: "Good", Color: "#FFD700"}
	RatingNeedsImprovement = Rating{Label: "Needs Improvement", Color: "#FF6347"}
)

// Rate maps a 0-10 score to its gauge rating.
func Rate(score float64) Rating {
	switch {
	case score >= 8:
		return RatingExcellent
	case score >= 5:
		return RatingGood
	default:
		return RatingNeedsImprovement
	}
}
