package gamification

// gradeBands holds the minimum percentage for each letter, best first.
var gradeBands = []struct {
	letter string
	min    int
}{
	{"A", 90},
	{"B", 80},
	{"C", 70},
	{"D", 60},
}

// GradeFor converts an approved score into a letter grade using its
// percentage of the activity ceiling.
func GradeFor(score, maxScore int) string {
	if maxScore <= 0 {
		return "F"
	}
	for _, band := range gradeBands {
		// score/max >= min/100 without floating point
		if score*100 >= band.min*maxScore {
			return band.letter
		}
	}
	return "F"
}
