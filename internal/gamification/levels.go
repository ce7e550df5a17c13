package gamification

import "github.com/noah-isme/gema-progress-api/internal/models"

// LevelThreshold is the minimum total score required for a level.
type LevelThreshold struct {
	Level    models.LearnerLevel
	MinScore int64
}

// levelTable is sorted by ascending MinScore.
var levelTable = []LevelThreshold{
	{Level: models.LevelBeginner, MinScore: 0},
	{Level: models.LevelIntermediate, MinScore: 500},
	{Level: models.LevelAdvanced, MinScore: 1500},
	{Level: models.LevelExpert, MinScore: 3000},
}

// LevelThresholds returns a copy of the level table.
func LevelThresholds() []LevelThreshold {
	out := make([]LevelThreshold, len(levelTable))
	copy(out, levelTable)
	return out
}

// LevelForScore returns the level with the largest threshold not above total.
// A total equal to a threshold belongs to that threshold's level.
func LevelForScore(total int64) models.LearnerLevel {
	level := levelTable[0].Level
	for _, threshold := range levelTable {
		if total < threshold.MinScore {
			break
		}
		level = threshold.Level
	}
	return level
}

// NextLevel returns the level after the one total falls in, and the points
// still missing to reach it. ok is false at the top level.
func NextLevel(total int64) (level models.LearnerLevel, remaining int64, ok bool) {
	for _, threshold := range levelTable {
		if total < threshold.MinScore {
			return threshold.Level, threshold.MinScore - total, true
		}
	}
	return "", 0, false
}
