package gamification

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		total int64
		want  models.LearnerLevel
	}{
		{0, models.LevelBeginner},
		{390, models.LevelBeginner},
		{499, models.LevelBeginner},
		{500, models.LevelIntermediate},
		{1499, models.LevelIntermediate},
		{1500, models.LevelAdvanced},
		{2999, models.LevelAdvanced},
		{3000, models.LevelExpert},
		{100000, models.LevelExpert},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, LevelForScore(tc.total), "total %d", tc.total)
	}
}

func TestNextLevel(t *testing.T) {
	level, remaining, ok := NextLevel(390)
	require.True(t, ok)
	require.Equal(t, models.LevelIntermediate, level)
	require.Equal(t, int64(110), remaining)

	level, remaining, ok = NextLevel(1500)
	require.True(t, ok)
	require.Equal(t, models.LevelExpert, level)
	require.Equal(t, int64(1500), remaining)

	_, _, ok = NextLevel(3000)
	require.False(t, ok)
}

func TestLevelThresholdsReturnsCopy(t *testing.T) {
	thresholds := LevelThresholds()
	thresholds[0].MinScore = 42
	require.Equal(t, int64(0), LevelThresholds()[0].MinScore)
}

func TestGradeFor(t *testing.T) {
	require.Equal(t, "A", GradeFor(100, 100))
	require.Equal(t, "A", GradeFor(45, 50))
	require.Equal(t, "B", GradeFor(80, 100))
	require.Equal(t, "C", GradeFor(79, 100))
	require.Equal(t, "D", GradeFor(60, 100))
	require.Equal(t, "F", GradeFor(59, 100))
	require.Equal(t, "F", GradeFor(10, 0))
}
