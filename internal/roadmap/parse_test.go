package roadmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"crewline/internal/domain"
)

func TestParseStripsFences(t *testing.T) {
	rm, err := Parse("```json\n{\"milestones\":[{\"title\":\"MVP\",\"order\":0}],\"tasks\":[{\"title\":\"Schema\",\"milestone_index\":0}]}\n```")
	require.NoError(t, err)
	require.Len(t, rm.Milestones, 1)
	require.Equal(t, "MVP", rm.Milestones[0].Title)
	require.Len(t, rm.Tasks, 1)
	require.NotNil(t, rm.Tasks[0].MilestoneIndex)
	require.Equal(t, 0, *rm.Tasks[0].MilestoneIndex)
}

func TestParseUnwrapsRoadmapKey(t *testing.T) {
	rm, err := Parse(`Here is the plan:
{"roadmap": {"milestones": [], "tasks": [{"title": "Research donors", "type": "research", "day_offset": 3}]}}
Let me know if you need changes.`)
	require.NoError(t, err)
	require.Len(t, rm.Tasks, 1)
	require.Equal(t, "research", rm.Tasks[0].Type)
	require.Equal(t, 3, *rm.Tasks[0].DayOffset)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "no json here", `{"summary": "nothing"}`, `{"milestones": [], "tasks": []}`} {
		_, err := Parse(in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, domain.ErrGenerationFailed), in)
	}
}

func TestParseUntitledMilestoneIsFatal(t *testing.T) {
	_, err := Parse(`{"milestones":[{"title":"A"},{"title":"  "}],"tasks":[]}`)
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	require.Contains(t, err.Error(), "milestone 1")
}

func TestRanksKeepsTiesStable(t *testing.T) {
	keys := []int{5, 1, 5, 0}
	require.Equal(t, []int{3, 1, 0, 2}, ranks(len(keys), func(i int) int { return keys[i] }))
}

func TestParseKeepsGoodTasksAroundMalformedOne(t *testing.T) {
	rm, err := Parse(`{"milestones":[{"title":"M1"}],"tasks":[
		{"title":"good","milestone_index":0},
		{"title":"bad","milestone_index":"1"},
		{"title":"fractional","day_offset":2.5},
		{"title":"also good"}]}`)
	require.NoError(t, err)
	require.Len(t, rm.Tasks, 4)
	require.Empty(t, rm.Tasks[0].Malformed)
	require.Equal(t, "bad", rm.Tasks[1].Title)
	require.Contains(t, rm.Tasks[1].Malformed, "milestone_index")
	require.NotEmpty(t, rm.Tasks[2].Malformed)
	require.Empty(t, rm.Tasks[3].Malformed)
	require.Equal(t, "also good", rm.Tasks[3].Title)
}

func TestParseMalformedMilestoneIsFatal(t *testing.T) {
	_, err := Parse(`{"milestones":[{"title":"A","day_offset":"soon"}],"tasks":[{"title":"x"}]}`)
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	require.Contains(t, err.Error(), "decode milestones")
}
