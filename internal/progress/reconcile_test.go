package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garnizeh/preptrack/internal/progress"
	"github.com/garnizeh/preptrack/pkg/models"
)

func TestMergeQuestionProgress(t *testing.T) {
	stored := models.QuestionProgress{SessionID: "s", QuestionID: "q", Completed: true, TimeSpentSeconds: 30, HintsRevealed: 1}
	client := models.QuestionProgress{SessionID: "s", QuestionID: "q", ViewedAnswer: true, TimeSpentSeconds: 10, HintsRevealed: 3, Notes: "from client"}

	got := progress.MergeQuestionProgress(stored, client)
	assert.True(t, got.Completed)
	assert.True(t, got.ViewedAnswer)
	assert.Equal(t, int64(30), got.TimeSpentSeconds)
	assert.Equal(t, 3, got.HintsRevealed)
	assert.Equal(t, "from client", got.Notes)

	stored.Notes = "server notes"
	got = progress.MergeQuestionProgress(stored, client)
	assert.Equal(t, "server notes", got.Notes)
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 4}, progress.UnionSteps([]int{2, 0}, []int{4, 1, 2}))
	assert.Equal(t, []string{"a", "b"}, progress.UnionQuestions([]string{"b"}, []string{"a", "b", "a"}))
	assert.Empty(t, progress.UnionSteps(nil, nil))
}
