package progress

import (
	"slices"

	"github.com/garnizeh/preptrack/pkg/models"
)

// MergeQuestionProgress reconciles a client-cached record with the stored one without
// losing progress on either side: booleans are OR-ed, counters take the maximum. Notes
// are free text with no order, so the stored value wins unless it is empty.
func MergeQuestionProgress(stored, client models.QuestionProgress) models.QuestionProgress {
	out := stored
	out.Completed = stored.Completed || client.Completed
	out.ViewedAnswer = stored.ViewedAnswer || client.ViewedAnswer
	out.TimeSpentSeconds = max(stored.TimeSpentSeconds, client.TimeSpentSeconds)
	out.HintsRevealed = max(stored.HintsRevealed, client.HintsRevealed)
	if out.Notes == "" {
		out.Notes = client.Notes
	}
	return out
}

// patchFrom turns a merged record into a patch that sets every field.
func patchFrom(q models.QuestionProgress) models.QuestionProgressPatch {
	return models.QuestionProgressPatch{
		Completed:        &q.Completed,
		TimeSpentSeconds: &q.TimeSpentSeconds,
		Notes:            &q.Notes,
		ViewedAnswer:     &q.ViewedAnswer,
		HintsRevealed:    &q.HintsRevealed,
	}
}

// UnionSteps returns the sorted set union of a and b.
func UnionSteps(a, b []int) []int {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// UnionQuestions returns the sorted set union of a and b.
func UnionQuestions(a, b []string) []string {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}
