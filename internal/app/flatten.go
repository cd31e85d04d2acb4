package app

import "quizmaster/internal/domain"

// Flatten lays out every question of every group in one sequence: group order
// first, then position within the group. The flat index is the session-wide
// question number. Missing or empty groups yield an empty sequence.
func Flatten(groups []domain.QuizGroup) []domain.Question {
	total := 0
	for _, g := range groups {
		total += len(g.Questions)
	}
	flat := make([]domain.Question, 0, total)
	for gi, g := range groups {
		for qi, q := range g.Questions {
			q.GroupIndex = gi
			q.PositionInGroup = qi
			if q.Options != nil {
				opts := make(map[string]string, len(q.Options))
				for k, v := range q.Options {
					opts[k] = v
				}
				q.Options = opts
			}
			flat = append(flat, q)
		}
	}
	return flat
}
