package services

import (
	"strings"

	"github.com/anjiri1684/drivesmart/models"
)

const PassThreshold = 70.0

type Score struct {
	Correct    int
	Wrong      int
	Percentage float64
	Passed     bool
}

// GradeAnswer compares ignoring surrounding whitespace and letter case.
func GradeAnswer(q models.Question, submitted string) bool {
	return strings.EqualFold(strings.TrimSpace(q.CorrectAnswer), strings.TrimSpace(submitted))
}

// ScoreSession tallies graded answers against the session size. Questions
// without an answer count as wrong.
func ScoreSession(totalQuestions int, answers []models.UserAnswer) Score {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	return scoreFromCounts(totalQuestions, correct)
}

func scoreFromCounts(total, correct int) Score {
	s := Score{Correct: correct, Wrong: total - correct}
	if total > 0 {
		s.Percentage = float64(correct) * 100.0 / float64(total)
	}
	s.Passed = s.Percentage >= PassThreshold
	return s
}
