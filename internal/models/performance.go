package models

import "time"

// QuestionPerformance records a topic-level question drill for a student.
type QuestionPerformance struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	Subject       string    `db:"subject" json:"subject"`
	Topic         string    `db:"topic" json:"topic"`
	CorrectCount  int       `db:"correct_count" json:"correct_count"`
	WrongCount    int       `db:"wrong_count" json:"wrong_count"`
	EmptyCount    int       `db:"empty_count" json:"empty_count"`
	TimeInMinutes int       `db:"time_in_minutes" json:"time_in_minutes"`
	Notes         string    `db:"notes" json:"notes"`
	Date          time.Time `db:"date" json:"date"`
}

// TotalQuestions is the sum of correct, wrong and empty counts.
func (p *QuestionPerformance) TotalQuestions() int {
	return p.CorrectCount + p.WrongCount + p.EmptyCount
}

// SuccessRate is the percentage of correct answers, 0 when nothing answered.
func (p *QuestionPerformance) SuccessRate() float64 {
	total := p.TotalQuestions()
	if total == 0 {
		return 0
	}
	return float64(p.CorrectCount) / float64(total) * 100
}
