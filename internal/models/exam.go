package models

import "time"

// MaxExamScore is the domain ceiling for an LGS practice exam total score.
// Values above it are a validation error, never clamped.
const MaxExamScore = 500

// PracticeExam is a mock exam result owned by a single student.
type PracticeExam struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Name       string    `db:"name" json:"name"`
	Date       time.Time `db:"date" json:"date"`
	TotalScore float64   `db:"total_score" json:"total_score"`
	Notes      string    `db:"notes" json:"notes"`

	TurkceNet    float64 `db:"turkce_net" json:"turkce_net"`
	MatematikNet float64 `db:"matematik_net" json:"matematik_net"`
	FenNet       float64 `db:"fen_net" json:"fen_net"`
	SosyalNet    float64 `db:"sosyal_net" json:"sosyal_net"`
	DinNet       float64 `db:"din_net" json:"din_net"`
	IngilizceNet float64 `db:"ingilizce_net" json:"ingilizce_net"`
}

// TotalNet sums the six subject nets. Informational only; independent of the
// teacher-entered total score.
func (e *PracticeExam) TotalNet() float64 {
	return e.TurkceNet + e.MatematikNet + e.FenNet + e.SosyalNet + e.DinNet + e.IngilizceNet
}

// Net applies the LGS scoring convention: correct minus a third of wrong,
// floored at zero.
func Net(correct, wrong int) float64 {
	net := float64(correct) - float64(wrong)/3
	if net < 0 {
		return 0
	}
	return net
}
