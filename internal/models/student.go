package models

import (
	"math"
	"time"
)

// Student connection and approval states as stored locally and remotely.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusSolo     = "solo"

	ConnectionOnline  = "online"
	ConnectionOffline = "offline"
)

// Default goal values applied when a remote record carries no targets.
const (
	DefaultGrade              = 8
	DefaultTargetTotalScore   = 400
	DefaultTargetTurkceNet    = 15
	DefaultTargetMatematikNet = 15
	DefaultTargetFenNet       = 15
	DefaultTargetSosyalNet    = 8
	DefaultTargetDinNet       = 8
	DefaultTargetIngilizceNet = 8
)

// Student is a learner tracked by a teacher. The ID is the join key between
// the local store and the remote document store and never changes once set.
type Student struct {
	ID             string     `db:"id" json:"id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	School         string     `db:"school" json:"school"`
	Grade          int        `db:"grade" json:"grade"`
	Branch         string     `db:"branch" json:"branch"`
	StudentNumber  string     `db:"student_number" json:"student_number"`
	Notes          string     `db:"notes" json:"notes"`
	TeacherID      string     `db:"teacher_id" json:"teacher_id"`
	Status         string     `db:"status" json:"status"`
	ConnectionType string     `db:"connection_type" json:"connection_type"`
	ProfileImage   *string    `db:"profile_image" json:"profile_image,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ApprovedAt     *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	LastSyncDate   *time.Time `db:"last_sync_date" json:"last_sync_date,omitempty"`

	TargetTotalScore   float64 `db:"target_total_score" json:"target_total_score"`
	TargetTurkceNet    float64 `db:"target_turkce_net" json:"target_turkce_net"`
	TargetMatematikNet float64 `db:"target_matematik_net" json:"target_matematik_net"`
	TargetFenNet       float64 `db:"target_fen_net" json:"target_fen_net"`
	TargetSosyalNet    float64 `db:"target_sosyal_net" json:"target_sosyal_net"`
	TargetDinNet       float64 `db:"target_din_net" json:"target_din_net"`
	TargetIngilizceNet float64 `db:"target_ingilizce_net" json:"target_ingilizce_net"`
}

// StudentFilter captures listing options for students.
type StudentFilter struct {
	Search    string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// FullName joins first and last name for display.
func (s *Student) FullName() string {
	first := s.FirstName
	if first == "" {
		first = "Ad"
	}
	last := s.LastName
	if last == "" {
		last = "Soyad"
	}
	return first + " " + last
}

// SyncAllowed reports whether remote exam/performance changes for this
// student may be applied under the given teacher scope.
func (s *Student) SyncAllowed(teacherID string) bool {
	return s.TeacherID == teacherID && (s.Status == StatusApproved || s.Status == StatusSolo)
}

// StudentSummary aggregates exam statistics for a student. All values are
// derived, never persisted.
type StudentSummary struct {
	StudentID           string  `json:"student_id"`
	ExamCount           int     `json:"exam_count"`
	CurrentAverageScore float64 `json:"current_average_score"`
	ScoreProgress       float64 `json:"score_progress"`
	AverageTurkceNet    float64 `json:"average_turkce_net"`
	AverageMatematikNet float64 `json:"average_matematik_net"`
	AverageFenNet       float64 `json:"average_fen_net"`
	AverageSosyalNet    float64 `json:"average_sosyal_net"`
	AverageDinNet       float64 `json:"average_din_net"`
	AverageIngilizceNet float64 `json:"average_ingilizce_net"`
}

// Summarize computes the derived statistics from the student's exams.
func (s *Student) Summarize(exams []PracticeExam) StudentSummary {
	summary := StudentSummary{StudentID: s.ID, ExamCount: len(exams)}
	if len(exams) == 0 {
		return summary
	}

	count := float64(len(exams))
	for _, exam := range exams {
		summary.CurrentAverageScore += exam.TotalScore
		summary.AverageTurkceNet += exam.TurkceNet
		summary.AverageMatematikNet += exam.MatematikNet
		summary.AverageFenNet += exam.FenNet
		summary.AverageSosyalNet += exam.SosyalNet
		summary.AverageDinNet += exam.DinNet
		summary.AverageIngilizceNet += exam.IngilizceNet
	}

	summary.CurrentAverageScore = finiteOrZero(summary.CurrentAverageScore / count)
	summary.AverageTurkceNet = finiteOrZero(summary.AverageTurkceNet / count)
	summary.AverageMatematikNet = finiteOrZero(summary.AverageMatematikNet / count)
	summary.AverageFenNet = finiteOrZero(summary.AverageFenNet / count)
	summary.AverageSosyalNet = finiteOrZero(summary.AverageSosyalNet / count)
	summary.AverageDinNet = finiteOrZero(summary.AverageDinNet / count)
	summary.AverageIngilizceNet = finiteOrZero(summary.AverageIngilizceNet / count)

	if s.TargetTotalScore > 0 && summary.CurrentAverageScore > 0 {
		progress := summary.CurrentAverageScore / s.TargetTotalScore
		if math.IsInf(progress, 0) || math.IsNaN(progress) {
			progress = 0
		}
		summary.ScoreProgress = math.Min(1, math.Max(0, progress))
	}

	return summary
}

// ApplyDefaultTargets fills in the standard LGS goal values.
func (s *Student) ApplyDefaultTargets() {
	s.TargetTotalScore = DefaultTargetTotalScore
	s.TargetTurkceNet = DefaultTargetTurkceNet
	s.TargetMatematikNet = DefaultTargetMatematikNet
	s.TargetFenNet = DefaultTargetFenNet
	s.TargetSosyalNet = DefaultTargetSosyalNet
	s.TargetDinNet = DefaultTargetDinNet
	s.TargetIngilizceNet = DefaultTargetIngilizceNet
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
