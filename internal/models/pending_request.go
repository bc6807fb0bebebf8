package models

import "time"

// PendingRequest is a connection request from a prospective student, created
// remotely by the student app and resolved by the teacher side.
type PendingRequest struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	TeacherID     string     `db:"teacher_id" json:"teacher_id"`
	StudentName   string     `db:"student_name" json:"student_name"`
	StudentSchool string     `db:"student_school" json:"student_school"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	RespondedAt   *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}
