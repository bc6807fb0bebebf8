package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/remote"
)

// Required-field extraction and field application for remote records. A
// record missing a required field, or with a mistyped one, is skipped by the
// caller; one malformed document never aborts the rest of its batch.
//
// Apply functions overwrite every mapped field unconditionally: the incoming
// record wins at full-record granularity. Optional blocks (targets, nets,
// dates) only overwrite when present, so a sparse merge write from the other
// side does not zero fields it did not carry.

func studentDocKey(doc remote.Document) (string, bool) {
	id, ok := doc.String("id")
	if !ok || !validUUID(id) {
		return "", false
	}
	if _, ok := doc.String("firstName"); !ok {
		return "", false
	}
	if _, ok := doc.String("lastName"); !ok {
		return "", false
	}
	return id, true
}

func applyStudentDoc(student *models.Student, doc remote.Document) {
	student.FirstName = doc.StringOr("firstName", "")
	student.LastName = doc.StringOr("lastName", "")
	student.School = doc.StringOr("school", "")
	student.Grade = doc.IntOr("grade", models.DefaultGrade)
	student.Branch = doc.StringOr("branch", "")
	student.StudentNumber = doc.StringOr("studentNumber", "")
	student.Notes = doc.StringOr("notes", "")
	student.TeacherID = doc.StringOr("teacherID", "")
	student.Status = doc.StringOr("status", models.StatusSolo)
	// Records arriving from the remote store come from the companion student
	// app, so the connection is online by definition.
	student.ConnectionType = models.ConnectionOnline

	if approvedAt, ok := doc.Time("approvedAt"); ok {
		student.ApprovedAt = &approvedAt
	}

	if targets, ok := doc.Child("targets"); ok {
		student.TargetTotalScore = targets.FloatOr("totalScore", models.DefaultTargetTotalScore)
		student.TargetTurkceNet = targets.FloatOr("turkceNet", models.DefaultTargetTurkceNet)
		student.TargetMatematikNet = targets.FloatOr("matematikNet", models.DefaultTargetMatematikNet)
		student.TargetFenNet = targets.FloatOr("fenNet", models.DefaultTargetFenNet)
		student.TargetSosyalNet = targets.FloatOr("sosyalNet", models.DefaultTargetSosyalNet)
		student.TargetDinNet = targets.FloatOr("dinNet", models.DefaultTargetDinNet)
		student.TargetIngilizceNet = targets.FloatOr("ingilizceNet", models.DefaultTargetIngilizceNet)
	}
}

func examDocKey(doc remote.Document) (string, bool) {
	id, ok := doc.String("id")
	if !ok || !validUUID(id) {
		return "", false
	}
	if _, ok := doc.String("name"); !ok {
		return "", false
	}
	if _, ok := doc.Float("totalScore"); !ok {
		return "", false
	}
	return id, true
}

func applyExamDoc(exam *models.PracticeExam, doc remote.Document) {
	exam.Name = doc.StringOr("name", "")
	exam.TotalScore = doc.FloatOr("totalScore", 0)
	exam.Notes = doc.StringOr("notes", "")

	if date, ok := doc.Time("date"); ok {
		exam.Date = date
	}

	if nets, ok := doc.Child("nets"); ok {
		exam.TurkceNet = nets.FloatOr("turkce", 0)
		exam.MatematikNet = nets.FloatOr("matematik", 0)
		exam.FenNet = nets.FloatOr("fen", 0)
		exam.SosyalNet = nets.FloatOr("sosyal", 0)
		exam.DinNet = nets.FloatOr("din", 0)
		exam.IngilizceNet = nets.FloatOr("ingilizce", 0)
	}
}

func performanceDocKey(doc remote.Document) (string, bool) {
	id, ok := doc.String("id")
	if !ok || !validUUID(id) {
		return "", false
	}
	if _, ok := doc.String("subject"); !ok {
		return "", false
	}
	if _, ok := doc.String("topic"); !ok {
		return "", false
	}
	if _, ok := doc.Int("correctCount"); !ok {
		return "", false
	}
	if _, ok := doc.Int("wrongCount"); !ok {
		return "", false
	}
	if _, ok := doc.Int("emptyCount"); !ok {
		return "", false
	}
	return id, true
}

func applyPerformanceDoc(perf *models.QuestionPerformance, doc remote.Document) {
	perf.Subject = doc.StringOr("subject", "")
	perf.Topic = doc.StringOr("topic", "")
	perf.CorrectCount = doc.IntOr("correctCount", 0)
	perf.WrongCount = doc.IntOr("wrongCount", 0)
	perf.EmptyCount = doc.IntOr("emptyCount", 0)
	perf.TimeInMinutes = doc.IntOr("timeInMinutes", 0)
	perf.Notes = doc.StringOr("notes", "")

	if date, ok := doc.Time("date"); ok {
		perf.Date = date
	}
}

func parsePendingRequestDoc(doc remote.Document) (*models.PendingRequest, bool) {
	id, ok := doc.String("id")
	if !ok || !validUUID(id) {
		return nil, false
	}
	studentID, ok := doc.String("studentID")
	if !ok {
		return nil, false
	}
	teacherID, ok := doc.String("teacherID")
	if !ok {
		return nil, false
	}
	studentName, ok := doc.String("studentName")
	if !ok {
		return nil, false
	}
	studentSchool, ok := doc.String("studentSchool")
	if !ok {
		return nil, false
	}
	status, ok := doc.String("status")
	if !ok {
		return nil, false
	}

	request := &models.PendingRequest{
		ID:            id,
		StudentID:     studentID,
		TeacherID:     teacherID,
		StudentName:   studentName,
		StudentSchool: studentSchool,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
	if createdAt, ok := doc.Time("createdAt"); ok {
		request.CreatedAt = createdAt
	}
	if respondedAt, ok := doc.Time("respondedAt"); ok {
		request.RespondedAt = &respondedAt
	}

	return request, true
}

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
