package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"studenttracker/internal/apperr"
	"studenttracker/internal/auth"
	"studenttracker/internal/courses"
	"studenttracker/internal/models"
	"studenttracker/internal/store"
	"studenttracker/internal/users"
)

// Record is one entry of a bulk marking request.
type Record struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Date      string `json:"attendance_date"`
	Remarks   string `json:"remarks"`

	malformed string
}

type recordFields Record

// UnmarshalJSON never fails: a record that does not decode is kept and
// rejected on its own by MarkBatch.
func (r *Record) UnmarshalJSON(b []byte) error {
	var f recordFields
	if err := json.Unmarshal(b, &f); err != nil {
		*r = Record{malformed: malformedReason(err)}
		return nil
	}
	*r = Record(f)
	return nil
}

func malformedReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)
	}
	return "expected an object"
}

// MarkResult reports what a batch did. Every input record is either in
// Records or described by one entry of Errors.
type MarkResult struct {
	MarkedCount int                 `json:"marked_count"`
	Records     []models.Attendance `json:"records"`
	Errors      []string            `json:"errors,omitempty"`
}

// Partial reports whether any record was rejected.
func (r MarkResult) Partial() bool { return len(r.Errors) > 0 }

// Stats are a student's counts by status. Percentage is present/total*100
// rounded to two decimals, and 0 with no records.
type Stats struct {
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Late       int     `json:"late"`
	Total      int     `json:"total_classes"`
	Percentage float64 `json:"attendance_percentage"`
}

func (s *Stats) add(status models.AttendanceStatus, n int) {
	switch status {
	case models.StatusPresent:
		s.Present += n
	case models.StatusAbsent:
		s.Absent += n
	case models.StatusLate:
		s.Late += n
	}
}

func (s Stats) finish() Stats {
	s.Total = s.Present + s.Absent + s.Late
	s.Percentage = 0
	if s.Total > 0 {
		s.Percentage = math.Round(float64(s.Present)/float64(s.Total)*100*100) / 100
	}
	return s
}

// Slot identifies the single record a student may have in a course on a day.
type Slot struct {
	StudentID string
	CourseID  string
	Date      models.Date
}

// Put is the find-or-create primitive: it updates status and remarks of the
// record in slot, or inserts one owned by teacherID.
func Put(ctx context.Context, q store.DBTX, slot Slot, status models.AttendanceStatus, remarks, teacherID string, now time.Time) (models.Attendance, error) {
	repo := NewRepository(q)
	existing, err := repo.FindSlot(ctx, slot.StudentID, slot.CourseID, slot.Date)
	if err != nil {
		return models.Attendance{}, err
	}
	if existing != nil {
		if err := repo.SetStatus(ctx, existing.ID, status, remarks, now); err != nil {
			return models.Attendance{}, err
		}
		existing.Status, existing.Remarks, existing.UpdatedAt = status, remarks, now
		return *existing, nil
	}
	a, err := repo.Insert(ctx, models.Attendance{
		StudentID: slot.StudentID,
		CourseID:  slot.CourseID,
		TeacherID: teacherID,
		Date:      slot.Date,
		Status:    status,
		Remarks:   remarks,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return models.Attendance{}, err
	}
	created, err := repo.Get(ctx, a.ID)
	if err != nil || created == nil {
		return a, err
	}
	return *created, nil
}

// ownedCourse resolves a course and the acting teacher, and checks action
// against the policy. The teacher is nil for non-teachers.
func ownedCourse(ctx context.Context, q store.DBTX, actor auth.Principal, courseID string, action auth.Action) (*models.Course, *models.Teacher, error) {
	course, err := courses.NewRepository(q).GetCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if course == nil {
		return nil, nil, apperr.NotFound("Course not found")
	}
	var teacher *models.Teacher
	if actor.Role == models.RoleTeacher {
		if teacher, err = users.NewRepository(q).TeacherByUserID(ctx, actor.UserID); err != nil {
			return nil, nil, err
		}
	}
	owns := teacher != nil && teacher.ID == course.TeacherID
	if err := auth.Authorize(actor, action, owns); err != nil {
		return nil, nil, err
	}
	return course, teacher, nil
}

// MarkBatch marks attendance for a course. Each record is validated and
// written in its own savepoint, so a rejected record never undoes the
// others. today is the default date for records without one.
func MarkBatch(ctx context.Context, q store.DBTX, actor auth.Principal, courseID string, records []Record, today models.Date, now time.Time) (MarkResult, error) {
	_, teacher, err := ownedCourse(ctx, q, actor, courseID, auth.ActionMarkAttendance)
	if err != nil {
		return MarkResult{}, err
	}

	res := MarkResult{Records: []models.Attendance{}}
	people := users.NewRepository(q)
	repo := NewRepository(q)
	for i, rec := range records {
		var marked models.Attendance
		var reject string
		err := store.Savepoint(ctx, q, fmt.Sprintf("mark_%d", i), func() error {
			if rec.malformed != "" {
				reject = "Invalid record: " + rec.malformed
				return nil
			}
			if rec.StudentID == "" || rec.Status == "" {
				reject = "Invalid record: missing fields"
				return nil
			}
			student, err := people.GetStudent(ctx, rec.StudentID)
			if err != nil {
				return err
			}
			if student == nil {
				reject = fmt.Sprintf("Student %s not found", rec.StudentID)
				return nil
			}
			enrolled, err := repo.IsEnrolled(ctx, rec.StudentID, courseID)
			if err != nil {
				return err
			}
			if !enrolled {
				reject = fmt.Sprintf("Student %s not enrolled in this course", rec.StudentID)
				return nil
			}
			status := models.AttendanceStatus(rec.Status)
			if !status.Markable() {
				reject = fmt.Sprintf("Invalid status: %s", rec.Status)
				return nil
			}
			date := today
			if rec.Date != "" {
				if date, err = models.ParseDate(rec.Date); err != nil {
					reject = fmt.Sprintf("Invalid attendance_date %q for student %s: expected YYYY-MM-DD", rec.Date, rec.StudentID)
					return nil
				}
			}
			marked, err = Put(ctx, q, Slot{StudentID: rec.StudentID, CourseID: courseID, Date: date}, status, rec.Remarks, teacher.ID, now)
			return err
		})
		switch {
		case err != nil:
			res.Errors = append(res.Errors, recordFailure(ctx, rec.StudentID, err))
		case reject != "":
			res.Errors = append(res.Errors, reject)
		default:
			res.Records = append(res.Records, marked)
		}
	}
	res.MarkedCount = len(res.Records)
	return res, nil
}

// recordFailure logs a store error for one record and returns the message
// reported to the caller, which carries no driver detail.
func recordFailure(ctx context.Context, studentID string, err error) string {
	slog.ErrorContext(ctx, "attendance record failed",
		slog.String("student_id", studentID),
		slog.String("error", err.Error()))
	if studentID == "" {
		return "Error processing record"
	}
	return fmt.Sprintf("Error processing record for student %s", studentID)
}

// Change is a partial update of one record.
type Change struct {
	Status  *string `json:"status"`
	Remarks *string `json:"remarks"`
}

// Update changes status and/or remarks of a record in a course the actor
// teaches.
func Update(ctx context.Context, q store.DBTX, actor auth.Principal, id string, change Change, now time.Time) (models.Attendance, error) {
	existing, teacher, err := ownedRecord(ctx, q, actor, id)
	if err != nil {
		return models.Attendance{}, err
	}
	status, remarks := existing.Status, existing.Remarks
	if change.Status != nil {
		status = models.AttendanceStatus(*change.Status)
		if !status.Markable() {
			return models.Attendance{}, apperr.Invalid("Invalid status")
		}
	}
	if change.Remarks != nil {
		remarks = *change.Remarks
	}
	slot := Slot{StudentID: existing.StudentID, CourseID: existing.CourseID, Date: existing.Date}
	return Put(ctx, q, slot, status, remarks, teacher.ID, now)
}

// Delete removes a record from a course the actor teaches.
func Delete(ctx context.Context, q store.DBTX, actor auth.Principal, id string) error {
	if _, _, err := ownedRecord(ctx, q, actor, id); err != nil {
		return err
	}
	_, err := NewRepository(q).Delete(ctx, id)
	return err
}

func ownedRecord(ctx context.Context, q store.DBTX, actor auth.Principal, id string) (models.Attendance, *models.Teacher, error) {
	existing, err := NewRepository(q).Get(ctx, id)
	if err != nil {
		return models.Attendance{}, nil, err
	}
	if existing == nil {
		return models.Attendance{}, nil, apperr.NotFound("Attendance record not found")
	}
	_, teacher, err := ownedCourse(ctx, q, actor, existing.CourseID, auth.ActionMarkAttendance)
	if err != nil {
		return models.Attendance{}, nil, err
	}
	return *existing, teacher, nil
}

// viewableStudent resolves a student and checks the actor may read their
// records.
func viewableStudent(ctx context.Context, q store.DBTX, actor auth.Principal, studentID string) (*models.Student, error) {
	student, err := users.NewRepository(q).GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperr.NotFound("Student not found")
	}
	if err := auth.Authorize(actor, auth.ActionViewStudentAttendance, student.UserID == actor.UserID); err != nil {
		return nil, err
	}
	return student, nil
}

// StudentStats tallies a student's records across all courses, or within
// one when courseID is set.
func StudentStats(ctx context.Context, q store.DBTX, actor auth.Principal, studentID, courseID string) (Stats, error) {
	if _, err := viewableStudent(ctx, q, actor, studentID); err != nil {
		return Stats{}, err
	}
	return NewRepository(q).Counts(ctx, studentID, courseID)
}

// Day is one calendar day of a monthly report.
type Day struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
	Raw   DayRaw  `json:"raw"`
}

type DayRaw struct {
	Date   models.Date             `json:"date"`
	Status models.AttendanceStatus `json:"status"`
}

// Monthly is a student's attendance for every day of one month.
type Monthly struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id,omitempty"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Days      []Day  `json:"days"`
}

// DayValue maps a status to its chart value.
func DayValue(s models.AttendanceStatus) float64 {
	switch s {
	case models.StatusPresent:
		return 1
	case models.StatusLate:
		return 0.5
	default:
		return 0
	}
}

// IsLeap applies the proleptic Gregorian rule.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days of month in year.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeap(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// MonthlyReport returns one entry per day of the month. Days without a
// record are not_marked; when several courses have a record on the same day
// the earliest created wins.
func MonthlyReport(ctx context.Context, q store.DBTX, actor auth.Principal, studentID, courseID string, year, month int) (Monthly, error) {
	if month < 1 || month > 12 {
		return Monthly{}, apperr.Invalid("month must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return Monthly{}, apperr.Invalid("year must be between 1 and 9999")
	}
	if _, err := viewableStudent(ctx, q, actor, studentID); err != nil {
		return Monthly{}, err
	}
	m := time.Month(month)
	n := DaysIn(year, m)
	first := models.Date{Year: year, Month: m, Day: 1}
	last := models.Date{Year: year, Month: m, Day: n}
	records, err := NewRepository(q).Between(ctx, studentID, courseID, first, last)
	if err != nil {
		return Monthly{}, err
	}

	byDay := make(map[int]models.AttendanceStatus, len(records))
	for _, r := range records {
		if _, ok := byDay[r.Date.Day]; !ok {
			byDay[r.Date.Day] = r.Status
		}
	}
	out := Monthly{StudentID: studentID, CourseID: courseID, Year: year, Month: month, Days: make([]Day, 0, n)}
	for d := 1; d <= n; d++ {
		status, ok := byDay[d]
		if !ok {
			status = models.StatusNotMarked
		}
		out.Days = append(out.Days, Day{
			Day:   d,
			Value: DayValue(status),
			Raw:   DayRaw{Date: models.Date{Year: year, Month: m, Day: d}, Status: status},
		})
	}
	return out, nil
}

// CourseSummary tallies each active enrollment of a course the actor
// teaches, in enrollment order.
func CourseSummary(ctx context.Context, q store.DBTX, actor auth.Principal, courseID string) ([]SummaryRow, error) {
	if _, _, err := ownedCourse(ctx, q, actor, courseID, auth.ActionViewCourseAttendance); err != nil {
		return nil, err
	}
	return NewRepository(q).Summary(ctx, courseID)
}

// ListCourse pages through a course's records, optionally between two dates.
func ListCourse(ctx context.Context, q store.DBTX, actor auth.Principal, courseID string, from, to *models.Date, page store.PageRequest) ([]models.Attendance, int, error) {
	if _, _, err := ownedCourse(ctx, q, actor, courseID, auth.ActionViewCourseAttendance); err != nil {
		return nil, 0, err
	}
	return NewRepository(q).ListCourse(ctx, courseID, from, to, page)
}

// CourseRoster pages through a course's enrolled students with their status
// on date.
func CourseRoster(ctx context.Context, q store.DBTX, actor auth.Principal, courseID string, date models.Date, page store.PageRequest) ([]RosterEntry, int, error) {
	if _, _, err := ownedCourse(ctx, q, actor, courseID, auth.ActionViewCourseAttendance); err != nil {
		return nil, 0, err
	}
	return NewRepository(q).Roster(ctx, courseID, date, page)
}

// History is a page of a student's records with their statistics.
type History struct {
	Records    []models.Attendance `json:"records"`
	Statistics Stats               `json:"statistics"`
	Total      int                 `json:"-"`
}

// StudentHistory pages through a student's records, optionally within one
// course. Statistics cover the same scope.
func StudentHistory(ctx context.Context, q store.DBTX, actor auth.Principal, studentID, courseID string, page store.PageRequest) (History, error) {
	if _, err := viewableStudent(ctx, q, actor, studentID); err != nil {
		return History{}, err
	}
	repo := NewRepository(q)
	records, total, err := repo.History(ctx, studentID, courseID, page)
	if err != nil {
		return History{}, err
	}
	stats, err := repo.Counts(ctx, studentID, courseID)
	if err != nil {
		return History{}, err
	}
	return History{Records: records, Statistics: stats, Total: total}, nil
}
