package attendance

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"studenttracker/internal/auth"
	"studenttracker/internal/metrics"
	"studenttracker/internal/models"
	"studenttracker/internal/store"
)

// Service runs the engine functions inside transactions with a clock pinned
// to the configured timezone.
type Service struct {
	db      *sql.DB
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewService creates a service. m may be nil.
func NewService(db *sql.DB, loc *time.Location, m *metrics.Metrics) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, loc: loc, now: time.Now, metrics: m}
}

// Today is the current calendar date in the service's timezone.
func (s *Service) Today() models.Date {
	return models.DateOf(s.now().In(s.loc))
}

// Mark runs a bulk marking request. The accepted records commit together.
func (s *Service) Mark(ctx context.Context, actor auth.Principal, courseID string, records []Record) (MarkResult, error) {
	var res MarkResult
	now := s.now()
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		res, err = MarkBatch(ctx, tx, actor, courseID, records, models.DateOf(now.In(s.loc)), now.UTC())
		return err
	})
	if err != nil {
		s.observeBatch("failed", 0, 0)
		return MarkResult{}, err
	}
	result := "complete"
	if res.Partial() {
		result = "partial"
		slog.InfoContext(ctx, "attendance batch partially rejected",
			slog.String("course_id", courseID),
			slog.Int("marked", res.MarkedCount),
			slog.Int("rejected", len(res.Errors)))
	}
	s.observeBatch(result, res.MarkedCount, len(res.Errors))
	return res, nil
}

func (s *Service) observeBatch(result string, marked, rejected int) {
	if s.metrics == nil {
		return
	}
	s.metrics.AttendanceBatches.WithLabelValues(result).Inc()
	s.metrics.AttendanceRecords.WithLabelValues("marked").Add(float64(marked))
	s.metrics.AttendanceRecords.WithLabelValues("rejected").Add(float64(rejected))
}

func (s *Service) Update(ctx context.Context, actor auth.Principal, id string, change Change) (models.Attendance, error) {
	var out models.Attendance
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, err = Update(ctx, tx, actor, id, change, s.now().UTC())
		return err
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return Delete(ctx, tx, actor, id)
	})
}

func (s *Service) Stats(ctx context.Context, actor auth.Principal, studentID, courseID string) (Stats, error) {
	return StudentStats(ctx, s.db, actor, studentID, courseID)
}

func (s *Service) Monthly(ctx context.Context, actor auth.Principal, studentID, courseID string, year, month int) (Monthly, error) {
	return MonthlyReport(ctx, s.db, actor, studentID, courseID, year, month)
}

func (s *Service) Summary(ctx context.Context, actor auth.Principal, courseID string) ([]SummaryRow, error) {
	return CourseSummary(ctx, s.db, actor, courseID)
}

func (s *Service) ListCourse(ctx context.Context, actor auth.Principal, courseID string, from, to *models.Date, page store.PageRequest) ([]models.Attendance, int, error) {
	return ListCourse(ctx, s.db, actor, courseID, from, to, page)
}

// Roster lists the enrolled students of a course with their status on date,
// today when date is nil.
func (s *Service) Roster(ctx context.Context, actor auth.Principal, courseID string, date *models.Date, page store.PageRequest) (models.Date, []RosterEntry, int, error) {
	day := s.Today()
	if date != nil {
		day = *date
	}
	entries, total, err := CourseRoster(ctx, s.db, actor, courseID, day, page)
	return day, entries, total, err
}

func (s *Service) History(ctx context.Context, actor auth.Principal, studentID, courseID string, page store.PageRequest) (History, error) {
	return StudentHistory(ctx, s.db, actor, studentID, courseID, page)
}
