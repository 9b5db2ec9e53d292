package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studenttracker/internal/attendance"
	"studenttracker/internal/auth"
	"studenttracker/internal/config"
	"studenttracker/internal/models"
	"studenttracker/internal/seed"
	"studenttracker/internal/store"
)

// Seed loads sample accounts, courses, enrollments and three weeks of
// attendance into an empty database.
func main() {
	cfg := config.MustLoad()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("db connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := store.WithTx(ctx, db.Client, func(tx *sql.Tx) error {
		return run(ctx, tx, cfg.Location())
	}); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed complete", slog.String("password", seed.DefaultPassword))
}

type teacherSpec struct {
	email, employeeID, first, last, specialization string
	course, courseName                             string
}

var teachers = []teacherSpec{
	{"hopper@school.test", "T001", "Grace", "Hopper", "Computer Science", "CS101", "Introduction to Programming"},
	{"noether@school.test", "T002", "Emmy", "Noether", "Mathematics", "MA201", "Abstract Algebra"},
}

var students = [][3]string{
	{"S001", "Ada", "Lovelace"},
	{"S002", "Alan", "Turing"},
	{"S003", "Katherine", "Johnson"},
	{"S004", "Edsger", "Dijkstra"},
	{"S005", "Barbara", "Liskov"},
}

var pattern = []string{"present", "present", "late", "present", "absent"}

func run(ctx context.Context, tx *sql.Tx, loc *time.Location) error {
	sd, err := seed.New(tx)
	if err != nil {
		return err
	}
	if _, err := sd.Admin(ctx, "admin@school.test"); err != nil {
		return err
	}

	var studentIDs []string
	for _, s := range students {
		email := fmt.Sprintf("%s@school.test", s[0])
		_, st, err := sd.Student(ctx, email, s[0], s[1], s[2])
		if err != nil {
			return err
		}
		studentIDs = append(studentIDs, st.ID)
	}

	now := time.Now().In(loc)
	start := now.AddDate(0, 0, -21)
	for ti, t := range teachers {
		u, teacher, err := sd.Teacher(ctx, t.email, t.employeeID, t.first, t.last, t.specialization)
		if err != nil {
			return err
		}
		course, err := sd.Course(ctx, teacher.ID, t.course, t.courseName, 30)
		if err != nil {
			return err
		}
		for i, sid := range studentIDs {
			if _, err := sd.Enroll(ctx, sid, course.ID, start.Add(time.Duration(i)*time.Minute).UTC()); err != nil {
				return err
			}
		}

		actor := auth.Principal{UserID: u.ID, Role: models.RoleTeacher}
		marked := 0
		for d := start; d.Before(now); d = d.AddDate(0, 0, 1) {
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				continue
			}
			day := models.DateOf(d)
			records := make([]attendance.Record, 0, len(studentIDs))
			for i, sid := range studentIDs {
				records = append(records, attendance.Record{
					StudentID: sid,
					Status:    pattern[(i+d.Day()+ti)%len(pattern)],
					Date:      day.String(),
				})
			}
			res, err := attendance.MarkBatch(ctx, tx, actor, course.ID, records, day, d.UTC())
			if err != nil {
				return err
			}
			marked += res.MarkedCount
		}
		slog.Info("course seeded",
			slog.String("course", course.Code),
			slog.Int("students", len(studentIDs)),
			slog.Int("records", marked))
	}
	return nil
}
