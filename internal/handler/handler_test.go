package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studenttracker/internal/auth"
	"studenttracker/internal/handler"
	"studenttracker/internal/metrics"
	"studenttracker/internal/seed"
	"studenttracker/internal/store/storetest"
)

func init() { gin.SetMode(gin.TestMode) }

type memDenylist struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (d *memDenylist) Revoke(_ context.Context, id string, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = true
	return nil
}

func (d *memDenylist) Revoked(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ids[id], nil
}

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type client struct {
	t *testing.T
	r *gin.Engine
}

func newClient(t *testing.T) client {
	t.Helper()
	db := storetest.Open(t)
	sd, err := seed.New(db.Client)
	require.NoError(t, err)
	_, err = sd.Admin(context.Background(), "admin@example.com")
	require.NoError(t, err)

	r := handler.NewRouter(handler.Deps{
		DB: db,
		Issuer: auth.Issuer{
			Name: "test", Key: []byte("test-secret"),
			AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour,
		},
		Denylist: &memDenylist{ids: map[string]bool{}},
		Metrics:  metrics.New(),
		Location: time.UTC,
	})
	return client{t: t, r: r}
}

func (c client) do(method, path, token string, body any) envelope {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.Equal(c.t, w.Code, env.StatusCode)
	return env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

type session struct {
	User struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"tokens"`
}

func (c client) login(email, password string) session {
	c.t.Helper()
	env := c.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, env.StatusCode, env.Message)
	return decode[session](c.t, env)
}

func (c client) register(body gin.H) session {
	c.t.Helper()
	env := c.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(c.t, http.StatusCreated, env.StatusCode, env.Message)
	return decode[session](c.t, env)
}

func TestHealthAndMetrics(t *testing.T) {
	c := newClient(t)

	env := c.do(http.MethodGet, "/api/health", "", nil)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"healthy","service":"StudentTracker API"}`, string(env.Data))

	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","db":true}`, w.Body.String())

	w = httptest.NewRecorder()
	c.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `studenttracker_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestAuthFlow(t *testing.T) {
	c := newClient(t)

	reg := c.register(gin.H{
		"email": "Ada@Example.com", "password": "secret1", "first_name": "Ada",
		"last_name": "Lovelace", "role": "student", "roll_number": "S001",
	})
	assert.Equal(t, "student", reg.User.Role)
	assert.NotEmpty(t, reg.Tokens.AccessToken)

	dup := c.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ada@example.com", "password": "secret1", "first_name": "Ada",
		"last_name": "Lovelace", "role": "student", "roll_number": "S002",
	})
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
	assert.Equal(t, "Email already registered", dup.Message)

	bad := c.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "nope", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.False(t, bad.Success)

	wrong := c.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	assert.Equal(t, "Invalid email or password", wrong.Message)

	sess := c.login("ada@example.com", "secret1")

	me := c.do(http.MethodGet, "/api/auth/me", sess.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, me.StatusCode)
	profile := decode[struct {
		Email   string `json:"email"`
		Student *struct {
			RollNumber string `json:"roll_number"`
		} `json:"student"`
	}](t, me)
	assert.Equal(t, "ada@example.com", profile.Email)
	require.NotNil(t, profile.Student)
	assert.Equal(t, "S001", profile.Student.RollNumber)

	missing := c.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, missing.StatusCode)
	assert.Equal(t, "Authorization header is missing", missing.Message)

	refreshed := c.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": sess.Tokens.RefreshToken})
	assert.Equal(t, http.StatusOK, refreshed.StatusCode)
	assert.Equal(t, "Token refreshed", refreshed.Message)

	reused := c.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": sess.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, reused.StatusCode, "refresh tokens are single use")

	asAccess := c.do(http.MethodPost, "/api/auth/refresh", sess.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, asAccess.StatusCode)

	out := c.do(http.MethodPost, "/api/auth/logout", sess.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	revoked := c.do(http.MethodGet, "/api/auth/me", sess.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, revoked.StatusCode)
	assert.Equal(t, "Token has been revoked", revoked.Message)
}

func TestAdminRoutes(t *testing.T) {
	c := newClient(t)
	student := c.register(gin.H{
		"email": "s@example.com", "password": "secret1", "first_name": "S",
		"last_name": "One", "role": "student", "roll_number": "S001",
	})
	c.register(gin.H{
		"email": "t@example.com", "password": "secret1", "first_name": "T",
		"last_name": "One", "role": "teacher", "employee_id": "T001",
	})
	admin := c.login("admin@example.com", seed.DefaultPassword)
	tok := admin.Tokens.AccessToken

	denied := c.do(http.MethodGet, "/api/admin/users", student.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)

	env := c.do(http.MethodGet, "/api/admin/users?role=student", tok, nil)
	require.Equal(t, http.StatusOK, env.StatusCode)
	page := decode[struct {
		Users []struct {
			Email string `json:"email"`
		} `json:"users"`
		Total   int `json:"total"`
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
		Pages   int `json:"pages"`
	}](t, env)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Pages)
	assert.Equal(t, 20, page.PerPage)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "s@example.com", page.Users[0].Email)

	badRole := c.do(http.MethodGet, "/api/admin/users?role=janitor", tok, nil)
	assert.Equal(t, http.StatusBadRequest, badRole.StatusCode)

	dash := c.do(http.MethodGet, "/api/admin/dashboard", tok, nil)
	assert.JSONEq(t, `{"total_users":3,"total_students":1,"total_teachers":1,"total_courses":0}`, string(dash.Data))

	students := decode[struct {
		Students []struct {
			ID string `json:"id"`
		} `json:"students"`
	}](t, c.do(http.MethodGet, "/api/admin/students", tok, nil))
	require.Len(t, students.Students, 1)
	sid := students.Students[0].ID

	upd := c.do(http.MethodPut, "/api/admin/students/"+sid, tok, gin.H{"phone": "555-0100"})
	assert.Equal(t, http.StatusOK, upd.StatusCode)
	assert.Equal(t, "555-0100", decode[struct {
		Phone string `json:"phone"`
	}](t, upd).Phone)

	del := c.do(http.MethodDelete, "/api/admin/users/"+student.User.ID, tok, nil)
	assert.Equal(t, http.StatusOK, del.StatusCode)
	inactive := c.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "s@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, inactive.StatusCode)

	gone := c.do(http.MethodGet, "/api/admin/teachers/does-not-exist", tok, nil)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

type idOnly struct {
	ID string `json:"id"`
}

func TestCourseAndAttendanceFlow(t *testing.T) {
	c := newClient(t)
	teacher := c.register(gin.H{
		"email": "t@example.com", "password": "secret1", "first_name": "Grace",
		"last_name": "Hopper", "role": "teacher", "employee_id": "T001",
	}).Tokens.AccessToken
	stranger := c.register(gin.H{
		"email": "x@example.com", "password": "secret1", "first_name": "Alan",
		"last_name": "Turing", "role": "teacher", "employee_id": "T002",
	}).Tokens.AccessToken
	student := c.register(gin.H{
		"email": "s@example.com", "password": "secret1", "first_name": "Ada",
		"last_name": "Lovelace", "role": "student", "roll_number": "S001",
	}).Tokens.AccessToken
	me := decode[struct {
		Student idOnly `json:"student"`
	}](t, c.do(http.MethodGet, "/api/auth/me", student, nil))
	sid := me.Student.ID

	created := c.do(http.MethodPost, "/api/courses", teacher, gin.H{"course_code": "CS101", "course_name": "Intro"})
	require.Equal(t, http.StatusCreated, created.StatusCode, created.Message)
	course := decode[struct {
		ID          string `json:"id"`
		Credits     int    `json:"credits"`
		MaxStudents int    `json:"max_students"`
		TeacherName string `json:"teacher_name"`
	}](t, created)
	assert.Equal(t, 3, course.Credits)
	assert.Equal(t, 50, course.MaxStudents)
	assert.Equal(t, "Grace Hopper", course.TeacherName)

	dupCode := c.do(http.MethodPost, "/api/courses", teacher, gin.H{"course_code": "CS101", "course_name": "Again"})
	assert.Equal(t, http.StatusConflict, dupCode.StatusCode)

	notOwner := c.do(http.MethodPut, "/api/courses/"+course.ID, stranger, gin.H{"course_name": "Mine"})
	assert.Equal(t, http.StatusForbidden, notOwner.StatusCode)

	enrolled := c.do(http.MethodPost, "/api/courses/"+course.ID+"/enroll", student, nil)
	assert.Equal(t, http.StatusCreated, enrolled.StatusCode, enrolled.Message)
	again := c.do(http.MethodPost, "/api/courses/"+course.ID+"/enroll", student, nil)
	assert.Equal(t, http.StatusConflict, again.StatusCode)
	assert.Equal(t, "Already enrolled in this course", again.Message)

	listed := decode[struct {
		Courses []struct {
			EnrolledStudents int `json:"enrolled_students"`
		} `json:"courses"`
	}](t, c.do(http.MethodGet, "/api/courses", student, nil))
	require.Len(t, listed.Courses, 1)
	assert.Equal(t, 1, listed.Courses[0].EnrolledStudents)

	mark := c.do(http.MethodPost, "/api/attendance", teacher, gin.H{
		"course_id": course.ID,
		"attendance_records": []gin.H{
			{"student_id": sid, "status": "present", "attendance_date": "2024-03-11"},
			{"student_id": "ghost", "status": "present", "attendance_date": "2024-03-11"},
		},
	})
	assert.Equal(t, http.StatusMultiStatus, mark.StatusCode)
	res := decode[struct {
		MarkedCount int      `json:"marked_count"`
		Records     []idOnly `json:"records"`
		Errors      []string `json:"errors"`
	}](t, mark)
	assert.Equal(t, 1, res.MarkedCount)
	assert.Equal(t, []string{"Student ghost not found"}, res.Errors)

	full := c.do(http.MethodPost, "/api/attendance", teacher, gin.H{
		"course_id": course.ID,
		"attendance_records": []gin.H{
			{"student_id": sid, "status": "absent", "attendance_date": "2024-03-12"},
		},
	})
	assert.Equal(t, http.StatusCreated, full.StatusCode)

	byStudent := c.do(http.MethodPost, "/api/attendance", student, gin.H{"course_id": course.ID, "attendance_records": []gin.H{}})
	assert.Equal(t, http.StatusForbidden, byStudent.StatusCode)

	noRecords := c.do(http.MethodPost, "/api/attendance", teacher, gin.H{"course_id": course.ID})
	assert.Equal(t, http.StatusBadRequest, noRecords.StatusCode)
	assert.Equal(t, "field attendance_records is required", noRecords.Message)

	mixed := c.do(http.MethodPost, "/api/attendance", teacher, gin.H{
		"course_id": course.ID,
		"attendance_records": []any{
			gin.H{"student_id": sid, "status": "present", "attendance_date": "2024-03-13"},
			gin.H{"student_id": 42, "status": "present"},
			"not-a-record",
		},
	})
	require.Equal(t, http.StatusMultiStatus, mixed.StatusCode, mixed.Message)
	mixedRes := decode[struct {
		MarkedCount int      `json:"marked_count"`
		Errors      []string `json:"errors"`
	}](t, mixed)
	assert.Equal(t, 1, mixedRes.MarkedCount)
	assert.Equal(t, []string{
		"Invalid record: student_id must be a string",
		"Invalid record: expected an object",
	}, mixedRes.Errors)

	roster := c.do(http.MethodGet, "/api/attendance/course/"+course.ID+"/today?date=2024-03-11", teacher, nil)
	require.Equal(t, http.StatusOK, roster.StatusCode)
	r := decode[struct {
		Date     string `json:"date"`
		Students []struct {
			Status string `json:"status"`
		} `json:"students"`
		Total int `json:"total"`
	}](t, roster)
	assert.Equal(t, "2024-03-11", r.Date)
	assert.Equal(t, 1, r.Total)
	require.Len(t, r.Students, 1)
	assert.Equal(t, "present", r.Students[0].Status)

	badDate := c.do(http.MethodGet, "/api/attendance/course/"+course.ID+"/today?date=11-03-2024", teacher, nil)
	assert.Equal(t, http.StatusBadRequest, badDate.StatusCode)
	assert.Equal(t, "Invalid date format, expected YYYY-MM-DD", badDate.Message)

	ranged := decode[struct {
		Records []idOnly `json:"records"`
		Total   int      `json:"total"`
		PerPage int      `json:"per_page"`
	}](t, c.do(http.MethodGet, "/api/attendance/course/"+course.ID+"?from_date=2024-03-12&to_date=2024-03-12", teacher, nil))
	assert.Equal(t, 1, ranged.Total)
	assert.Equal(t, 50, ranged.PerPage)

	other := c.do(http.MethodGet, "/api/attendance/course/"+course.ID+"/summary", stranger, nil)
	assert.Equal(t, http.StatusForbidden, other.StatusCode)

	history := c.do(http.MethodGet, "/api/attendance/student/"+sid+"?per_page=2", student, nil)
	require.Equal(t, http.StatusOK, history.StatusCode)
	hist := decode[struct {
		Records    []idOnly        `json:"records"`
		Statistics json.RawMessage `json:"statistics"`
		Total      int             `json:"total"`
		Page       int             `json:"page"`
		PerPage    int             `json:"per_page"`
		Pages      int             `json:"pages"`
	}](t, history)
	assert.Equal(t, 3, hist.Total)
	assert.Equal(t, 1, hist.Page)
	assert.Equal(t, 2, hist.PerPage)
	assert.Equal(t, 2, hist.Pages)
	assert.Len(t, hist.Records, 2)
	assert.NotContains(t, string(history.Data), `"pagination"`)
	assert.JSONEq(t,
		`{"present":2,"absent":1,"late":0,"total_classes":3,"attendance_percentage":66.67}`,
		string(hist.Statistics))

	monthly := c.do(http.MethodGet, "/api/attendance/student/"+sid+"/monthly?year=2024&month=2", student, nil)
	require.Equal(t, http.StatusOK, monthly.StatusCode)
	m := decode[struct {
		Days []struct {
			Value float64 `json:"value"`
		} `json:"days"`
	}](t, monthly)
	assert.Len(t, m.Days, 29)

	notInt := c.do(http.MethodGet, "/api/attendance/student/"+sid+"/monthly?month=march", student, nil)
	assert.Equal(t, http.StatusBadRequest, notInt.StatusCode)
	outOfRange := c.do(http.MethodGet, "/api/attendance/student/"+sid+"/monthly?month=13", student, nil)
	assert.Equal(t, http.StatusBadRequest, outOfRange.StatusCode)

	rec := res.Records[0].ID
	upd := c.do(http.MethodPut, "/api/attendance/"+rec, teacher, gin.H{"status": "late"})
	assert.Equal(t, http.StatusOK, upd.StatusCode)
	invalid := c.do(http.MethodPut, "/api/attendance/"+rec, teacher, gin.H{"status": "sleeping"})
	assert.Equal(t, http.StatusBadRequest, invalid.StatusCode)
	assert.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/api/attendance/"+rec, teacher, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/api/attendance/"+rec, teacher, nil).StatusCode)

	dropped := c.do(http.MethodPost, "/api/courses/"+course.ID+"/unenroll", student, nil)
	assert.Equal(t, http.StatusOK, dropped.StatusCode)
	back := c.do(http.MethodPost, "/api/courses/"+course.ID+"/enroll", student, nil)
	assert.Equal(t, http.StatusOK, back.StatusCode)
	assert.Equal(t, "Re-enrolled in course", back.Message)

	assert.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/api/courses/"+course.ID, teacher, nil).StatusCode)
	detail := c.do(http.MethodGet, "/api/courses/"+course.ID, student, nil)
	assert.True(t, strings.Contains(string(detail.Data), `"is_active":false`))
}

func TestCORS(t *testing.T) {
	c := newClient(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://anywhere.test")
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"), "wildcard origins never allow credentials")

	db := storetest.Open(t)
	r := handler.NewRouter(handler.Deps{
		DB:          db,
		Issuer:      auth.Issuer{Name: "test", Key: []byte("test-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour},
		CORSOrigins: []string{"https://app.test"},
	})
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://app.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
