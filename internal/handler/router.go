// Package handler exposes the services over HTTP with gin.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studenttracker/internal/attendance"
	"studenttracker/internal/auth"
	"studenttracker/internal/courses"
	"studenttracker/internal/httpmiddleware"
	"studenttracker/internal/metrics"
	"studenttracker/internal/response"
	"studenttracker/internal/store"
	"studenttracker/internal/users"
)

// Deps are the collaborators the router wires together. Redis, Denylist and
// Limiter may be nil.
type Deps struct {
	DB          *store.DB
	Redis       *store.Redis
	Issuer      auth.Issuer
	Denylist    auth.Denylist
	Limiter     httpmiddleware.Limiter
	Metrics     *metrics.Metrics
	Location    *time.Location
	CORSOrigins []string
	StaticDir   string
}

// Handler holds the services behind the API routes.
type Handler struct {
	users      *users.Service
	courses    *courses.Service
	attendance *attendance.Service
	db         *store.DB
	redis      *store.Redis
}

// NewRouter builds the gin engine with middleware, health, metrics and every
// /api route.
func NewRouter(d Deps) *gin.Engine {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	response.UseJSONFieldNames()
	h := &Handler{
		users:      users.NewService(d.DB.Client, d.Issuer, d.Denylist),
		courses:    courses.NewService(d.DB.Client),
		attendance: attendance.NewService(d.DB.Client, d.Location, d.Metrics),
		db:         d.DB,
		redis:      d.Redis,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Metrics(d.Metrics))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	if d.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(d.Limiter, d.Metrics))
	}

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	r.GET("/healthz", h.healthz)

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		response.JSON(c, http.StatusOK, "", gin.H{"status": "healthy", "service": "StudentTracker API"})
	})

	authn := auth.Authenticate(d.Issuer, d.Denylist)

	a := api.Group("/auth")
	a.POST("/register", h.register)
	a.POST("/login", h.login)
	a.POST("/refresh", h.refresh)
	a.POST("/logout", authn, h.logout)
	a.GET("/me", authn, h.me)

	admin := api.Group("/admin", authn, auth.Require(auth.ActionManageUsers))
	admin.GET("/dashboard", h.dashboard)
	admin.GET("/users", h.listUsers)
	admin.GET("/users/:id", h.getUser)
	admin.PUT("/users/:id", h.updateUser)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.GET("/students", h.listStudents)
	admin.GET("/students/:id", h.getStudent)
	admin.PUT("/students/:id", h.updateStudent)
	admin.DELETE("/students/:id", h.deleteStudent)
	admin.GET("/teachers", h.listTeachers)
	admin.GET("/teachers/:id", h.getTeacher)
	admin.PUT("/teachers/:id", h.updateTeacher)
	admin.DELETE("/teachers/:id", h.deleteTeacher)

	cr := api.Group("/courses", authn)
	cr.GET("", h.listCourses)
	cr.POST("", h.createCourse)
	cr.GET("/:id", h.getCourse)
	cr.PUT("/:id", h.updateCourse)
	cr.DELETE("/:id", h.deleteCourse)
	cr.POST("/:id/enroll", h.enroll)
	cr.POST("/:id/unenroll", h.unenroll)

	at := api.Group("/attendance", authn)
	at.POST("", h.markAttendance)
	at.PUT("/:id", h.updateAttendance)
	at.DELETE("/:id", h.deleteAttendance)
	at.GET("/course/:id", h.courseAttendance)
	at.GET("/course/:id/today", h.courseRoster)
	at.GET("/course/:id/summary", h.courseSummary)
	at.GET("/student/:id", h.studentAttendance)
	at.GET("/student/:id/monthly", h.studentMonthly)

	if d.StaticDir != "" {
		r.StaticFile("/", d.StaticDir+"/index.html")
		r.Static("/static", d.StaticDir)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{httpmiddleware.RequestIDHeader},
		MaxAge:        24 * time.Hour,
	}
	// Credentials are only allowed for an explicit origin list.
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (h *Handler) healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.db.Healthy(ctx)
	status := http.StatusOK
	body := gin.H{"status": "ok", "db": dbHealthy}
	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// principal returns the authenticated caller. Routes using it are always
// behind Authenticate.
func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}

// page reads page and per_page query parameters. Malformed values fall back
// to the defaults.
func page(c *gin.Context, defPerPage int) store.PageRequest {
	p, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pp, _ := strconv.Atoi(c.Query("per_page"))
	return store.NewPageRequest(p, pp, defPerPage)
}

// list builds the data block of a paginated response.
func list(key string, items any, total int, p store.PageRequest) gin.H {
	meta := response.NewPage(total, p.Page, p.PerPage)
	return gin.H{
		key:        items,
		"total":    meta.Total,
		"page":     meta.Page,
		"per_page": meta.PerPage,
		"pages":    meta.Pages,
	}
}

// bind decodes the JSON body into v and writes a 400 on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		response.Error(c, response.BindError(err))
		return false
	}
	return true
}
