package users

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"studenttracker/internal/apperr"
	"studenttracker/internal/auth"
	"studenttracker/internal/models"
	"studenttracker/internal/store"
	"studenttracker/internal/validate"
)

// Service handles registration, login and the admin console.
type Service struct {
	db       *sql.DB
	issuer   auth.Issuer
	denylist auth.Denylist
	now      func() time.Time
}

// NewService creates a service. denylist may be nil.
func NewService(db *sql.DB, issuer auth.Issuer, denylist auth.Denylist) *Service {
	return &Service{db: db, issuer: issuer, denylist: denylist, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6"`
	FirstName      string `json:"first_name" binding:"required"`
	LastName       string `json:"last_name" binding:"required"`
	Role           string `json:"role" binding:"required"`
	RollNumber     string `json:"roll_number"`
	EmployeeID     string `json:"employee_id"`
	Specialization string `json:"specialization"`
}

// Profile is a user with its role-specific profile.
type Profile struct {
	models.User
	Student *models.Student `json:"student,omitempty"`
	Teacher *models.Teacher `json:"teacher,omitempty"`
}

// Session is returned by register and login.
type Session struct {
	User   models.User    `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Register creates a user and its student or teacher profile in one
// transaction and signs the first token pair.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validate.Struct(in); err != nil {
		return Session{}, err
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return Session{}, apperr.Invalid("Invalid role")
	}
	switch role {
	case models.RoleStudent:
		if strings.TrimSpace(in.RollNumber) == "" {
			return Session{}, apperr.Invalid("Roll number required for student")
		}
	case models.RoleTeacher:
		if strings.TrimSpace(in.EmployeeID) == "" {
			return Session{}, apperr.Invalid("Employee ID required for teacher")
		}
	case models.RoleAdmin:
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		existing, err := repo.UserByEmail(ctx, user.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("Email already registered")
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			return conflictOr(err, "Email already registered")
		}
		switch role {
		case models.RoleStudent:
			err := repo.CreateStudent(ctx, models.Student{
				ID: uuid.NewString(), UserID: user.ID, RollNumber: strings.TrimSpace(in.RollNumber),
				EnrollmentDate: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
			})
			return conflictOr(err, "Roll number already exists")
		case models.RoleTeacher:
			err := repo.CreateTeacher(ctx, models.Teacher{
				ID: uuid.NewString(), UserID: user.ID, EmployeeID: strings.TrimSpace(in.EmployeeID),
				Specialization: in.Specialization, JoiningDate: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
			})
			return conflictOr(err, "Employee ID already exists")
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	tokens, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, err
	}
	slog.InfoContext(ctx, "user registered", slog.String("user_id", user.ID), slog.String("role", role.String()))
	return Session{User: user, Tokens: tokens}, nil
}

func conflictOr(err error, msg string) error {
	if err != nil && store.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, msg, err)
	}
	return err
}

// Login verifies credentials and signs a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, apperr.Invalid("Email and password required")
	}
	user, err := NewRepository(s.db).UserByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if user == nil || !auth.VerifyPassword(user.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return Session{}, apperr.Forbidden("User account is inactive")
	}
	tokens, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{User: *user, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair. The used refresh token is
// revoked when a denylist is configured.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.issuer.Parse(refreshToken)
	if err != nil || claims.Type != auth.TypeRefresh {
		return auth.TokenPair{}, apperr.Unauthorized("Invalid refresh token")
	}
	if s.denylist != nil {
		revoked, err := s.denylist.Revoked(ctx, claims.ID)
		if err != nil {
			return auth.TokenPair{}, err
		}
		if revoked {
			return auth.TokenPair{}, apperr.Unauthorized("Token has been revoked")
		}
	}
	user, err := NewRepository(s.db).GetUser(ctx, claims.Subject)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if user == nil {
		return auth.TokenPair{}, apperr.NotFound("User not found")
	}
	if !user.IsActive {
		return auth.TokenPair{}, apperr.Forbidden("User account is inactive")
	}
	if s.denylist != nil {
		if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return auth.TokenPair{}, err
		}
	}
	return s.issuer.Issue(user.ID, user.Role)
}

// Logout revokes the presented access token and, when given, a refresh token.
func (s *Service) Logout(ctx context.Context, access auth.Claims, refreshToken string) error {
	if s.denylist == nil {
		return nil
	}
	if err := s.denylist.Revoke(ctx, access.ID, access.ExpiresAt.Time); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.issuer.Parse(refreshToken)
	if err != nil || claims.Subject != access.Subject {
		return apperr.Invalid("Invalid refresh token")
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Profile returns a user with its student or teacher profile.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	repo := NewRepository(s.db)
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if user == nil {
		return Profile{}, apperr.NotFound("User not found")
	}
	p := Profile{User: *user}
	switch user.Role {
	case models.RoleStudent:
		p.Student, err = repo.StudentByUserID(ctx, userID)
	case models.RoleTeacher:
		p.Teacher, err = repo.TeacherByUserID(ctx, userID)
	case models.RoleAdmin:
	}
	return p, err
}
