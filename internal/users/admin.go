package users

import (
	"context"
	"database/sql"

	"studenttracker/internal/apperr"
	"studenttracker/internal/auth"
	"studenttracker/internal/models"
	"studenttracker/internal/store"
)

// UserUpdate holds the fields an admin may change on a user. Nil fields are
// left alone.
type UserUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsActive  *bool   `json:"is_active"`
	Password  *string `json:"password" binding:"omitempty,min=6"`
}

type StudentUpdate struct {
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	IsActive *bool   `json:"is_active"`
}

type TeacherUpdate struct {
	Specialization *string `json:"specialization"`
	Phone          *string `json:"phone"`
	OfficeNumber   *string `json:"office_number"`
	IsActive       *bool   `json:"is_active"`
}

// ListUsers pages through users. role may be empty; any other unknown value
// is rejected.
func (s *Service) ListUsers(ctx context.Context, role string, page store.PageRequest) ([]models.User, int, error) {
	var r models.Role
	if role != "" {
		var err error
		if r, err = models.ParseRole(role); err != nil {
			return nil, 0, apperr.Invalid("Invalid role filter")
		}
	}
	return NewRepository(s.db).ListUsers(ctx, r, page)
}

func (s *Service) GetUser(ctx context.Context, id string) (Profile, error) {
	return s.Profile(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id string, in UserUpdate) (models.User, error) {
	var out models.User
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		u, err := repo.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("User not found")
		}
		if in.FirstName != nil {
			u.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			u.LastName = *in.LastName
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
		}
		if in.Password != nil {
			if len(*in.Password) < 6 {
				return apperr.Invalid("field password must be at least 6")
			}
			if u.PasswordHash, err = auth.HashPassword(*in.Password); err != nil {
				return err
			}
		}
		u.UpdatedAt = s.now()
		out = *u
		return repo.UpdateUser(ctx, *u)
	})
	return out, err
}

func (s *Service) DeactivateUser(ctx context.Context, id string) error {
	ok, err := NewRepository(s.db).DeactivateUser(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (s *Service) ListStudents(ctx context.Context, page store.PageRequest) ([]models.Student, int, error) {
	return NewRepository(s.db).ListStudents(ctx, page)
}

func (s *Service) GetStudent(ctx context.Context, id string) (models.Student, error) {
	st, err := NewRepository(s.db).GetStudent(ctx, id)
	if err != nil {
		return models.Student{}, err
	}
	if st == nil {
		return models.Student{}, apperr.NotFound("Student not found")
	}
	return *st, nil
}

func (s *Service) UpdateStudent(ctx context.Context, id string, in StudentUpdate) (models.Student, error) {
	var out models.Student
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		st, err := repo.GetStudent(ctx, id)
		if err != nil {
			return err
		}
		if st == nil {
			return apperr.NotFound("Student not found")
		}
		if in.Phone != nil {
			st.Phone = *in.Phone
		}
		if in.Address != nil {
			st.Address = *in.Address
		}
		if in.IsActive != nil {
			st.IsActive = *in.IsActive
		}
		st.UpdatedAt = s.now()
		out = *st
		return repo.UpdateStudent(ctx, *st)
	})
	return out, err
}

func (s *Service) DeactivateStudent(ctx context.Context, id string) error {
	ok, err := NewRepository(s.db).DeactivateStudent(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("Student not found")
	}
	return nil
}

func (s *Service) ListTeachers(ctx context.Context, page store.PageRequest) ([]models.Teacher, int, error) {
	return NewRepository(s.db).ListTeachers(ctx, page)
}

func (s *Service) GetTeacher(ctx context.Context, id string) (models.Teacher, error) {
	t, err := NewRepository(s.db).GetTeacher(ctx, id)
	if err != nil {
		return models.Teacher{}, err
	}
	if t == nil {
		return models.Teacher{}, apperr.NotFound("Teacher not found")
	}
	return *t, nil
}

func (s *Service) UpdateTeacher(ctx context.Context, id string, in TeacherUpdate) (models.Teacher, error) {
	var out models.Teacher
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		t, err := repo.GetTeacher(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return apperr.NotFound("Teacher not found")
		}
		if in.Specialization != nil {
			t.Specialization = *in.Specialization
		}
		if in.Phone != nil {
			t.Phone = *in.Phone
		}
		if in.OfficeNumber != nil {
			t.OfficeNumber = *in.OfficeNumber
		}
		if in.IsActive != nil {
			t.IsActive = *in.IsActive
		}
		t.UpdatedAt = s.now()
		out = *t
		return repo.UpdateTeacher(ctx, *t)
	})
	return out, err
}

func (s *Service) DeactivateTeacher(ctx context.Context, id string) error {
	ok, err := NewRepository(s.db).DeactivateTeacher(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("Teacher not found")
	}
	return nil
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	return NewRepository(s.db).Dashboard(ctx)
}
