package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studenttracker/internal/apperr"
	"studenttracker/internal/models"
)

func testIssuer() Issuer {
	return Issuer{Name: "test", Key: []byte("secret"), AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}
}

func TestIssueAndParse(t *testing.T) {
	iss := testIssuer()
	pair, err := iss.Issue("user-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := iss.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)

	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "user-1", Role: models.RoleTeacher}, p)

	refresh, err := iss.Parse(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, refresh.Type)
	assert.NotEqual(t, claims.ID, refresh.ID)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	pair, err := testIssuer().Issue("user-1", models.RoleAdmin)
	require.NoError(t, err)

	other := testIssuer()
	other.Key = []byte("different")
	_, err = other.Parse(pair.AccessToken)
	assert.Error(t, err)

	other = testIssuer()
	other.Name = "someone-else"
	_, err = other.Parse(pair.AccessToken)
	assert.Error(t, err)

	expired := testIssuer()
	expired.AccessTTL = -time.Minute
	pair, err = expired.Issue("user-1", models.RoleAdmin)
	require.NoError(t, err)
	_, err = testIssuer().Parse(pair.AccessToken)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "password123"))
	assert.False(t, VerifyPassword(hash, "password124"))
	assert.False(t, VerifyPassword("not-a-hash", "password123"))
}

func TestAuthorizeTable(t *testing.T) {
	admin := Principal{UserID: "a", Role: models.RoleAdmin}
	teacher := Principal{UserID: "t", Role: models.RoleTeacher}
	student := Principal{UserID: "s", Role: models.RoleStudent}

	cases := []struct {
		name   string
		p      Principal
		action Action
		owns   bool
		allow  bool
	}{
		{"teacher owner marks", teacher, ActionMarkAttendance, true, true},
		{"teacher non-owner marks", teacher, ActionMarkAttendance, false, false},
		{"admin marks", admin, ActionMarkAttendance, true, false},
		{"student marks", student, ActionMarkAttendance, true, false},

		{"teacher owner views course", teacher, ActionViewCourseAttendance, true, true},
		{"teacher non-owner views course", teacher, ActionViewCourseAttendance, false, false},
		{"admin views course", admin, ActionViewCourseAttendance, false, false},

		{"admin views student", admin, ActionViewStudentAttendance, false, true},
		{"teacher views any student", teacher, ActionViewStudentAttendance, false, true},
		{"student views self", student, ActionViewStudentAttendance, true, true},
		{"student views other", student, ActionViewStudentAttendance, false, false},

		{"admin manages course", admin, ActionManageCourse, false, true},
		{"teacher owner manages course", teacher, ActionManageCourse, true, true},
		{"teacher non-owner manages course", teacher, ActionManageCourse, false, false},
		{"student manages course", student, ActionManageCourse, true, false},

		{"student enrolls self", student, ActionEnroll, true, true},
		{"teacher enrolls", teacher, ActionEnroll, true, false},
		{"admin enrolls", admin, ActionEnroll, true, false},

		{"admin console", admin, ActionManageUsers, false, true},
		{"teacher console", teacher, ActionManageUsers, true, false},
		{"student console", student, ActionManageUsers, true, false},

		{"unknown role", Principal{UserID: "x"}, ActionViewStudentAttendance, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.p, tc.action, tc.owns)
			if tc.allow {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindForbidden))
		})
	}
}

type memDenylist map[string]bool

func (m memDenylist) Revoke(_ context.Context, id string, _ time.Time) error {
	m[id] = true
	return nil
}

func (m memDenylist) Revoked(_ context.Context, id string) (bool, error) { return m[id], nil }

func TestAuthenticateMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := testIssuer()
	deny := memDenylist{}

	r := gin.New()
	r.GET("/me", Authenticate(iss, deny), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, p.UserID+":"+p.Role.String())
	})
	r.GET("/admin", Authenticate(iss, deny), Require(ActionManageUsers), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "garbage").Code)

	pair, err := iss.Issue("stu-1", models.RoleStudent)
	require.NoError(t, err)

	w := do("/me", pair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1:student", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do("/me", pair.RefreshToken).Code, "refresh tokens are not access tokens")
	assert.Equal(t, http.StatusForbidden, do("/admin", pair.AccessToken).Code)

	claims, err := iss.Parse(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, deny.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))
	assert.Equal(t, http.StatusUnauthorized, do("/me", pair.AccessToken).Code)
}
