package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studenttracker/internal/auth"
	"studenttracker/internal/response"
	"studenttracker/internal/users"
)

func (h *Handler) register(c *gin.Context) {
	var in users.RegisterInput
	if !bind(c, &in) {
		return
	}
	sess, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, "User registered successfully", sess)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var in loginRequest
	if !bind(c, &in) {
		return
	}
	sess, err := h.users.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Login successful", sess)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refresh accepts the refresh token as a bearer token or in the body.
func (h *Handler) refresh(c *gin.Context) {
	token, ok := auth.BearerToken(c)
	if !ok {
		var in refreshRequest
		if c.Request.ContentLength != 0 {
			if !bind(c, &in) {
				return
			}
		}
		token = in.RefreshToken
	}
	if token == "" {
		response.Abort(c, http.StatusUnauthorized, "Refresh token is missing")
		return
	}
	pair, err := h.users.Refresh(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Token refreshed", pair)
}

func (h *Handler) logout(c *gin.Context) {
	var in refreshRequest
	if c.Request.ContentLength != 0 {
		if !bind(c, &in) {
			return
		}
	}
	claims, _ := auth.ClaimsFrom(c)
	if err := h.users.Logout(c.Request.Context(), claims, in.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Logged out", nil)
}

func (h *Handler) me(c *gin.Context) {
	p, err := h.users.Profile(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Current user", p)
}
