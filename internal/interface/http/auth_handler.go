package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/internal/application"
	"github.com/natours/natours-api/internal/interface/middleware"
	"github.com/natours/natours-api/pkg/helpers"
	"github.com/natours/natours-api/pkg/response"
)

type AuthHandler struct {
	Sessions *application.SessionService
	Cookies  *helpers.SessionCookies
	Logger   *logrus.Logger
	// ResetURL is the base of mailed reset links. Empty derives it from the
	// request host.
	ResetURL string
}

func NewAuthHandler(sessions *application.SessionService, cookies *helpers.SessionCookies, logger *logrus.Logger, resetURL string) *AuthHandler {
	return &AuthHandler{Sessions: sessions, Cookies: cookies, Logger: logger, ResetURL: resetURL}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type sessionData struct {
	Token string      `json:"token"`
	User  accountView `json:"user"`
}

// sendSession sets the session cookie and returns the token in the body.
func (h *AuthHandler) sendSession(c *gin.Context, status int, s *application.Session, message string) {
	h.Cookies.Set(c, s.Token, s.TTL)
	response.JSON(c, status, sessionData{Token: s.Token, User: viewOf(s.Account)}, message,
		gin.H{"expires_at": s.ExpiresAt})
}

// Signup POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Sessions.Signup(c.Request.Context(), application.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	h.sendSession(c, http.StatusCreated, s, "account created")
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	h.sendSession(c, http.StatusOK, s, "login successful")
}

// Logout GET /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Cookies.Write(c, h.Sessions.Logout())
	response.JSON[any](c, http.StatusOK, nil, "logged out", nil)
}

// ForgotPassword POST /api/v1/auth/forgotPassword
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Sessions.ForgotPassword(c.Request.Context(), req.Email, h.resetBase(c)); err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON[any](c, http.StatusOK, nil, "token sent to email", nil)
}

// ResetPassword PATCH /api/v1/auth/resetPassword/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Sessions.ResetPassword(c.Request.Context(), application.ResetPasswordInput{
		Token:           c.Param("token"),
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	h.sendSession(c, http.StatusOK, s, "password reset")
}

// UpdatePassword PATCH /api/v1/auth/updateMyPassword (auth required)
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	a, ok := mustAccount(c)
	if !ok {
		return
	}
	var req updatePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Sessions.UpdatePassword(c.Request.Context(), a.ID, application.UpdatePasswordInput{
		PasswordCurrent: req.PasswordCurrent,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	h.sendSession(c, http.StatusOK, s, "password updated")
}

func (h *AuthHandler) resetBase(c *gin.Context) string {
	if h.ResetURL != "" {
		return h.ResetURL
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/api/v1/auth/resetPassword"
}
