package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/internal/application"
	"github.com/natours/natours-api/internal/interface/middleware"
	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/query"
	"github.com/natours/natours-api/pkg/response"
)

const (
	maxPhotoBytes = 5 << 20
	// includeInactiveParam is consumed by the list handler and never reaches
	// the query parser.
	includeInactiveParam = "includeInactive"
)

type AccountHandler struct {
	Svc    *application.AccountService
	Logger *logrus.Logger
}

func NewAccountHandler(svc *application.AccountService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger}
}

type updateMeRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

type adminUpdateRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

// GetMe GET /api/v1/users/me
func (h *AccountHandler) GetMe(c *gin.Context) {
	me, ok := mustAccount(c)
	if !ok {
		return
	}
	a, err := h.Svc.GetMe(c.Request.Context(), me.ID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusOK, viewOf(a), "profile", nil)
}

// UpdateMe PATCH /api/v1/users/updateMe
func (h *AccountHandler) UpdateMe(c *gin.Context) {
	me, ok := mustAccount(c)
	if !ok {
		return
	}
	var req updateMeRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Svc.UpdateMe(c.Request.Context(), me.ID, application.ProfileInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusOK, viewOf(a), "profile updated", nil)
}

// DeleteMe DELETE /api/v1/users/deleteMe
func (h *AccountHandler) DeleteMe(c *gin.Context) {
	me, ok := mustAccount(c)
	if !ok {
		return
	}
	if err := h.Svc.DeleteMe(c.Request.Context(), me.ID); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadPhoto POST /api/v1/users/me/photo (multipart field "photo")
func (h *AccountHandler) UploadPhoto(c *gin.Context) {
	me, ok := mustAccount(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)
	fh, err := c.FormFile("photo")
	if err != nil {
		middleware.Abort(c, apperror.Validation(map[string]string{"photo": "is required"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		middleware.Abort(c, apperror.Internal(err))
		return
	}
	defer func() { _ = f.Close() }()

	a, err := h.Svc.UploadPhoto(c.Request.Context(), me.ID, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusOK, viewOf(a), "photo updated", nil)
}

// List GET /api/v1/users (admin). Query parameters follow the list grammar:
// field=value, field[op]=value, sort, fields, page, limit.
func (h *AccountHandler) List(c *gin.Context) {
	values := c.Request.URL.Query()
	includeInactive, _ := strconv.ParseBool(values.Get(includeInactiveParam))
	values.Del(includeInactiveParam)

	spec := query.Parse(values)
	res, err := h.Svc.List(c.Request.Context(), spec, includeInactive)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res.Records, "accounts", response.ListMeta{
		Page:    spec.Page(),
		Limit:   spec.Limit(),
		Results: res.Count,
		Total:   res.Total,
	})
}

// Search GET /api/v1/users/search?q=&size= (admin)
func (h *AccountHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	out, err := h.Svc.SearchAccounts(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusOK, viewsOf(out), "search results", gin.H{"results": len(out)})
}

// Get GET /api/v1/users/:id (admin)
func (h *AccountHandler) Get(c *gin.Context) {
	a, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusOK, viewOf(a), "account", nil)
}

// Update PATCH /api/v1/users/:id (admin)
func (h *AccountHandler) Update(c *gin.Context) {
	var req adminUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Svc.Update(c.Request.Context(), c.Param("id"), application.AdminUpdateInput{
		Name:   req.Name,
		Email:  req.Email,
		Role:   req.Role,
		Active: req.Active,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusOK, viewOf(a), "account updated", nil)
}

// Delete DELETE /api/v1/users/:id (admin)
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
