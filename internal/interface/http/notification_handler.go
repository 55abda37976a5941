package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/internal/application"
	"github.com/natours/natours-api/internal/interface/middleware"
	"github.com/natours/natours-api/pkg/response"
)

type NotificationHandler struct {
	Svc    *application.NotificationService
	Logger *logrus.Logger
}

func NewNotificationHandler(svc *application.NotificationService, logger *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{Svc: svc, Logger: logger}
}

type sendNotificationRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject" binding:"required,max=200"`
	Text    string `json:"text" binding:"required"`
}

// Send POST /api/v1/notifications/send (admin)
func (h *NotificationHandler) Send(c *gin.Context) {
	var req sendNotificationRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Svc.Send(c.Request.Context(), req.To, req.Subject, req.Text); err != nil {
		middleware.Abort(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"accepted": true}, "notification accepted", nil)
}
