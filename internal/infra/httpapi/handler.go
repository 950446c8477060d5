package httpapi

import (
	"errors"
	"net/http"

	"notification_dispatcher/internal/app"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// NotificationHandler exposes the enqueue, dispatch and contact entry
// points over HTTP.
type NotificationHandler struct {
	enqueue  *app.EnqueueService
	dispatch *app.DispatchService
	contacts *app.ContextService
	log      *logrus.Logger
}

func NewNotificationHandler(
	enqueue *app.EnqueueService,
	dispatch *app.DispatchService,
	contacts *app.ContextService,
	log *logrus.Logger,
) *NotificationHandler {
	return &NotificationHandler{enqueue: enqueue, dispatch: dispatch, contacts: contacts, log: log}
}

// Register mounts the notification routes.
func (h *NotificationHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	api := e.Group("/api/notifications")
	api.POST("/enqueue", h.Enqueue)
	api.POST("/dispatch", h.Dispatch)
	api.GET("/contact/:userID", h.Contact)
}

func (h *NotificationHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Enqueue maps EnqueueService results onto status codes:
// 200 success, 400 invalid payload, 409 duplicate idempotency key,
// 500 anything else.
func (h *NotificationHandler) Enqueue(c echo.Context) error {
	var input app.EnqueueInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Invalid payload",
			"details": err.Error(),
		})
	}

	result, err := h.enqueue.Enqueue(c.Request().Context(), input)
	if err != nil {
		var validationErr *app.ValidationError
		if errors.As(err, &validationErr) {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error": "Invalid payload",
				"details": map[string]string{
					validationErr.Field: validationErr.Message,
				},
			})
		}
		h.log.WithError(err).Error("enqueue failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}

	if result.OK {
		return c.JSON(http.StatusOK, map[string]any{"id": result.ID})
	}
	if result.Reason == app.ReasonDuplicate {
		body := map[string]any{"error": result.Message}
		if result.ID != "" {
			body["id"] = result.ID
		}
		return c.JSON(http.StatusConflict, body)
	}
	return c.JSON(http.StatusInternalServerError, map[string]any{"error": result.Message})
}

// Dispatch runs one batch dispatch cycle. Only a failed batch fetch
// surfaces as a 500; per-row outcomes live in the summary.
func (h *NotificationHandler) Dispatch(c echo.Context) error {
	summary, err := h.dispatch.Run(c.Request().Context())
	if err != nil {
		h.log.WithError(err).Error("dispatch cycle failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "summary": summary})
}

type contactResponse struct {
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	FullName *string `json:"fullName"`
	Timezone *string `json:"timezone"`
}

func (h *NotificationHandler) Contact(c echo.Context) error {
	contact, err := h.contacts.GetNotificationContact(c.Request().Context(), c.Param("userID"))
	if err != nil {
		h.log.WithError(err).Error("contact lookup failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, contactResponse{
		Email:    nullable(contact.Email),
		Phone:    nullable(contact.Phone),
		FullName: nullable(contact.FullName),
		Timezone: nullable(contact.Timezone),
	})
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
