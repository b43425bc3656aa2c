package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-api/internal/domain"
	"user-api/internal/realtime"
	"user-api/internal/service"
	"user-api/internal/storage"
)

const userRoute = "/api/user"

// EventArchive lists archived events. It is optional.
type EventArchive interface {
	List(ctx context.Context, eventName string) ([]storage.ObjectInfo, error)
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users         service.UserService
	hub           *realtime.Hub
	archive       EventArchive
	allowedOrigin string
	log           logrus.FieldLogger
}

func NewHandler(users service.UserService, hub *realtime.Hub, archive EventArchive, allowedOrigin string, log logrus.FieldLogger) *Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &Handler{
		users:         users,
		hub:           hub,
		archive:       archive,
		allowedOrigin: allowedOrigin,
		log:           log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.log), corsMiddleware(h.allowedOrigin))

	api := router.Group("/api")
	{
		api.GET("/user", h.listUsers)
		api.POST("/user", h.createUser)
		api.GET("/user/:id", h.getUser)
		api.PATCH("/user/:id", h.patchUser)
		api.DELETE("/user/:id", h.deleteUser)
		api.GET("/events", h.listArchivedEvents)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok", "subscribers": h.hub.Count()})
		})
	}

	router.GET("/hubs/user", gin.WrapF(h.hub.ServeWS(h.checkOrigin)))
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

// patchUserRequest uses nil for "not provided"; JSON null and an absent key
// both decode to nil.
type patchUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		if allowedOrigin != "*" {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
		}).Info("http")
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == h.allowedOrigin
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), domain.User{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Location", userRoute+"?"+url.Values{"id": {user.ID.String()}}.Encode())
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) patchUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// an empty body is an empty patch, so a missing id still reports 404
	var req patchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.PatchUser(c.Request.Context(), id, domain.UserPatch{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.users.DeleteUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) listArchivedEvents(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event archive not configured"})
		return
	}

	objects, err := h.archive.List(c.Request.Context(), c.Query("event"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps NotFound to 404 and everything else to 500.
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
