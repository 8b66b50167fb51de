// Package handlers holds the framework-neutral HTTP handlers for the user API.
// Each router in server/ adapts its native context to Context.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/middleware"
	"github.com/aloks98/gousers/store"
)

// Context is the slice of a router context the handlers need.
type Context interface {
	// Context returns the request context.
	Context() context.Context

	// Param returns a path parameter.
	Param(name string) string

	// Body returns the raw request body.
	Body() ([]byte, error)

	JSON(status int, v any) error
	HTML(status int, html string) error
	NoContent(status int) error
}

// UserService is implemented by *gousers.Users.
type UserService interface {
	Create(ctx context.Context, in gousers.UserInput) (*store.User, error)
	Get(ctx context.Context, id int64) (*store.User, error)
	Update(ctx context.Context, id int64, in gousers.UserInput) (*store.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*store.User, error)
	Ping(ctx context.Context) error
}

// Handler serves the user routes.
type Handler struct {
	users  UserService
	logger gousers.Logger
	index  string
}

// New creates a Handler backed by users.
func New(users UserService, logger gousers.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		users:  users,
		logger: logger,
		index:  renderIndex(),
	}
}

// Index serves the API documentation page.
func (h *Handler) Index(c Context) error {
	return c.HTML(http.StatusOK, h.index)
}

// Health reports whether the store answers.
func (h *Handler) Health(c Context) error {
	if err := h.users.Ping(c.Context()); err != nil {
		h.logger.Printf("[server] request %s: health check failed: %v", requestID(c), err)
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: gousers.MessageUnavailable})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListUsers returns all users in creation order.
func (h *Handler) ListUsers(c Context) error {
	users, err := h.users.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser stores a user from the request body.
func (h *Handler) CreateUser(c Context) error {
	in, err := readInput(c)
	if err != nil {
		return h.fail(c, err)
	}

	u, err := h.users.Create(c.Context(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// GetUser returns the user named by the id path parameter.
func (h *Handler) GetUser(c Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}

	u, err := h.users.Get(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateUser replaces name and email. The body is only read once the
// user is known to exist.
func (h *Handler) UpdateUser(c Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if _, err := h.users.Get(c.Context(), id); err != nil {
		return h.fail(c, err)
	}

	in, err := readInput(c)
	if err != nil {
		return h.fail(c, err)
	}

	u, err := h.users.Update(c.Context(), id, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// DeleteUser removes the user named by the id path parameter.
func (h *Handler) DeleteUser(c Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.users.Delete(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

// fail writes err as a JSON error response. Server-side failures are logged.
func (h *Handler) fail(c Context, err error) error {
	status := middleware.ErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("[server] request %s: %v", requestID(c), err)
	}
	return c.JSON(status, errorBody{Error: middleware.ErrorMessage(err)})
}

// parseID reads the id path parameter. Anything that is not a base-10
// int64 cannot name a stored user.
func parseID(c Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, gousers.NewError(gousers.CodeUserNotFound, "no user with id "+strconv.Quote(raw), gousers.ErrUserNotFound)
	}
	return id, nil
}

// readInput decodes the request body. An empty body counts as {}.
func readInput(c Context) (gousers.UserInput, error) {
	var in gousers.UserInput

	body, err := c.Body()
	if err != nil {
		return in, gousers.NewError(gousers.CodeInvalidBody, gousers.MessageInvalidBody, gousers.ErrInvalidBody)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return gousers.UserInput{}, &gousers.Error{
			Code:    gousers.CodeInvalidBody,
			Message: gousers.MessageInvalidBody,
			Err:     fmt.Errorf("%w: %w", gousers.ErrInvalidBody, err),
		}
	}
	return in, nil
}

func requestID(c Context) string {
	return middleware.GetRequestID(c.Context())
}
