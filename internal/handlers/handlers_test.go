package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/store"
	"github.com/aloks98/gousers/store/memory"
)

// fakeContext records what a handler writes.
type fakeContext struct {
	ctx     context.Context
	params  map[string]string
	body    string
	bodyErr error
	read    bool

	status int
	value  any
	html   string
}

func newFakeContext(params map[string]string, body string) *fakeContext {
	return &fakeContext{ctx: context.Background(), params: params, body: body}
}

func (f *fakeContext) Context() context.Context { return f.ctx }

func (f *fakeContext) Param(name string) string { return f.params[name] }

func (f *fakeContext) Body() ([]byte, error) {
	f.read = true
	if f.bodyErr != nil {
		return nil, f.bodyErr
	}
	return []byte(f.body), nil
}

func (f *fakeContext) JSON(status int, v any) error {
	f.status = status
	f.value = v
	return nil
}

func (f *fakeContext) HTML(status int, html string) error {
	f.status = status
	f.html = html
	return nil
}

func (f *fakeContext) NoContent(status int) error {
	f.status = status
	return nil
}

func (f *fakeContext) errorMessage(t *testing.T) string {
	t.Helper()
	b, ok := f.value.(errorBody)
	if !ok {
		t.Fatalf("response value is %T, want errorBody", f.value)
	}
	return b.Error
}

func (f *fakeContext) user(t *testing.T) *store.User {
	t.Helper()
	u, ok := f.value.(*store.User)
	if !ok {
		t.Fatalf("response value is %T, want *store.User", f.value)
	}
	return u
}

func setupHandler(t *testing.T) *Handler {
	t.Helper()
	users, err := gousers.New(gousers.WithStore(memory.New()))
	if err != nil {
		t.Fatalf("gousers.New() error = %v", err)
	}
	t.Cleanup(func() { users.Close() })
	return New(users, nil)
}

func seed(t *testing.T, h *Handler, name, email string) *store.User {
	t.Helper()
	c := newFakeContext(nil, fmt.Sprintf(`{"name":%q,"email":%q}`, name, email))
	if err := h.CreateUser(c); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if c.status != http.StatusCreated {
		t.Fatalf("CreateUser() status = %d, want 201", c.status)
	}
	return c.user(t)
}

func TestIndex(t *testing.T) {
	h := setupHandler(t)
	c := newFakeContext(nil, "")

	if err := h.Index(c); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if c.status != http.StatusOK {
		t.Errorf("status = %d, want 200", c.status)
	}
	for _, want := range []string{"<html", "/users/:id", "DELETE", "User not found."} {
		if !strings.Contains(c.html, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"valid", `{"name":"John Doe","email":"john@example.com"}`, http.StatusCreated, ""},
		{"extra fields ignored", `{"name":"a","email":"b","id":99,"role":"x"}`, http.StatusCreated, ""},
		{"missing email", `{"name":"John Doe"}`, http.StatusBadRequest, gousers.MessageValidation},
		{"missing name", `{"email":"john@example.com"}`, http.StatusBadRequest, gousers.MessageValidation},
		{"empty strings", `{"name":"","email":""}`, http.StatusBadRequest, gousers.MessageValidation},
		{"empty body", ``, http.StatusBadRequest, gousers.MessageValidation},
		{"null body", `null`, http.StatusBadRequest, gousers.MessageValidation},
		{"array body", `[1,2]`, http.StatusBadRequest, gousers.MessageInvalidBody},
		{"malformed JSON", `{"name":`, http.StatusBadRequest, gousers.MessageInvalidBody},
		{"wrong field type", `{"name":1,"email":"x"}`, http.StatusBadRequest, gousers.MessageInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupHandler(t)
			c := newFakeContext(nil, tt.body)

			if err := h.CreateUser(c); err != nil {
				t.Fatalf("CreateUser() error = %v", err)
			}
			if c.status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", c.status, tt.wantStatus)
			}
			if tt.wantError != "" {
				if got := c.errorMessage(t); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
				return
			}
			if u := c.user(t); u.ID != 1 {
				t.Errorf("ID = %d, want 1", u.ID)
			}
		})
	}
}

func TestCreateUser_BodyReadError(t *testing.T) {
	h := setupHandler(t)
	c := newFakeContext(nil, "")
	c.bodyErr = errors.New("connection reset")

	h.CreateUser(c)

	if c.status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", c.status)
	}
	if got := c.errorMessage(t); got != gousers.MessageInvalidBody {
		t.Errorf("error = %q", got)
	}
}

func TestGetUser(t *testing.T) {
	h := setupHandler(t)
	seed(t, h, "John Doe", "john@example.com")

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"existing", "1", http.StatusOK},
		{"missing", "2", http.StatusNotFound},
		{"not a number", "abc", http.StatusNotFound},
		{"float", "1.0", http.StatusNotFound},
		{"negative", "-1", http.StatusNotFound},
		{"overflow", "99999999999999999999", http.StatusNotFound},
		{"empty", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeContext(map[string]string{"id": tt.id}, "")
			if err := h.GetUser(c); err != nil {
				t.Fatalf("GetUser() error = %v", err)
			}
			if c.status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", c.status, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNotFound {
				if got := c.errorMessage(t); got != gousers.MessageUserNotFound {
					t.Errorf("error = %q, want %q", got, gousers.MessageUserNotFound)
				}
				return
			}
			if u := c.user(t); u.Name != "John Doe" {
				t.Errorf("Name = %q", u.Name)
			}
		})
	}
}

func TestUpdateUser(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
		wantRead   bool
	}{
		{"valid", "1", `{"name":"John Smith","email":"js@example.com"}`, http.StatusOK, true},
		{"missing fields", "1", `{"name":"John Smith"}`, http.StatusBadRequest, true},
		{"malformed body", "1", `{`, http.StatusBadRequest, true},
		{"missing user", "42", `{"name":"a","email":"b"}`, http.StatusNotFound, false},
		{"missing user and invalid body", "42", `{`, http.StatusNotFound, false},
		{"bad id", "x", `{"name":"a","email":"b"}`, http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupHandler(t)
			seed(t, h, "John Doe", "john@example.com")

			c := newFakeContext(map[string]string{"id": tt.id}, tt.body)
			if err := h.UpdateUser(c); err != nil {
				t.Fatalf("UpdateUser() error = %v", err)
			}
			if c.status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", c.status, tt.wantStatus)
			}
			if c.read != tt.wantRead {
				t.Errorf("body read = %v, want %v", c.read, tt.wantRead)
			}
			if tt.wantStatus == http.StatusOK {
				u := c.user(t)
				if u.ID != 1 || u.Name != "John Smith" || u.Email != "js@example.com" {
					t.Errorf("updated user = %+v", u)
				}
			}
		})
	}
}

func TestDeleteUser(t *testing.T) {
	h := setupHandler(t)
	seed(t, h, "John Doe", "john@example.com")

	c := newFakeContext(map[string]string{"id": "1"}, "")
	h.DeleteUser(c)
	if c.status != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", c.status)
	}

	c = newFakeContext(map[string]string{"id": "1"}, "")
	h.DeleteUser(c)
	if c.status != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", c.status)
	}

	c = newFakeContext(map[string]string{"id": "1"}, "")
	h.GetUser(c)
	if c.status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", c.status)
	}
}

func TestListUsers(t *testing.T) {
	h := setupHandler(t)

	c := newFakeContext(nil, "")
	h.ListUsers(c)
	if c.status != http.StatusOK {
		t.Fatalf("status = %d, want 200", c.status)
	}
	b, _ := json.Marshal(c.value)
	if string(b) != "[]" {
		t.Errorf("empty list = %s, want []", b)
	}

	seed(t, h, "a", "a@example.com")
	seed(t, h, "b", "b@example.com")
	seed(t, h, "c", "c@example.com")

	c = newFakeContext(map[string]string{"id": "2"}, "")
	h.DeleteUser(c)

	c = newFakeContext(nil, "")
	h.ListUsers(c)
	users, ok := c.value.([]*store.User)
	if !ok {
		t.Fatalf("value is %T", c.value)
	}
	if len(users) != 2 || users[0].ID != 1 || users[1].ID != 3 {
		t.Errorf("List() = %v, want ids [1 3]", users)
	}
}

// failingService reports err from every call.
type failingService struct {
	err error
}

func (f failingService) Create(ctx context.Context, in gousers.UserInput) (*store.User, error) {
	return nil, f.err
}

func (f failingService) Get(ctx context.Context, id int64) (*store.User, error) {
	return nil, f.err
}

func (f failingService) Update(ctx context.Context, id int64, in gousers.UserInput) (*store.User, error) {
	return nil, f.err
}

func (f failingService) Delete(ctx context.Context, id int64) error { return f.err }

func (f failingService) List(ctx context.Context) ([]*store.User, error) { return nil, f.err }

func (f failingService) Ping(ctx context.Context) error { return f.err }

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestStoreFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "timeout",
			err:        fmt.Errorf("%w: %w", gousers.ErrStoreTimeout, context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  gousers.MessageUnavailable,
		},
		{
			name:       "unavailable",
			err:        fmt.Errorf("%w: dial tcp: refused", gousers.ErrStoreUnavailable),
			wantStatus: http.StatusInternalServerError,
			wantError:  gousers.MessageInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &captureLogger{}
			h := New(failingService{err: tt.err}, logger)

			c := newFakeContext(nil, "")
			h.ListUsers(c)

			if c.status != tt.wantStatus {
				t.Errorf("status = %d, want %d", c.status, tt.wantStatus)
			}
			if got := c.errorMessage(t); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
			if len(logger.lines) != 1 {
				t.Errorf("got %d log lines, want 1", len(logger.lines))
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := setupHandler(t)
	c := newFakeContext(nil, "")

	h.Health(c)
	if c.status != http.StatusOK {
		t.Errorf("status = %d, want 200", c.status)
	}

	h = New(failingService{err: errors.New("down")}, &captureLogger{})
	c = newFakeContext(nil, "")
	h.Health(c)
	if c.status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", c.status)
	}
}
