package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taxtooter/support-api/internal/api/middleware"
	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

func newTestContext(method, target string, body io.Reader, contentType string) (echo.Context, *httptest.ResponseRecorder, *echo.Echo) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec, e
}

func jsonContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder, *echo.Echo) {
	return newTestContext(method, target, bytes.NewBufferString(body), echo.MIMEApplicationJSON)
}

// multipartBody builds a form with the given fields and, when filename is not
// empty, a "file" part.
func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		_, _ = part.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func withActor(c echo.Context, id, role, name string) {
	c.Set(middleware.CtxUserID, id)
	c.Set(middleware.CtxRole, role)
	c.Set(middleware.CtxName, name)
}

// run executes h and renders a returned error like the server would.
func run(e *echo.Echo, c echo.Context, h echo.HandlerFunc) {
	if err := h(c); err != nil {
		e.HTTPErrorHandler(MapError(err), c)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
}

// --- service stubs ---

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput, requester *domain.Actor) (string, *domain.User, error)
	loginFn    func(ctx context.Context, email, password string) (string, *domain.User, error)
	meFn       func(ctx context.Context, userID string) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput, requester *domain.Actor) (string, *domain.User, error) {
	return s.registerFn(ctx, in, requester)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.meFn(ctx, userID)
}

type stubQueryService struct {
	createFn  func(actor domain.Actor, in ports.CreateQueryInput) (*domain.Query, error)
	getFn     func(actor domain.Actor, id string) (*domain.Query, error)
	listFn    func(actor domain.Actor, in ports.ListQueriesInput) (*ports.ListQueriesResult, error)
	assignFn  func(actor domain.Actor, id, consultantID string) (*domain.Query, error)
	respondFn func(actor domain.Actor, id string, in ports.RespondInput) (*domain.Query, error)
	resolveFn func(actor domain.Actor, id string) (*domain.Query, error)
}

func (s *stubQueryService) Create(_ context.Context, actor domain.Actor, in ports.CreateQueryInput) (*domain.Query, error) {
	return s.createFn(actor, in)
}

func (s *stubQueryService) Get(_ context.Context, actor domain.Actor, id string) (*domain.Query, error) {
	return s.getFn(actor, id)
}

func (s *stubQueryService) List(_ context.Context, actor domain.Actor, in ports.ListQueriesInput) (*ports.ListQueriesResult, error) {
	return s.listFn(actor, in)
}

func (s *stubQueryService) Assign(_ context.Context, actor domain.Actor, id, consultantID string) (*domain.Query, error) {
	return s.assignFn(actor, id, consultantID)
}

func (s *stubQueryService) Respond(_ context.Context, actor domain.Actor, id string, in ports.RespondInput) (*domain.Query, error) {
	return s.respondFn(actor, id, in)
}

func (s *stubQueryService) Resolve(_ context.Context, actor domain.Actor, id string) (*domain.Query, error) {
	return s.resolveFn(actor, id)
}

type stubUserService struct {
	listFn          func(role string) ([]*domain.User, error)
	consultantsFn   func() ([]*domain.User, error)
	profileFn       func(actor domain.Actor) (*domain.User, error)
	updateProfileFn func(actor domain.Actor, in ports.UpdateProfileInput) (*domain.User, error)
	adminUpdateFn   func(actor domain.Actor, id string, in ports.AdminUpdateInput) (*domain.User, error)
	deleteFn        func(actor domain.Actor, id string) error
}

func (s *stubUserService) List(_ context.Context, role string) ([]*domain.User, error) {
	return s.listFn(role)
}

func (s *stubUserService) Consultants(_ context.Context) ([]*domain.User, error) {
	return s.consultantsFn()
}

func (s *stubUserService) Profile(_ context.Context, actor domain.Actor) (*domain.User, error) {
	return s.profileFn(actor)
}

func (s *stubUserService) UpdateProfile(_ context.Context, actor domain.Actor, in ports.UpdateProfileInput) (*domain.User, error) {
	return s.updateProfileFn(actor, in)
}

func (s *stubUserService) AdminUpdate(_ context.Context, actor domain.Actor, id string, in ports.AdminUpdateInput) (*domain.User, error) {
	return s.adminUpdateFn(actor, id, in)
}

func (s *stubUserService) Delete(_ context.Context, actor domain.Actor, id string) error {
	return s.deleteFn(actor, id)
}

type stubFileService struct {
	uploadFn func(up ports.Upload) (*domain.FileRef, error)
	signFn   func(key string) (string, time.Duration, error)
}

func (s *stubFileService) Upload(_ context.Context, up ports.Upload) (*domain.FileRef, error) {
	return s.uploadFn(up)
}

func (s *stubFileService) SignedURL(_ context.Context, key string) (string, time.Duration, error) {
	return s.signFn(key)
}

func (s *stubFileService) Remove(_ context.Context, _ string) error {
	return nil
}
