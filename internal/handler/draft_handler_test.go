package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-authoring/internal/archive"
	"github.com/stemsi/exstem-authoring/internal/client"
	"github.com/stemsi/exstem-authoring/internal/config"
	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/handler"
	"github.com/stemsi/exstem-authoring/internal/middleware"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/router"
	"github.com/stemsi/exstem-authoring/internal/service"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"github.com/stemsi/exstem-authoring/internal/testcase"
	"github.com/stemsi/exstem-authoring/internal/upload"
	"github.com/stemsi/exstem-authoring/internal/validator"
)

const secret = "handler-secret"

type parserStub struct{}

func (parserStub) ParseProblem(context.Context, int64, archive.Hints) (archive.RawProblem, error) {
	title := "A+B"
	return archive.RawProblem{
		Title: &title,
		TestCases: []archive.RawTestcase{
			{Name: "1", Input: "1 2", Output: "3", Type: "sample"},
		},
	}, nil
}

func (parserStub) ParseArchive(context.Context, upload.File, archive.Hints) (archive.RawProblem, error) {
	return archive.RawProblem{}, nil
}

type problemAPIStub struct {
	createErr error
	linkErr   error
	token     string
}

func (p *problemAPIStub) CreateProblem(ctx context.Context, _ *submission.CreatePayload) (int64, error) {
	p.token = client.TokenFrom(ctx)
	if p.createErr != nil {
		return 0, p.createErr
	}
	return 42, nil
}

func (p *problemAPIStub) UpdateProblem(context.Context, int64, submission.MetadataPayload) error {
	return nil
}

func (p *problemAPIStub) AddProblemToAssignment(context.Context, int64, int64) error {
	return p.linkErr
}

func (p *problemAPIStub) RemoveProblemFromAssignment(context.Context, int64, int64) error {
	return nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t   *testing.T
	srv http.Handler
	api *problemAPIStub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:         "test",
		JWTSecret:       secret,
		MaxArchiveBytes: 1 << 20,
		UpstreamTimeout: 5 * time.Second,
	}
	log := zerolog.Nop()
	uploads := upload.NewStore(t.TempDir())
	api := &problemAPIStub{}
	drafts := service.NewDraftService(
		cfg,
		service.NewDraftStore(16, time.Hour, uploads, log),
		uploads,
		archive.NewFacade(parserStub{}, nil, log),
		testcase.NewExtractor(0, log),
		submission.NewSubmitter(api, submission.Defaults{}, log),
		log,
	)

	r := router.SetupRouter(
		service.NewAuthService(cfg),
		drafts,
		middleware.NewRateLimiter(100, time.Minute, middleware.ByAuthor),
		&router.Handlers{Draft: handler.NewDraftHandler(drafts, log)},
		cfg,
	)
	return &testServer{t: t, srv: r, api: api}
}

func (s *testServer) token(userID int64, perms ...model.Permission) string {
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, string(p))
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           userID,
		Permissions:      codes,
	}).SignedString([]byte(secret))
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body []byte, contentType string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.srv.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (s *testServer) json(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	return s.do(method, path, token, data, "application/json")
}

func (s *testServer) open(token string) service.DraftView {
	w, env := s.json(http.MethodPost, "/api/v1/authoring/drafts", token, map[string]any{"problem_id": 10, "assignment_id": 3})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var view service.DraftView
	require.NoError(s.t, json.Unmarshal(env.Data, &view))
	return view
}

func TestDraftRoutesRequireAuthAndPermission(t *testing.T) {
	s := newTestServer(t)

	w, env := s.json(http.MethodPost, "/api/v1/authoring/drafts", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REQUIRED", env.Error.Code)

	w, env = s.json(http.MethodPost, "/api/v1/authoring/drafts", s.token(7), map[string]any{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "PERMISSION_DENIED", env.Error.Code)
}

func TestDraftLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(7, model.PermissionProblemsWrite)
	view := s.open(tok)
	base := "/api/v1/authoring/drafts/" + view.ID

	assert.Equal(t, draft.ModeMetadataOnly, view.Mode)
	assert.Equal(t, "A+B", view.Title)

	// Content fields are read-only until the draft is transformed.
	w, env := s.json(http.MethodPatch, base, tok, map[string]any{"description": "new"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "FIELD_READ_ONLY", env.Error.Code)
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))

	w, env = s.json(http.MethodPost, base+"/transform", tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", env.Error.Code)
	assert.Equal(t, draft.TransformConsequence, env.Error.Message)

	w, _ = s.json(http.MethodPost, base+"/transform", tok, map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code)

	// Half a pair is accepted but flagged at submit time.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "2.in")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("5 5"))
	require.NoError(t, mw.Close())
	w, env = s.do(http.MethodPost, base+"/testcases", tok, buf.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var attached service.AttachResult
	require.NoError(t, json.Unmarshal(env.Data, &attached))
	assert.Equal(t, []string{"2"}, attached.Added)

	w, env = s.json(http.MethodPost, base+"/submit", tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INCOMPLETE_TESTCASES", env.Error.Code)
	assert.JSONEq(t, `[{"name":"2","missing":"output"}]`, string(env.Error.Details))

	w, env = s.json(http.MethodPost, base+"/submit", tok, map[string]any{"confirm_incomplete": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res submission.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(42), res.ProblemID)
	assert.Equal(t, tok, s.api.token)

	w, env = s.json(http.MethodGet, base, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "DRAFT_NOT_FOUND", env.Error.Code)
}

func TestDraftOfAnotherAuthorIsForbidden(t *testing.T) {
	s := newTestServer(t)
	view := s.open(s.token(7, model.PermissionProblemsWrite))

	w, env := s.json(http.MethodGet, "/api/v1/authoring/drafts/"+view.ID, s.token(8, model.PermissionProblemsWrite), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_DRAFT_OWNER", env.Error.Code)
}

func TestUpstreamMessageIsSurfacedVerbatim(t *testing.T) {
	s := newTestServer(t)
	s.api.createErr = &client.APIError{Service: "problem_api", Status: 422, Message: "Archive has no checker"}
	tok := s.token(7, model.PermissionProblemsWrite)
	view := s.open(tok)
	base := "/api/v1/authoring/drafts/" + view.ID

	w, _ := s.json(http.MethodPost, base+"/transform", tok, map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.json(http.MethodPost, base+"/submit", tok, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPSTREAM_ERROR", env.Error.Code)
	assert.Equal(t, "Archive has no checker", env.Error.Message)

	// The draft survives a failed submit.
	w, _ = s.json(http.MethodGet, base, tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMissingProblemIDIsUpstreamError(t *testing.T) {
	s := newTestServer(t)
	s.api.createErr = client.ErrNoProblemID
	tok := s.token(7, model.PermissionProblemsWrite)
	base := "/api/v1/authoring/drafts/" + s.open(tok).ID

	w, _ := s.json(http.MethodPost, base+"/transform", tok, map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.json(http.MethodPost, base+"/submit", tok, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPSTREAM_ERROR", env.Error.Code)
}

func TestEditAfterPartialSubmitIsRefused(t *testing.T) {
	s := newTestServer(t)
	s.api.linkErr = &client.APIError{Service: "problem_api", Status: 503, Message: "Assignments unavailable"}
	tok := s.token(7, model.PermissionProblemsWrite)
	base := "/api/v1/authoring/drafts/" + s.open(tok).ID

	w, _ := s.json(http.MethodPost, base+"/transform", tok, map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.json(http.MethodPost, base+"/submit", tok, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	w, env := s.json(http.MethodPatch, base, tok, map[string]any{"title": "Renamed"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RELINK_PENDING", env.Error.Code)

	s.api.linkErr = nil
	w, env = s.json(http.MethodPost, base+"/submit", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res submission.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(42), res.ProblemID)
	assert.Equal(t, int64(10), res.ReplacedID)
}
