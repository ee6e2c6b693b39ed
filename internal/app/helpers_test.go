package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"projectmate/api/internal/auth"
	"projectmate/api/internal/config"
	"projectmate/api/internal/credential"
	"projectmate/api/internal/otp"
	"projectmate/api/internal/session"
	"projectmate/api/internal/store"
)

// fakeData implements dataStore with per-method function fields. Any method
// without a function installed reports sql.ErrNoRows, which surfaces as 404
// through mapError.
type fakeData struct {
	insertProjectFn func(context.Context, string, string) (store.Project, error)
	listProjectsFn  func(context.Context) ([]store.ProjectDetail, error)
	getProjectFn    func(context.Context, int64) (store.ProjectDetail, error)
	updateProjectFn func(context.Context, int64, *string, *string) (store.Project, error)
	deleteProjectFn func(context.Context, int64) error
	insertSectionFn func(context.Context, string, int64) (store.Section, error)
	getSectionFn    func(context.Context, int64) (store.SectionDetail, error)
	updateSectionFn func(context.Context, int64, *string) (store.Section, error)
	deleteSectionFn func(context.Context, int64) error
	insertTopicFn   func(context.Context, string, int64) (store.Topic, error)
	getTopicFn      func(context.Context, int64) (store.TopicDetail, error)
	updateTopicFn   func(context.Context, int64, *string) (store.Topic, error)
	deleteTopicFn   func(context.Context, int64) error
	insertFolderFn  func(context.Context, string, store.Placement) (store.Folder, error)
	getFolderFn     func(context.Context, int64) (store.FolderDetail, error)
	updateFolderFn  func(context.Context, int64, *string) (store.Folder, error)
	deleteFolderFn  func(context.Context, int64) error
	insertFileFn    func(context.Context, string, string, store.Placement) (store.File, error)
	getFileFn       func(context.Context, int64) (store.FileDetail, error)
	updateFileFn    func(context.Context, int64, *string, *string) (store.File, error)
	deleteFileFn    func(context.Context, int64) error
	pingFn          func(context.Context) error
}

func (f *fakeData) InsertProject(ctx context.Context, title, description string) (store.Project, error) {
	if f.insertProjectFn == nil {
		return store.Project{}, sql.ErrNoRows
	}
	return f.insertProjectFn(ctx, title, description)
}

func (f *fakeData) ListProjects(ctx context.Context) ([]store.ProjectDetail, error) {
	if f.listProjectsFn == nil {
		return nil, nil
	}
	return f.listProjectsFn(ctx)
}

func (f *fakeData) GetProject(ctx context.Context, id int64) (store.ProjectDetail, error) {
	if f.getProjectFn == nil {
		return store.ProjectDetail{}, sql.ErrNoRows
	}
	return f.getProjectFn(ctx, id)
}

func (f *fakeData) UpdateProject(ctx context.Context, id int64, title, description *string) (store.Project, error) {
	if f.updateProjectFn == nil {
		return store.Project{}, sql.ErrNoRows
	}
	return f.updateProjectFn(ctx, id, title, description)
}

func (f *fakeData) DeleteProject(ctx context.Context, id int64) error {
	if f.deleteProjectFn == nil {
		return sql.ErrNoRows
	}
	return f.deleteProjectFn(ctx, id)
}

func (f *fakeData) InsertSection(ctx context.Context, title string, projectID int64) (store.Section, error) {
	if f.insertSectionFn == nil {
		return store.Section{}, sql.ErrNoRows
	}
	return f.insertSectionFn(ctx, title, projectID)
}

func (f *fakeData) GetSection(ctx context.Context, id int64) (store.SectionDetail, error) {
	if f.getSectionFn == nil {
		return store.SectionDetail{}, sql.ErrNoRows
	}
	return f.getSectionFn(ctx, id)
}

func (f *fakeData) UpdateSection(ctx context.Context, id int64, title *string) (store.Section, error) {
	if f.updateSectionFn == nil {
		return store.Section{}, sql.ErrNoRows
	}
	return f.updateSectionFn(ctx, id, title)
}

func (f *fakeData) DeleteSection(ctx context.Context, id int64) error {
	if f.deleteSectionFn == nil {
		return sql.ErrNoRows
	}
	return f.deleteSectionFn(ctx, id)
}

func (f *fakeData) InsertTopic(ctx context.Context, title string, sectionID int64) (store.Topic, error) {
	if f.insertTopicFn == nil {
		return store.Topic{}, sql.ErrNoRows
	}
	return f.insertTopicFn(ctx, title, sectionID)
}

func (f *fakeData) GetTopic(ctx context.Context, id int64) (store.TopicDetail, error) {
	if f.getTopicFn == nil {
		return store.TopicDetail{}, sql.ErrNoRows
	}
	return f.getTopicFn(ctx, id)
}

func (f *fakeData) UpdateTopic(ctx context.Context, id int64, title *string) (store.Topic, error) {
	if f.updateTopicFn == nil {
		return store.Topic{}, sql.ErrNoRows
	}
	return f.updateTopicFn(ctx, id, title)
}

func (f *fakeData) DeleteTopic(ctx context.Context, id int64) error {
	if f.deleteTopicFn == nil {
		return sql.ErrNoRows
	}
	return f.deleteTopicFn(ctx, id)
}

func (f *fakeData) InsertFolder(ctx context.Context, title string, placement store.Placement) (store.Folder, error) {
	if f.insertFolderFn == nil {
		return store.Folder{}, sql.ErrNoRows
	}
	return f.insertFolderFn(ctx, title, placement)
}

func (f *fakeData) GetFolder(ctx context.Context, id int64) (store.FolderDetail, error) {
	if f.getFolderFn == nil {
		return store.FolderDetail{}, sql.ErrNoRows
	}
	return f.getFolderFn(ctx, id)
}

func (f *fakeData) UpdateFolder(ctx context.Context, id int64, title *string) (store.Folder, error) {
	if f.updateFolderFn == nil {
		return store.Folder{}, sql.ErrNoRows
	}
	return f.updateFolderFn(ctx, id, title)
}

func (f *fakeData) DeleteFolder(ctx context.Context, id int64) error {
	if f.deleteFolderFn == nil {
		return sql.ErrNoRows
	}
	return f.deleteFolderFn(ctx, id)
}

func (f *fakeData) InsertFile(ctx context.Context, filename, content string, placement store.Placement) (store.File, error) {
	if f.insertFileFn == nil {
		return store.File{}, sql.ErrNoRows
	}
	return f.insertFileFn(ctx, filename, content, placement)
}

func (f *fakeData) GetFile(ctx context.Context, id int64) (store.FileDetail, error) {
	if f.getFileFn == nil {
		return store.FileDetail{}, sql.ErrNoRows
	}
	return f.getFileFn(ctx, id)
}

func (f *fakeData) UpdateFile(ctx context.Context, id int64, filename, content *string) (store.File, error) {
	if f.updateFileFn == nil {
		return store.File{}, sql.ErrNoRows
	}
	return f.updateFileFn(ctx, id, filename, content)
}

func (f *fakeData) DeleteFile(ctx context.Context, id int64) error {
	if f.deleteFileFn == nil {
		return sql.ErrNoRows
	}
	return f.deleteFileFn(ctx, id)
}

func (f *fakeData) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		return nil
	}
	return f.pingFn(ctx)
}

type fakeCredStore struct {
	hash string
}

func (s *fakeCredStore) GetCredentialHash(_ context.Context) (string, error) {
	if s.hash == "" {
		return "", sql.ErrNoRows
	}
	return s.hash, nil
}

func (s *fakeCredStore) SetCredentialHash(_ context.Context, hash string) error {
	s.hash = hash
	return nil
}

// fakeMailer serves both the OTP issuer and the password-changed notifier.
type fakeMailer struct {
	configured  bool
	lastOTPTo   string
	lastOTPCode string
	changedTo   string
	sendErr     error
}

func (m *fakeMailer) IsConfigured() bool {
	return m.configured
}

func (m *fakeMailer) SendOTPEmail(to, code string) error {
	m.lastOTPTo = to
	m.lastOTPCode = code
	return m.sendErr
}

func (m *fakeMailer) SendPasswordChangedEmail(to string) error {
	m.changedTo = to
	return m.sendErr
}

var errSMTPDown = errors.New("smtp down")

// mustService drops the mailer for tests that only need the service.
func mustService(service *Service, _ *fakeMailer) *Service {
	return service
}

func newTestService(fs *fakeData) (*Service, *fakeMailer) {
	cfg := config.Config{
		SessionTTL:             time.Hour,
		OTPTTL:                 10 * time.Minute,
		OTPRecipient:           "owner@example.com",
		AllowBootstrapPassword: true,
	}
	mailer := &fakeMailer{configured: true}
	guard := auth.NewGuard(session.NewMemoryStore(), cfg.SessionTTL)
	credentials := credential.NewService(&fakeCredStore{}, cfg.AllowBootstrapPassword)
	issuer := otp.New(mailer, cfg.OTPRecipient, cfg.OTPTTL)
	return New(cfg, fs, guard, credentials, issuer, mailer), mailer
}

// login performs a bootstrap-password login and returns the session cookie.
func login(t *testing.T, server *HTTPServer) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"password":"admin"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: status %d body=%s", rr.Code, rr.Body.String())
	}
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			return cookie
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

func doJSON(t *testing.T, server *HTTPServer, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSONList(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}
