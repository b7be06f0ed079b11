package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adil/docexchange-backend/auth"
	"github.com/adil/docexchange-backend/broker"
	"github.com/adil/docexchange-backend/handlers"
	"github.com/adil/docexchange-backend/initializers"
	"github.com/adil/docexchange-backend/mailer"
	"github.com/adil/docexchange-backend/models"
	"github.com/adil/docexchange-backend/routes"
	"github.com/adil/docexchange-backend/storage"
	"github.com/adil/docexchange-backend/token"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	clock  *fakeClock
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{}, &models.File{}, &models.DownloadToken{}, &models.DownloadEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	initializers.DB = db

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	blobs := storage.NewLocalStore(t.TempDir())
	tokens := token.NewStore(db, clock, time.Hour)
	baseURL := "http://files.test"
	handlers.Init(broker.New(db, tokens, blobs, baseURL), tokens, blobs, mailer.LogMailer{}, baseURL)

	router := gin.New()
	routes.RegisterRoutes(router)

	return &testServer{router: router, db: db, clock: clock}
}

func (s *testServer) createUser(t *testing.T, username string, role models.Role, verified bool) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("testpass123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		Username:        username,
		Email:           username + "@test.com",
		PasswordHash:    string(hash),
		Role:            role,
		IsEmailVerified: verified,
	}
	if err := s.db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func (s *testServer) bearerFor(t *testing.T, user *models.User) string {
	t.Helper()
	access, _, err := auth.GenerateTokens(user.ID.String())
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}
	return "Bearer " + access
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(b)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (s *testServer) uploadAs(t *testing.T, bearer, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartUpload(t, filename, content)
	return s.do(t, http.MethodPost, "/api/files/upload", bearer, body, ct)
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/signup", "", jsonBody(t, gin.H{
		"username":         "clientuser",
		"email":            "client@test.com",
		"password":         "testpass123",
		"confirm_password": "testpass123",
	}), "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("signup = %d: %s", w.Code, w.Body.String())
	}
	verificationURL, _ := decode(t, w)["verification_url"].(string)
	if verificationURL == "" {
		t.Fatal("signup response missing verification_url")
	}

	login := func() *httptest.ResponseRecorder {
		return s.do(t, http.MethodPost, "/api/auth/login", "", jsonBody(t, gin.H{
			"username": "clientuser",
			"password": "testpass123",
		}), "application/json")
	}

	// Client logins are gated on verification.
	if w := login(); w.Code != http.StatusBadRequest {
		t.Fatalf("login before verification = %d, want 400", w.Code)
	}

	u, err := url.Parse(verificationURL)
	if err != nil {
		t.Fatalf("parse verification URL: %v", err)
	}
	w = s.do(t, http.MethodGet, "/api/auth/verify-email?token="+u.Query().Get("token"), "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("verify-email = %d: %s", w.Code, w.Body.String())
	}

	w = login()
	if w.Code != http.StatusOK {
		t.Fatalf("login after verification = %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["access_token"] == "" || resp["refresh_token"] == "" {
		t.Error("login response missing tokens")
	}
	if resp["role"] != "client" {
		t.Errorf("login role = %v, want client", resp["role"])
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	s := setupServer(t)
	s.createUser(t, "clientuser", models.RoleClient, true)

	w := s.do(t, http.MethodPost, "/api/auth/signup", "", jsonBody(t, gin.H{
		"username":         "clientuser",
		"email":            "other@test.com",
		"password":         "testpass123",
		"confirm_password": "testpass123",
	}), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate signup = %d, want 400", w.Code)
	}
}

func TestRefreshFlow(t *testing.T) {
	s := setupServer(t)
	user := s.createUser(t, "clientuser", models.RoleClient, true)

	_, refresh, err := auth.GenerateTokens(user.ID.String())
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	w := s.do(t, http.MethodPost, "/api/auth/refresh", "", jsonBody(t, gin.H{
		"refresh_token": refresh,
	}), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d: %s", w.Code, w.Body.String())
	}
	if decode(t, w)["access_token"] == "" {
		t.Error("refresh response missing access token")
	}

	// An access token must not work as a refresh token.
	access, _, _ := auth.GenerateTokens(user.ID.String())
	w = s.do(t, http.MethodPost, "/api/auth/refresh", "", jsonBody(t, gin.H{
		"refresh_token": access,
	}), "application/json")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh with access token = %d, want 401", w.Code)
	}
}

func TestUploadRoles(t *testing.T) {
	s := setupServer(t)
	ops := s.createUser(t, "opsuser", models.RoleOps, true)
	client := s.createUser(t, "clientuser", models.RoleClient, true)

	if w := s.uploadAs(t, s.bearerFor(t, ops), "report.docx", "file_content"); w.Code != http.StatusCreated {
		t.Errorf("ops upload = %d: %s", w.Code, w.Body.String())
	}
	if w := s.uploadAs(t, s.bearerFor(t, client), "report.docx", "file_content"); w.Code != http.StatusForbidden {
		t.Errorf("client upload = %d, want 403", w.Code)
	}
	if w := s.uploadAs(t, "", "report.docx", "file_content"); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous upload = %d, want 401", w.Code)
	}
}

func TestUploadValidation(t *testing.T) {
	s := setupServer(t)
	bearer := s.bearerFor(t, s.createUser(t, "opsuser", models.RoleOps, true))

	if w := s.uploadAs(t, bearer, "malware.exe", "x"); w.Code != http.StatusBadRequest {
		t.Errorf("exe upload = %d, want 400", w.Code)
	}
	if w := s.uploadAs(t, bearer, "huge.docx", strings.Repeat("a", 11<<20)); w.Code != http.StatusBadRequest {
		t.Errorf("oversize upload = %d, want 400", w.Code)
	}
}

func TestListFiles(t *testing.T) {
	s := setupServer(t)
	ops := s.createUser(t, "opsuser", models.RoleOps, true)
	client := s.createUser(t, "clientuser", models.RoleClient, true)

	opsBearer := s.bearerFor(t, ops)
	s.uploadAs(t, opsBearer, "alpha.docx", "a")
	s.uploadAs(t, opsBearer, "beta.xlsx", "b")

	// Listing is a client operation.
	if w := s.do(t, http.MethodGet, "/api/files", opsBearer, nil, ""); w.Code != http.StatusForbidden {
		t.Errorf("ops list = %d, want 403", w.Code)
	}

	clientBearer := s.bearerFor(t, client)
	w := s.do(t, http.MethodGet, "/api/files", clientBearer, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["count"].(float64); got != 2 {
		t.Errorf("count = %v, want 2", got)
	}

	w = s.do(t, http.MethodGet, "/api/files?file_type=xlsx", clientBearer, nil, "")
	if got := decode(t, w)["count"].(float64); got != 1 {
		t.Errorf("filtered count = %v, want 1", got)
	}

	w = s.do(t, http.MethodGet, "/api/files?search=alp", clientBearer, nil, "")
	if got := decode(t, w)["count"].(float64); got != 1 {
		t.Errorf("searched count = %v, want 1", got)
	}
}

// mintLink uploads a file as ops and requests a download link as client,
// returning the redemption path.
func (s *testServer) mintLink(t *testing.T, content string) string {
	t.Helper()

	ops := s.createUser(t, "opsuser-"+fmt.Sprint(time.Now().UnixNano()), models.RoleOps, true)
	client := s.createUser(t, "clientuser-"+fmt.Sprint(time.Now().UnixNano()), models.RoleClient, true)

	w := s.uploadAs(t, s.bearerFor(t, ops), "report.docx", content)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", w.Code, w.Body.String())
	}
	fileID := decode(t, w)["file_id"].(string)

	w = s.do(t, http.MethodGet, "/api/files/"+fileID+"/download", s.bearerFor(t, client), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("mint = %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["expires_at"] == "" {
		t.Fatal("mint response missing expires_at")
	}
	link, err := url.Parse(resp["download_link"].(string))
	if err != nil {
		t.Fatalf("parse download link: %v", err)
	}
	return link.Path
}

func TestMintAndRedeemRoundTrip(t *testing.T) {
	s := setupServer(t)
	content := "file_content"
	path := s.mintLink(t, content)

	w := s.do(t, http.MethodGet, path, "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("redeem = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != content {
		t.Errorf("downloaded %q, want %q", got, content)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="report.docx"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	// One successful download is recorded.
	var events int64
	if err := s.db.Model(&models.DownloadEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Errorf("download events = %d, want 1", events)
	}

	// The link is single-use.
	if w := s.do(t, http.MethodGet, path, "", nil, ""); w.Code != http.StatusGone {
		t.Errorf("second redeem = %d, want 410", w.Code)
	}
}

func TestRedeemExpiredLink(t *testing.T) {
	s := setupServer(t)
	path := s.mintLink(t, "file_content")

	s.clock.Advance(3601 * time.Second)
	if w := s.do(t, http.MethodGet, path, "", nil, ""); w.Code != http.StatusGone {
		t.Errorf("expired redeem = %d, want 410", w.Code)
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	s := setupServer(t)

	if w := s.do(t, http.MethodGet, "/api/secure-download/bogus-token", "", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown token redeem = %d, want 404", w.Code)
	}
}

func TestMintForbiddenForOps(t *testing.T) {
	s := setupServer(t)
	ops := s.createUser(t, "opsuser", models.RoleOps, true)

	bearer := s.bearerFor(t, ops)
	w := s.uploadAs(t, bearer, "report.docx", "x")
	fileID := decode(t, w)["file_id"].(string)

	if w := s.do(t, http.MethodGet, "/api/files/"+fileID+"/download", bearer, nil, ""); w.Code != http.StatusForbidden {
		t.Errorf("ops mint = %d, want 403", w.Code)
	}

	var tokens int64
	if err := s.db.Model(&models.DownloadToken{}).Count(&tokens).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if tokens != 0 {
		t.Errorf("%d token rows created by a rejected mint", tokens)
	}
}

func TestMintUnknownFile(t *testing.T) {
	s := setupServer(t)
	client := s.createUser(t, "clientuser", models.RoleClient, true)

	w := s.do(t, http.MethodGet, "/api/files/7b7c2a5e-1111-2222-3333-444455556666/download", s.bearerFor(t, client), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("mint for unknown file = %d, want 404", w.Code)
	}
}

func TestMintQRCode(t *testing.T) {
	s := setupServer(t)
	ops := s.createUser(t, "opsuser", models.RoleOps, true)
	client := s.createUser(t, "clientuser", models.RoleClient, true)

	w := s.uploadAs(t, s.bearerFor(t, ops), "report.docx", "x")
	fileID := decode(t, w)["file_id"].(string)

	w = s.do(t, http.MethodGet, "/api/files/"+fileID+"/download?qr=1", s.bearerFor(t, client), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("qr mint = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("qr content type = %q, want image/png", ct)
	}
}

func TestAdminCleanup(t *testing.T) {
	s := setupServer(t)
	ops := s.createUser(t, "opsuser", models.RoleOps, true)
	client := s.createUser(t, "clientuser", models.RoleClient, true)

	s.mintLink(t, "file_content")
	s.clock.Advance(2 * time.Hour)

	if w := s.do(t, http.MethodPost, "/api/admin/cleanup", s.bearerFor(t, client), nil, ""); w.Code != http.StatusForbidden {
		t.Errorf("client cleanup = %d, want 403", w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/admin/cleanup", s.bearerFor(t, ops), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("cleanup = %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["purged"].(float64); got != 1 {
		t.Errorf("purged = %v, want 1", got)
	}
}
