package http

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KARTIKEY-KATYAL/EZ/adapters/blob"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/events"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/ledger"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/mailer"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/sealer"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/store"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/tokenizer"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
	"github.com/KARTIKEY-KATYAL/EZ/service"
)

const testBaseURL = "http://localhost:8000"

type testServer struct {
	router *gin.Engine
	mail   *mailer.TestMailer
	auth   *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	clock := ports.SystemClock{}

	users := store.NewMemoryUserStore()
	files := store.NewMemoryFileStore()
	blobs, err := blob.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	key := make([]byte, sealer.KeySize)
	_, err = rand.Read(key)
	require.NoError(t, err)
	seal, err := sealer.NewAEADSealer(key)
	require.NoError(t, err)

	mail := mailer.NewTestMailer()
	tk := tokenizer.NewJWTTokenizer([]byte("test-secret"), 30*time.Minute, clock)

	authService := service.NewAuthService(users, tk, mail, clock, log, testBaseURL)
	fileService := service.NewFileService(files, blobs, clock, log)
	grantService := service.NewGrantService(
		seal, ledger.NewMemoryLedger(),
		service.NewFileAuthorizer(users, files),
		clock, events.NopPublisher{}, log,
	)

	return &testServer{
		router: SetupRouter(authService, fileService, grantService, log, testBaseURL),
		mail:   mail,
		auth:   authService,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, method, path, token, body, "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// signupVerifiedClient walks a client through signup, mail verification and
// login, returning the access token.
func (s *testServer) signupVerifiedClient(t *testing.T, username, email string) string {
	t.Helper()

	w := s.doJSON(t, http.MethodPost, "/client/signup", "", gin.H{
		"username": username, "email": email, "password": "hunter22secret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	msgs := s.mail.Messages()
	require.NotEmpty(t, msgs)
	verifyURL := msgs[len(msgs)-1].VerifyURL
	path := strings.TrimPrefix(verifyURL, testBaseURL)
	w = s.do(t, http.MethodGet, path, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doJSON(t, http.MethodPost, "/client/login", "", gin.H{
		"username": username, "password": "hunter22secret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["access_token"].(string)
}

func (s *testServer) loginOps(t *testing.T) string {
	t.Helper()
	_, err := s.auth.CreateOpsUser(t.Context(), "ops_admin", "ops@example.com", "ops123456")
	require.NoError(t, err)

	w := s.doJSON(t, http.MethodPost, "/ops/login", "", gin.H{
		"username": "ops_admin", "password": "ops123456",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["access_token"].(string)
}

func (s *testServer) uploadFile(t *testing.T, opsToken, name, content string) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := s.do(t, http.MethodPost, "/ops/upload", opsToken, &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestDownloadFlow(t *testing.T) {
	s := newTestServer(t)

	opsToken := s.loginOps(t)
	fileID := s.uploadFile(t, opsToken, "report.docx", "quarterly numbers")

	clientToken := s.signupVerifiedClient(t, "alice", "alice@example.com")

	w := s.do(t, http.MethodGet, "/client/files", clientToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var files []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "report.docx", files[0]["original_filename"])

	w = s.do(t, http.MethodGet, "/client/download-file/"+fileID, clientToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	link := decode(t, w)["download_link"].(string)
	path := strings.TrimPrefix(link, testBaseURL)

	w = s.do(t, http.MethodGet, path, clientToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "quarterly numbers", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report.docx")
}

func TestDownloadLinkIsSingleUse(t *testing.T) {
	s := newTestServer(t)

	opsToken := s.loginOps(t)
	fileID := s.uploadFile(t, opsToken, "report.docx", "data")
	clientToken := s.signupVerifiedClient(t, "alice", "alice@example.com")

	w := s.do(t, http.MethodGet, "/client/download-file/"+fileID, clientToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	path := strings.TrimPrefix(decode(t, w)["download_link"].(string), testBaseURL)

	w = s.do(t, http.MethodGet, path, clientToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	// The second use of the same link is denied with the generic body.
	w = s.do(t, http.MethodGet, path, clientToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, deniedMessage, decode(t, w)["error"])
}

func TestDownloadLinkIsNotTransferable(t *testing.T) {
	s := newTestServer(t)

	opsToken := s.loginOps(t)
	fileID := s.uploadFile(t, opsToken, "report.docx", "data")

	aliceToken := s.signupVerifiedClient(t, "alice", "alice@example.com")
	bobToken := s.signupVerifiedClient(t, "bob", "bob@example.com")

	w := s.do(t, http.MethodGet, "/client/download-file/"+fileID, aliceToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	path := strings.TrimPrefix(decode(t, w)["download_link"].(string), testBaseURL)

	// Bob is authenticated but the grant is bound to Alice. The denial
	// body must not say why.
	w = s.do(t, http.MethodGet, path, bobToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, deniedMessage, decode(t, w)["error"])

	// Alice can still use her link afterwards.
	w = s.do(t, http.MethodGet, path, aliceToken, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDownloadRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	opsToken := s.loginOps(t)
	fileID := s.uploadFile(t, opsToken, "report.docx", "data")
	clientToken := s.signupVerifiedClient(t, "alice", "alice@example.com")

	w := s.do(t, http.MethodGet, "/client/download-file/"+fileID, clientToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	path := strings.TrimPrefix(decode(t, w)["download_link"].(string), testBaseURL)

	w = s.do(t, http.MethodGet, path, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTamperedDownloadTokenIsDenied(t *testing.T) {
	s := newTestServer(t)

	opsToken := s.loginOps(t)
	fileID := s.uploadFile(t, opsToken, "report.docx", "data")
	clientToken := s.signupVerifiedClient(t, "alice", "alice@example.com")

	w := s.do(t, http.MethodGet, "/client/download-file/"+fileID, clientToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	path := strings.TrimPrefix(decode(t, w)["download_link"].(string), testBaseURL)

	w = s.do(t, http.MethodGet, path+"x", clientToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, deniedMessage, decode(t, w)["error"])
}

func TestOpsCannotUseClientRoutes(t *testing.T) {
	s := newTestServer(t)
	opsToken := s.loginOps(t)

	w := s.do(t, http.MethodGet, "/client/files", opsToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClientCannotUpload(t *testing.T) {
	s := newTestServer(t)
	clientToken := s.signupVerifiedClient(t, "alice", "alice@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "report.docx")
	require.NoError(t, err)
	_, err = fw.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := s.do(t, http.MethodPost, "/ops/upload", clientToken, &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	s := newTestServer(t)
	opsToken := s.loginOps(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "malware.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := s.do(t, http.MethodPost, "/ops/upload", opsToken, &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnverifiedClientCannotLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/client/signup", "", gin.H{
		"username": "carol", "email": "carol@example.com", "password": "hunter22secret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.doJSON(t, http.MethodPost, "/client/login", "", gin.H{
		"username": "carol", "password": "hunter22secret",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDownloadLinkForMissingFile(t *testing.T) {
	s := newTestServer(t)
	clientToken := s.signupVerifiedClient(t, "alice", "alice@example.com")

	w := s.do(t, http.MethodGet, "/client/download-file/no-such-file", clientToken, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
