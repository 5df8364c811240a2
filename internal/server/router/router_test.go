package router_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/book-expert/ocr-parser-service/internal/server/router"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeDocumentHandler struct {
	mu       sync.Mutex
	parsed   int
	archives []string
}

func (f *fakeDocumentHandler) HandleParse(c *gin.Context) {
	f.mu.Lock()
	f.parsed++
	f.mu.Unlock()

	c.Status(http.StatusAccepted)
}

func (f *fakeDocumentHandler) HandleArchive(c *gin.Context) {
	f.mu.Lock()
	f.archives = append(f.archives, c.Param("name"))
	f.mu.Unlock()

	c.Status(http.StatusOK)
}

func TestNew_Healthz(t *testing.T) {
	t.Parallel()

	r := router.New("secret", &fakeDocumentHandler{})

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", recorder.Body.String())
}

func TestNew_DocumentRoutes(t *testing.T) {
	t.Parallel()

	fake := &fakeDocumentHandler{}
	r := router.New("", fake)

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/documents/parse", nil))
	assert.Equal(t, http.StatusAccepted, recorder.Code)

	recorder = httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/documents/archives/scan-1234.pdf", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/documents/parse", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	assert.Equal(t, 1, fake.parsed)
	assert.Equal(t, []string{"scan-1234.pdf"}, fake.archives)
}

func TestNew_WithAPIKey(t *testing.T) {
	t.Parallel()

	fake := &fakeDocumentHandler{}
	r := router.New("secret-key", fake)

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/documents/parse", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Zero(t, fake.parsed)

	recorder = httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/documents/archives/a.pdf", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Empty(t, fake.archives)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/parse", nil)
	req.Header.Set("x-api-key", "secret-key")

	recorder = httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Equal(t, 1, fake.parsed)

	recorder = httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, recorder.Code, "health checks skip the api key")
}
