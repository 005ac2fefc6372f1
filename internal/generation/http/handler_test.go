package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-labs/appforge-backend/internal/auth"
	"github.com/appforge-labs/appforge-backend/internal/generation"
)

func fakeUpstream(t *testing.T, tokens []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range tokens {
			chunk, _ := json.Marshal(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]string{"content": tok}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(client *generation.Client, perMin int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.CtxFirebaseUID, "test-user")
		c.Next()
	})
	NewHandler(client, perMin).Register(&r.RouterGroup)
	return r
}

func postGenerate(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestGenerate_StreamsPlainText(t *testing.T) {
	upstream := fakeUpstream(t, []string{"Hello", " ", "there"})
	client := generation.NewClient(upstream.URL, "k", "m", 0)
	r := newTestRouter(client, 100)

	w := postGenerate(r, `{"type":"idea","data":{"businessDetails":"a bakery"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "Hello there", w.Body.String())
}

func TestGenerate_InvalidType(t *testing.T) {
	client := generation.NewClient("http://unused.invalid", "k", "m", 0)
	r := newTestRouter(client, 100)

	w := postGenerate(r, `{"type":"poem","data":{}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid request type", body["error"])
}

func TestGenerate_MalformedBody(t *testing.T) {
	client := generation.NewClient("http://unused.invalid", "k", "m", 0)
	r := newTestRouter(client, 100)

	w := postGenerate(r, `{"type":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_RateLimited(t *testing.T) {
	upstream := fakeUpstream(t, []string{"ok"})
	client := generation.NewClient(upstream.URL, "k", "m", 0)
	// Burst of 1: the second immediate request must be rejected.
	r := newTestRouter(client, 1)

	first := postGenerate(r, `{"type":"idea","data":{"businessDetails":"b"}}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postGenerate(r, `{"type":"idea","data":{"businessDetails":"b"}}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
	}))
	t.Cleanup(srv.Close)

	client := generation.NewClient(srv.URL, "k", "m", 0)
	r := newTestRouter(client, 100)

	w := postGenerate(r, `{"type":"idea","data":{"businessDetails":"b"}}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "overloaded")
}
