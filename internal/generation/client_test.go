package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string, check func(r *http.Request, body chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if check != nil {
			check(r, body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func delta(content string) string {
	chunk := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"delta": map[string]string{"content": content}},
		},
	}
	raw, _ := json.Marshal(chunk)
	return "data: " + string(raw)
}

func TestClientStream_CollectsFragmentsInOrder(t *testing.T) {
	var gotAuth string
	srv := sseServer(t, []string{
		delta("Hello"),
		delta(", "),
		delta("world"),
		"data: [DONE]",
	}, func(r *http.Request, body chatRequest) {
		gotAuth = r.Header.Get("Authorization")
		assert.True(t, body.Stream)
		assert.Equal(t, "test-model", body.Model)
		assert.Equal(t, 4096, body.MaxTokens)
	})

	c := NewClient(srv.URL, "sk-test", "test-model", 4096)
	stream, err := c.Stream(context.Background(), Request{
		Kind: KindIdea,
		Idea: IdeaInput{BusinessDetails: "B"},
	})
	require.NoError(t, err)

	text, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestClientStream_SkipsMalformedChunks(t *testing.T) {
	srv := sseServer(t, []string{
		delta("ok"),
		"data: {not json",
		": keep-alive comment",
		delta("!"),
		"data: [DONE]",
	}, nil)

	c := NewClient(srv.URL, "k", "m", 0)
	stream, err := c.Stream(context.Background(), Request{Kind: KindIdea, Idea: IdeaInput{BusinessDetails: "B"}})
	require.NoError(t, err)

	text, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "ok!", text)
}

func TestClientStream_UpstreamErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "bad", "m", 0)
	_, err := c.Stream(context.Background(), Request{Kind: KindIdea, Idea: IdeaInput{BusinessDetails: "B"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Contains(t, err.Error(), "401")
}

func TestClientStream_UpstreamErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "k", "m", 0)
	_, err := c.Stream(context.Background(), Request{Kind: KindIdea, Idea: IdeaInput{BusinessDetails: "B"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestClientStream_RejectsUnknownKind(t *testing.T) {
	c := NewClient("http://unused.invalid", "k", "m", 0)
	_, err := c.Stream(context.Background(), Request{Kind: Kind("nope")})
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestCollect_DiscardsPartialOnError(t *testing.T) {
	s := &Stream{fragments: make(chan string, 4), cancel: func() {}}
	s.fragments <- "partial "
	s.fragments <- "text"
	s.fail(fmt.Errorf("stream interrupted"))
	close(s.fragments)

	text, err := s.Collect()
	require.Error(t, err)
	assert.Empty(t, text)
}
