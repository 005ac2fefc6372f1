package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client issues streamed completion requests against an OpenAI-compatible
// chat-completions API.
type Client struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	HTTP      *http.Client
}

func NewClient(baseURL, apiKey, model string, maxTokens int) *Client {
	return &Client{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: maxTokens,
		// No overall timeout: streams are long-lived and cancelled via
		// the stream's context.
		HTTP: &http.Client{Timeout: 0},
	}
}

// Stream is an in-flight generation: an ordered sequence of text
// fragments. The channel closes on completion or failure; Err reports the
// terminal error afterwards. A mid-stream failure discards accumulated
// text - callers must not commit partial output.
type Stream struct {
	fragments chan string
	cancel    context.CancelFunc

	mu  sync.Mutex
	err error
}

// Fragments yields text fragments in arrival order. Concatenating them
// reconstructs the full response.
func (s *Stream) Fragments() <-chan string {
	return s.fragments
}

// Cancel aborts the in-flight request. The fragment channel closes
// shortly after.
func (s *Stream) Cancel() {
	s.cancel()
}

// Err returns the terminal error. Only valid once Fragments is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Collect drains the stream and returns the concatenated response, or
// the terminal error with all partial text discarded.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for frag := range s.Fragments() {
		b.WriteString(frag)
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

type chatRequest struct {
	Model     string    `json:"model"`
	Stream    bool      `json:"stream"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream issues one generation request and returns the fragment stream.
// Request construction errors and non-2xx upstream responses surface
// immediately; transport failures after the stream opens surface through
// Stream.Err. There is no request-level retry or backoff.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	messages, err := BuildMessages(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model:     c.Model,
		Stream:    true,
		Messages:  messages,
		MaxTokens: c.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("completion request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		defer cancel()
		return nil, upstreamError(resp)
	}

	s := &Stream{
		fragments: make(chan string, 16),
		cancel:    cancel,
	}
	go s.consume(resp.Body)
	return s, nil
}

// consume reads SSE lines from the upstream body and forwards content
// deltas until the stream closes.
func (s *Stream) consume(body io.ReadCloser) {
	defer close(s.fragments)
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			s.fragments <- chunk.Choices[0].Delta.Content
		}
	}
	if err := sc.Err(); err != nil {
		s.fail(fmt.Errorf("stream interrupted: %w", err))
	}
}

// upstreamError extracts the upstream error message when available,
// otherwise falls back to a generic one.
func upstreamError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("completion service: %s (status %d)", apiErr.Error.Message, resp.StatusCode)
	}
	return fmt.Errorf("completion service: status %d", resp.StatusCode)
}

// WaitClose drains and discards a stream in the background, used when a
// newer request supersedes it.
func WaitClose(s *Stream, grace time.Duration) {
	if s == nil {
		return
	}
	s.Cancel()
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		for {
			select {
			case _, ok := <-s.Fragments():
				if !ok {
					return
				}
			case <-timer.C:
				return
			}
		}
	}()
}
