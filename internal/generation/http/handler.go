package http

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/appforge-labs/appforge-backend/internal/auth"
	"github.com/appforge-labs/appforge-backend/internal/generation"
)

// Handler exposes the raw generation proxy route. The response body is
// the streamed plain-text concatenation of tokens; errors are JSON
// {"error": ...} with a non-2xx status.
type Handler struct {
	client *generation.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perMin   int
}

func NewHandler(client *generation.Client, ratePerMinute int) *Handler {
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &Handler{
		client:   client,
		limiters: make(map[string]*rate.Limiter),
		perMin:   ratePerMinute,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/generate", h.generate)
}

type generateReq struct {
	Type     string               `json:"type"`
	Data     generateData         `json:"data"`
	Messages []generation.Message `json:"messages"`
}

type generateData struct {
	BusinessDetails string   `json:"businessDetails"`
	WhiteboardImage string   `json:"whiteboardImage"`
	AppIdea         string   `json:"appIdea"`
	Features        []string `json:"features"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	uid := auth.UserUID(c)
	if !h.limiter(uid).Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many generation requests, slow down"})
		return
	}

	genReq := generation.Request{
		Kind: generation.Kind(req.Type),
		Idea: generation.IdeaInput{
			BusinessDetails: req.Data.BusinessDetails,
			WhiteboardImage: req.Data.WhiteboardImage,
		},
		Code: generation.CodeInput{
			AppIdea:  req.Data.AppIdea,
			Features: req.Data.Features,
		},
		Messages: req.Messages,
	}

	stream, err := h.client.Stream(c.Request.Context(), genReq)
	if err != nil {
		if errors.Is(err, generation.ErrUnsupportedKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request type"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	for frag := range stream.Fragments() {
		if _, err := c.Writer.WriteString(frag); err != nil {
			stream.Cancel()
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
	if err := stream.Err(); err != nil {
		// Headers already sent; the truncated body is the only signal.
		log.Printf("[generate] stream failed mid-flight: %v", err)
	}
}

func (h *Handler) limiter(uid string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[uid]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(h.perMin)/60.0), h.perMin)
		h.limiters[uid] = l
	}
	return l
}
