package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/appforge-labs/appforge-backend/internal/auth"
	"github.com/appforge-labs/appforge-backend/internal/builder"
	"github.com/appforge-labs/appforge-backend/internal/projects/domain"
	"github.com/appforge-labs/appforge-backend/internal/whiteboard"
)

// Handler drives the builder workflow over HTTP. Generation-backed
// transitions stream SSE delta/done events; everything else is JSON.
type Handler struct {
	svc *builder.Service
}

func Register(rg *gin.RouterGroup, svc *builder.Service) {
	h := &Handler{svc: svc}

	rg.POST("/questionnaire", h.submitQuestionnaire)
	rg.GET("/:id", h.get)
	rg.GET("/:id/scene", h.scene)
	rg.POST("/:id/save", h.save)
	rg.POST("/:id/idea/regenerate", h.regenerateIdea)
	rg.POST("/:id/features", h.addFeature)
	rg.DELETE("/:id/features/:index", h.removeFeature)
	rg.POST("/:id/build", h.build)
	rg.POST("/:id/publish", h.publish)
	rg.GET("/:id/events", h.events)
}

type questionnaireReq struct {
	Name            string `json:"name"`
	BusinessDetails string `json:"business_details"`
	SketchData      string `json:"sketch_data"`
	WhiteboardImage string `json:"whiteboard_image"`
}

func (h *Handler) submitQuestionnaire(c *gin.Context) {
	var req questionnaireReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	run, err := h.svc.SubmitQuestionnaire(c.Request.Context(), auth.UserUID(c), builder.SubmitQuestionnaireInput{
		Name:            req.Name,
		BusinessDetails: req.BusinessDetails,
		SketchData:      req.SketchData,
		WhiteboardImage: req.WhiteboardImage,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, builder.ErrNameRequired) || errors.Is(err, builder.ErrBusinessDetailsRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	h.streamRun(c, run)
}

func (h *Handler) regenerateIdea(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	run, err := h.svc.RegenerateIdea(c.Request.Context(), p)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, builder.ErrBusinessDetailsRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	h.streamRun(c, run)
}

func (h *Handler) get(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p, "stage": builder.StageFor(p)})
}

// scene returns the decoded sketch for canvas restoration. Malformed
// stored data yields an empty scene, never an error.
func (h *Handler) scene(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "scene": whiteboard.Decode(p.SketchData)})
}

type saveReq struct {
	Name            *string  `json:"name"`
	BusinessDetails *string  `json:"business_details"`
	AppIdea         *string  `json:"app_idea"`
	Features        []string `json:"features"`
	SketchData      *string  `json:"sketch_data"`
	WhiteboardImage *string  `json:"whiteboard_image"`
}

func (h *Handler) save(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.BusinessDetails != nil {
		p.BusinessDetails = *req.BusinessDetails
	}
	if req.AppIdea != nil {
		p.AppIdea = *req.AppIdea
	}
	if req.Features != nil {
		p.Features = req.Features
	}
	if req.SketchData != nil {
		p.SketchData = *req.SketchData
	}
	if req.WhiteboardImage != nil {
		p.WhiteboardImage = *req.WhiteboardImage
	}

	if err := h.svc.SaveProject(c.Request.Context(), p); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, builder.ErrNameRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type featureReq struct {
	Feature string `json:"feature"`
}

func (h *Handler) addFeature(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	var req featureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := h.svc.AddFeature(c.Request.Context(), p, req.Feature); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, builder.ErrFeatureRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "features": p.Features})
}

func (h *Handler) removeFeature(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid feature index"})
		return
	}

	if err := h.svc.RemoveFeature(c.Request.Context(), p, idx); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrIndexOutOfRange) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "features": p.Features})
}

func (h *Handler) build(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	run, err := h.svc.StartBuild(c.Request.Context(), p)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, builder.ErrNoFeatures) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	h.streamRun(c, run)
}

func (h *Handler) publish(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	p, err := h.svc.Publish(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p, "redirect": "/dashboard"})
}

func (h *Handler) events(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.svc.Events(c.Request.Context(), p.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "events": events})
}

// load fetches the project in the URL and enforces ownership.
func (h *Handler) load(c *gin.Context) (*domain.Project, bool) {
	p, err := h.svc.Load(c.Request.Context(), auth.UserUID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		}
		return nil, false
	}
	return p, true
}

// streamRun relays a generation run as SSE: delta events per fragment,
// then one done (or error) event carrying the final project state.
func (h *Handler) streamRun(c *gin.Context, run *builder.GenerationRun) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	for frag := range run.Fragments {
		fmt.Fprintf(c.Writer, "event: delta\ndata: %s\n\n", jsonString(frag))
		flusher.Flush()
	}

	res := <-run.Result
	switch {
	case res.Err != nil:
		fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", jsonString(res.Err.Error()))
	case res.Stale:
		fmt.Fprintf(c.Writer, "event: stale\ndata: %s\n\n", `{"ok":false}`)
	default:
		payload, _ := json.Marshal(gin.H{
			"ok":      true,
			"project": res.Project,
			"stage":   builder.StageFor(res.Project),
		})
		fmt.Fprintf(c.Writer, "event: done\ndata: %s\n\n", payload)
	}
	flusher.Flush()
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
