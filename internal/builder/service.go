package builder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/appforge-labs/appforge-backend/internal/audit"
	"github.com/appforge-labs/appforge-backend/internal/generation"
	"github.com/appforge-labs/appforge-backend/internal/projects/domain"
	"github.com/appforge-labs/appforge-backend/internal/whiteboard"
)

var (
	ErrNameRequired            = errors.New("please add a project name")
	ErrBusinessDetailsRequired = errors.New("please add business details")
	ErrFeatureRequired         = errors.New("feature text is required")
	ErrNoFeatures              = errors.New("add at least one feature before building")
)

// ProjectStore is the record store the workflow persists through.
type ProjectStore interface {
	Create(ctx context.Context, p *domain.Project) (string, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Get(ctx context.Context, id string) (*domain.Project, error)
}

// TextStream is an in-flight generation yielding ordered fragments.
type TextStream interface {
	Fragments() <-chan string
	Err() error
	Cancel()
}

// Generator starts generation requests.
type Generator interface {
	Stream(ctx context.Context, req generation.Request) (TextStream, error)
}

// ClientGenerator adapts *generation.Client to the Generator interface.
type ClientGenerator struct {
	Client *generation.Client
}

func (g ClientGenerator) Stream(ctx context.Context, req generation.Request) (TextStream, error) {
	s, err := g.Client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Service is the builder workflow state machine. It sequences the four
// stages, invokes the generator at transitions, and persists project
// state through the record store. All methods are safe for concurrent use
// across projects; per-project generation ordering is enforced through
// sequence numbers.
type Service struct {
	store     ProjectStore
	generator Generator
	sessions  SessionStore
	events    *audit.EventRepository // nil disables the audit log

	publishDelay  time.Duration
	publishDomain string

	mu       sync.Mutex
	inflight map[string]TextStream
}

type Options struct {
	Store         ProjectStore
	Generator     Generator
	Sessions      SessionStore
	Events        *audit.EventRepository
	PublishDelay  time.Duration
	PublishDomain string
}

func NewService(opt Options) *Service {
	if opt.Sessions == nil {
		opt.Sessions = NewMemorySessionStore()
	}
	if opt.PublishDelay == 0 {
		opt.PublishDelay = 2 * time.Second
	}
	if opt.PublishDomain == "" {
		opt.PublishDomain = "appforge.app"
	}
	return &Service{
		store:         opt.Store,
		generator:     opt.Generator,
		sessions:      opt.Sessions,
		events:        opt.Events,
		publishDelay:  opt.PublishDelay,
		publishDomain: opt.PublishDomain,
		inflight:      make(map[string]TextStream),
	}
}

// Sessions exposes the session store for the cleanup job.
func (s *Service) Sessions() SessionStore {
	return s.sessions
}

// GenerationRun is one asynchronous generation in progress. Fragments
// stream live; Result delivers exactly one value after the completion
// path (parse, persist, audit) has run.
type GenerationRun struct {
	ProjectID string
	Seq       int64
	Fragments <-chan string
	Result    <-chan RunResult
}

// RunResult is the terminal outcome of a generation run.
type RunResult struct {
	Project *domain.Project
	Text    string
	// Stale means a newer generation superseded this one and its output
	// was discarded.
	Stale bool
	Err   error
}

// SubmitQuestionnaireInput carries the questionnaire form: name and
// business details are required, the sketch is optional.
type SubmitQuestionnaireInput struct {
	Name            string
	BusinessDetails string
	SketchData      string
	WhiteboardImage string
}

// SubmitQuestionnaire validates the questionnaire, creates the project
// record, and starts idea generation. The project stays in status "idea";
// the idea field is committed wholesale when the stream completes.
func (s *Service) SubmitQuestionnaire(ctx context.Context, userID string, in SubmitQuestionnaireInput) (*GenerationRun, error) {
	name := strings.TrimSpace(in.Name)
	details := strings.TrimSpace(in.BusinessDetails)
	if name == "" {
		return nil, ErrNameRequired
	}
	if details == "" {
		return nil, ErrBusinessDetailsRequired
	}

	p := domain.New(userID)
	p.Name = name
	p.BusinessDetails = details

	if in.SketchData != "" {
		// Round-trip through the codec so malformed scenes are dropped
		// here instead of crashing the canvas on restore.
		scene := whiteboard.Decode(in.SketchData)
		if normalized, err := whiteboard.Encode(scene); err == nil {
			p.SketchData = normalized
		}
	}
	if in.WhiteboardImage != "" {
		if whiteboard.ValidSnapshot(in.WhiteboardImage) {
			p.WhiteboardImage = in.WhiteboardImage
		} else {
			log.Printf("[builder] dropping invalid whiteboard snapshot for user %s", userID)
		}
	}

	if _, err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.touch(ctx, p)
	s.record(ctx, p, audit.Event{Action: audit.ActionCreated, ToStatus: string(p.Status)})

	return s.startGeneration(ctx, p, generation.Request{
		Kind: generation.KindIdea,
		Idea: generation.IdeaInput{
			BusinessDetails: p.BusinessDetails,
			WhiteboardImage: p.WhiteboardImage,
		},
		Messages: []generation.Message{{Role: "user", Content: p.BusinessDetails}},
	}, s.completeIdea)
}

// RegenerateIdea re-runs idea generation for an existing project. Any
// prior in-flight generation is cancelled and its late result discarded.
func (s *Service) RegenerateIdea(ctx context.Context, p *domain.Project) (*GenerationRun, error) {
	if strings.TrimSpace(p.BusinessDetails) == "" {
		return nil, ErrBusinessDetailsRequired
	}
	return s.startGeneration(ctx, p, generation.Request{
		Kind: generation.KindIdea,
		Idea: generation.IdeaInput{
			BusinessDetails: p.BusinessDetails,
			WhiteboardImage: p.WhiteboardImage,
		},
		Messages: []generation.Message{{Role: "user", Content: p.BusinessDetails}},
	}, s.completeIdea)
}

// SaveProject writes the project: create when it has no id, update
// otherwise.
func (s *Service) SaveProject(ctx context.Context, p *domain.Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	p.NormalizeFeatures()

	if p.ID == "" {
		if _, err := s.store.Create(ctx, p); err != nil {
			return fmt.Errorf("save project: %w", err)
		}
		s.record(ctx, p, audit.Event{Action: audit.ActionCreated, ToStatus: string(p.Status)})
	} else {
		if err := s.store.Update(ctx, p.ID, map[string]interface{}{
			"name":             p.Name,
			"business_details": p.BusinessDetails,
			"app_idea":         p.AppIdea,
			"features":         p.Features,
			"sketch_data":      p.SketchData,
			"whiteboard_image": p.WhiteboardImage,
		}); err != nil {
			return fmt.Errorf("save project: %w", err)
		}
	}
	s.touch(ctx, p)
	return nil
}

// AddFeature appends a feature and persists the list if the project has
// been saved. Unsaved drafts mutate in memory only - no store write.
func (s *Service) AddFeature(ctx context.Context, p *domain.Project, feature string) error {
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return ErrFeatureRequired
	}
	p.AddFeature(feature)
	return s.persistFeatures(ctx, p)
}

// RemoveFeature removes the feature at index i, preserving the order of
// the rest. Persists only when the project has an id.
func (s *Service) RemoveFeature(ctx context.Context, p *domain.Project, i int) error {
	if err := p.RemoveFeature(i); err != nil {
		return err
	}
	return s.persistFeatures(ctx, p)
}

func (s *Service) persistFeatures(ctx context.Context, p *domain.Project) error {
	if p.ID == "" {
		// Known gap carried over: intermediate mutations on an unsaved
		// draft are silently kept in memory only.
		return nil
	}
	if err := s.store.Update(ctx, p.ID, map[string]interface{}{"features": p.Features}); err != nil {
		return fmt.Errorf("persist features: %w", err)
	}
	return nil
}

// StartBuild transitions idea -> build: requires at least one feature,
// sets status "building", persists, and starts code generation. The
// transition to preview happens when the stream completes.
func (s *Service) StartBuild(ctx context.Context, p *domain.Project) (*GenerationRun, error) {
	p.NormalizeFeatures()
	if len(p.Features) == 0 {
		return nil, ErrNoFeatures
	}

	from := p.Status
	p.Status = domain.StatusBuilding
	if p.ID != "" {
		if err := s.store.Update(ctx, p.ID, map[string]interface{}{"status": string(p.Status)}); err != nil {
			p.Status = from
			return nil, fmt.Errorf("persist build status: %w", err)
		}
	}
	s.touch(ctx, p)
	s.record(ctx, p, audit.Event{Action: audit.ActionBuildStarted, FromStatus: string(from), ToStatus: string(p.Status)})

	return s.startGeneration(ctx, p, generation.Request{
		Kind: generation.KindCode,
		Code: generation.CodeInput{
			AppIdea:  p.AppIdea,
			Features: p.Features,
		},
		Messages: []generation.Message{{Role: "user", Content: p.AppIdea}},
	}, s.completeCode)
}

// Publish simulates a deploy: a fixed delay, then a published URL
// synthesized from the slugified project name, status "published", and a
// final persist.
func (s *Service) Publish(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	select {
	case <-time.After(s.publishDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	slug := Slugify(p.Name)
	from := p.Status
	p.PublishedURL = fmt.Sprintf("https://%s/apps/%s", s.publishDomain, slug)
	p.PreviewURL = fmt.Sprintf("https://%s/preview/%s", s.publishDomain, slug)
	p.Status = domain.StatusPublished

	if p.ID != "" {
		if err := s.store.Update(ctx, p.ID, map[string]interface{}{
			"status":        string(p.Status),
			"published_url": p.PublishedURL,
			"preview_url":   p.PreviewURL,
		}); err != nil {
			return nil, fmt.Errorf("persist publish: %w", err)
		}
	}
	s.touch(ctx, p)
	s.record(ctx, p, audit.Event{Action: audit.ActionPublished, FromStatus: string(from), ToStatus: string(p.Status), Detail: p.PublishedURL})
	return p, nil
}

// Load fetches a project for a user. Ownership is enforced here so
// handlers cannot skip it.
func (s *Service) Load(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	p, err := s.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	p.NormalizeFeatures()
	return p, nil
}

// completion is the stage-specific commit run when a stream finishes.
type completion func(ctx context.Context, p *domain.Project, text string) error

// startGeneration takes the next sequence number, cancels any stream this
// project already has in flight, and spawns the forwarding goroutine.
func (s *Service) startGeneration(ctx context.Context, p *domain.Project, req generation.Request, complete completion) (*GenerationRun, error) {
	seq, err := s.sessions.NextSeq(ctx, s.seqKey(p))
	if err != nil {
		// The sequence store is an ordering aid, not a gate.
		log.Printf("[builder] sequence unavailable, continuing without staleness guard: %v", err)
		seq = 0
	}

	s.mu.Lock()
	if prev, ok := s.inflight[s.seqKey(p)]; ok && prev != nil {
		prev.Cancel()
	}
	s.mu.Unlock()

	stream, err := s.generator.Stream(ctx, req)
	if err != nil {
		s.record(ctx, p, audit.Event{Action: audit.ActionGenerateError, Detail: err.Error()})
		return nil, err
	}

	s.mu.Lock()
	s.inflight[s.seqKey(p)] = stream
	s.mu.Unlock()

	fragments := make(chan string, 16)
	result := make(chan RunResult, 1)
	go s.forward(p, seq, stream, fragments, result, complete)

	return &GenerationRun{
		ProjectID: p.ID,
		Seq:       seq,
		Fragments: fragments,
		Result:    result,
	}, nil
}

// forward relays fragments to the caller while accumulating the full
// text, then runs the completion path once the stream closes.
func (s *Service) forward(p *domain.Project, seq int64, stream TextStream, fragments chan<- string, result chan<- RunResult, complete completion) {
	defer close(fragments)

	var full strings.Builder
	for frag := range stream.Fragments() {
		full.WriteString(frag)
		fragments <- frag
	}

	// Detached context: the commit must not die with the request.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.mu.Lock()
	if s.inflight[s.seqKey(p)] == stream {
		delete(s.inflight, s.seqKey(p))
	}
	s.mu.Unlock()

	if err := stream.Err(); err != nil {
		// Partial text is discarded; the stage is left unchanged.
		log.Printf("[builder] generation failed for project %q: %v", p.ID, err)
		s.record(ctx, p, audit.Event{Action: audit.ActionGenerateError, Detail: err.Error()})
		result <- RunResult{Project: p, Err: err}
		return
	}

	if stale, err := s.isStale(ctx, p, seq); err == nil && stale {
		log.Printf("[builder] discarding stale generation (seq %d) for project %q", seq, p.ID)
		s.record(ctx, p, audit.Event{Action: audit.ActionStaleDiscard, Detail: fmt.Sprintf("seq %d", seq)})
		result <- RunResult{Project: p, Stale: true}
		return
	}

	text := full.String()
	if err := complete(ctx, p, text); err != nil {
		log.Printf("[builder] completing generation for project %q: %v", p.ID, err)
		result <- RunResult{Project: p, Text: text, Err: err}
		return
	}
	result <- RunResult{Project: p, Text: text}
}

func (s *Service) isStale(ctx context.Context, p *domain.Project, seq int64) (bool, error) {
	if seq == 0 {
		return false, nil
	}
	current, err := s.sessions.CurrentSeq(ctx, s.seqKey(p))
	if err != nil {
		return false, err
	}
	return current != seq, nil
}

// completeIdea commits a finished idea stream: the idea field is
// overwritten wholesale, the project stays in status "idea".
func (s *Service) completeIdea(ctx context.Context, p *domain.Project, text string) error {
	p.AppIdea = text
	p.Status = domain.StatusIdea
	s.record(ctx, p, audit.Event{Action: audit.ActionIdeaGenerated, ToStatus: string(p.Status)})
	s.touch(ctx, p)

	if p.ID == "" {
		return nil
	}
	if err := s.store.Update(ctx, p.ID, map[string]interface{}{
		"app_idea": p.AppIdea,
		"status":   string(p.Status),
	}); err != nil {
		return fmt.Errorf("persist idea: %w", err)
	}
	return nil
}

// completeCode commits a finished code stream: parse with fallback, set
// status "preview", persist.
func (s *Service) completeCode(ctx context.Context, p *domain.Project, text string) error {
	p.SetGeneratedCode(ParseGeneratedCode(text))
	from := p.Status
	p.Status = domain.StatusPreview
	s.record(ctx, p, audit.Event{Action: audit.ActionCodeGenerated, FromStatus: string(from), ToStatus: string(p.Status)})
	s.touch(ctx, p)

	if p.ID == "" {
		return nil
	}
	if err := s.store.Update(ctx, p.ID, map[string]interface{}{
		"generated_code": p.GeneratedCode,
		"status":         string(p.Status),
	}); err != nil {
		return fmt.Errorf("persist generated code: %w", err)
	}
	return nil
}

// seqKey keys sessions by project id; unsaved drafts share a per-user
// scratch key so regeneration before the first save still supersedes.
func (s *Service) seqKey(p *domain.Project) string {
	if p.ID != "" {
		return p.ID
	}
	return "draft:" + p.UserID
}

func (s *Service) touch(ctx context.Context, p *domain.Project) {
	if p.ID == "" {
		return
	}
	if err := s.sessions.Touch(ctx, p.ID, StageFor(p)); err != nil {
		log.Printf("[builder] touch session for project %q: %v", p.ID, err)
	}
}

func (s *Service) record(ctx context.Context, p *domain.Project, e audit.Event) {
	if s.events == nil {
		return
	}
	e.ProjectID = p.ID
	e.UserID = p.UserID
	if err := s.events.Record(ctx, e); err != nil {
		log.Printf("[builder] audit record failed: %v", err)
	}
}

// Events lists a project's audit trail; empty when the log is disabled.
func (s *Service) Events(ctx context.Context, projectID string, limit int) ([]audit.Event, error) {
	if s.events == nil {
		return []audit.Event{}, nil
	}
	return s.events.ListByProject(ctx, projectID, limit)
}

// Slugify lowercases a name and replaces whitespace runs with hyphens,
// dropping anything else that is not URL-safe.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '\t' || r == '-' || r == '_':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
