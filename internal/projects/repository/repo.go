package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/appforge-labs/appforge-backend/internal/projects/domain"
)

const collectionName = "projects"

// ProjectRepository persists projects in the Firestore "projects"
// collection. Timestamps are stamped server-side; there are no
// transactions and last write wins.
type ProjectRepository struct {
	client *firestore.Client
}

func NewProjectRepository(client *firestore.Client) *ProjectRepository {
	return &ProjectRepository{client: client}
}

func (r *ProjectRepository) col() *firestore.CollectionRef {
	return r.client.Collection(collectionName)
}

// Create writes a new project document and returns the generated id.
// created_at and updated_at are server timestamps.
func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project) (string, error) {
	if p.UserID == "" {
		return "", fmt.Errorf("user id required")
	}
	p.NormalizeFeatures()

	data := toDoc(p)
	data["created_at"] = firestore.ServerTimestamp
	data["updated_at"] = firestore.ServerTimestamp

	ref, _, err := r.col().Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}
	p.ID = ref.ID
	return ref.ID, nil
}

// Update merges a partial record into the document and stamps updated_at.
func (r *ProjectRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if id == "" {
		return domain.ErrNoID
	}

	updates := make([]firestore.Update, 0, len(fields)+1)
	for k, v := range fields {
		if k == "generated_code" {
			v = encodeCode(v)
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	updates = append(updates, firestore.Update{Path: "updated_at", Value: firestore.ServerTimestamp})

	if _, err := r.col().Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// Get reads a single project by id.
func (r *ProjectRepository) Get(ctx context.Context, id string) (*domain.Project, error) {
	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return fromDoc(snap)
}

// ListByUser returns the user's projects, newest first.
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Project, error) {
	iter := r.col().
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	out := make([]*domain.Project, 0, 16)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		p, err := fromDoc(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes a project document permanently. No soft delete, no
// cascade.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrNoID
	}
	if _, err := r.col().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// Exists reports whether a project document is present.
func (r *ProjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// toDoc flattens a project into Firestore fields. generated_code is
// stored as a JSON string, matching how documents written by earlier
// clients are shaped.
func toDoc(p *domain.Project) map[string]interface{} {
	return map[string]interface{}{
		"user_id":          p.UserID,
		"name":             p.Name,
		"business_details": p.BusinessDetails,
		"app_idea":         p.AppIdea,
		"features":         p.Features,
		"status":           string(p.Status),
		"sketch_data":      p.SketchData,
		"whiteboard_image": p.WhiteboardImage,
		"generated_code":   encodeCode(p.GeneratedCode),
		"published_url":    p.PublishedURL,
		"preview_url":      p.PreviewURL,
	}
}

func fromDoc(snap *firestore.DocumentSnapshot) (*domain.Project, error) {
	data := snap.Data()

	p := &domain.Project{
		ID:              snap.Ref.ID,
		UserID:          str(data["user_id"]),
		Name:            str(data["name"]),
		BusinessDetails: str(data["business_details"]),
		AppIdea:         str(data["app_idea"]),
		Status:          domain.Status(str(data["status"])),
		SketchData:      str(data["sketch_data"]),
		WhiteboardImage: str(data["whiteboard_image"]),
		PublishedURL:    str(data["published_url"]),
		PreviewURL:      str(data["preview_url"]),
		CreatedAt:       stamp(data["created_at"]),
		UpdatedAt:       stamp(data["updated_at"]),
	}

	if raw, ok := data["features"].([]interface{}); ok {
		p.Features = make([]string, 0, len(raw))
		for _, f := range raw {
			p.Features = append(p.Features, str(f))
		}
	}
	p.NormalizeFeatures()

	p.SetGeneratedCode(DecodeCode(data["generated_code"]))
	return p, nil
}

// encodeCode serializes a code mapping to a JSON string for storage.
// Strings pass through untouched.
func encodeCode(v interface{}) string {
	switch code := v.(type) {
	case nil:
		return ""
	case string:
		return code
	case map[string]string:
		if len(code) == 0 {
			return ""
		}
		b, err := json.Marshal(code)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		b, err := json.Marshal(code)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// DecodeCode turns a stored generated_code field back into a mapping.
// Older documents may hold a raw string that is not valid JSON; those are
// wrapped as a single synthetic file.
func DecodeCode(v interface{}) map[string]string {
	s, ok := v.(string)
	if !ok || s == "" {
		return map[string]string{}
	}
	var files map[string]string
	if err := json.Unmarshal([]byte(s), &files); err != nil {
		return map[string]string{"app.js": s}
	}
	if files == nil {
		files = map[string]string{}
	}
	return files
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// stamp formats a Firestore server timestamp for display.
func stamp(v interface{}) string {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
