package builder

import "github.com/appforge-labs/appforge-backend/internal/projects/domain"

// Stage is the workflow's UI position. The persisted status is the single
// canonical vocabulary; the stage is derived from it and never stored:
//
//	no record yet        -> questionnaire
//	status "idea"        -> idea
//	status "building"    -> build
//	status "preview"     -> preview
//	status "published"   -> preview (publish exits the workflow)
type Stage string

const (
	StageQuestionnaire Stage = "questionnaire"
	StageIdea          Stage = "idea"
	StageBuild         Stage = "build"
	StagePreview       Stage = "preview"
)

// StageFor derives the workflow stage for a project.
func StageFor(p *domain.Project) Stage {
	if p == nil || p.ID == "" {
		return StageQuestionnaire
	}
	switch p.Status {
	case domain.StatusBuilding:
		return StageBuild
	case domain.StatusPreview, domain.StatusPublished:
		return StagePreview
	default:
		return StageIdea
	}
}
