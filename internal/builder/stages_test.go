package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/appforge-labs/appforge-backend/internal/projects/domain"
)

func TestStageFor(t *testing.T) {
	saved := func(status domain.Status) *domain.Project {
		p := domain.New("u1")
		p.ID = "proj-1"
		p.Status = status
		return p
	}

	assert.Equal(t, StageQuestionnaire, StageFor(nil))
	assert.Equal(t, StageQuestionnaire, StageFor(domain.New("u1")), "unsaved drafts start at the questionnaire")

	assert.Equal(t, StageIdea, StageFor(saved(domain.StatusIdea)))
	assert.Equal(t, StageBuild, StageFor(saved(domain.StatusBuilding)))
	assert.Equal(t, StagePreview, StageFor(saved(domain.StatusPreview)))
	assert.Equal(t, StagePreview, StageFor(saved(domain.StatusPublished)), "published projects land back on preview")
}
