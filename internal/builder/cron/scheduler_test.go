package cronjob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-labs/appforge-backend/internal/builder"
)

type fakeChecker struct {
	existing map[string]bool
}

func (f *fakeChecker) Exists(_ context.Context, id string) (bool, error) {
	return f.existing[id], nil
}

func TestSweepOrphanedSessions(t *testing.T) {
	ctx := context.Background()
	sessions := builder.NewMemorySessionStore()
	require.NoError(t, sessions.Touch(ctx, "alive", builder.StageIdea))
	require.NoError(t, sessions.Touch(ctx, "orphan", builder.StagePreview))

	s := NewScheduler(sessions, &fakeChecker{existing: map[string]bool{"alive": true}})
	s.SweepOrphanedSessions(ctx)

	ids, err := sessions.ListProjectIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alive"}, ids)

	kept, err := sessions.Get(ctx, "alive")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	gone, err := sessions.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
