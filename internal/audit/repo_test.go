package audit

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO workflow_events").
		WithArgs(sqlmock.AnyArg(), "proj-1", "user-1", ActionCreated, "", "idea", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewEventRepository(db)
	err = repo.Record(context.Background(), Event{
		ProjectID: "proj-1",
		UserID:    "user-1",
		Action:    ActionCreated,
		ToStatus:  "idea",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_ExecFailureWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO workflow_events").
		WillReturnError(assert.AnError)

	repo := NewEventRepository(db)
	err = repo.Record(context.Background(), Event{ProjectID: "p", Action: ActionPublished})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record workflow event")
}

func TestListByProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "project_id", "user_id", "action", "from_status", "to_status", "detail", "created_at",
	}).
		AddRow("e2", "proj-1", "user-1", ActionPublished, "preview", "published", "https://appforge.app/apps/my-app", now).
		AddRow("e1", "proj-1", "user-1", ActionCreated, "", "idea", "", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM workflow_events").
		WithArgs("proj-1", 50).
		WillReturnRows(rows)

	repo := NewEventRepository(db)
	events, err := repo.ListByProject(context.Background(), "proj-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionPublished, events[0].Action)
	assert.Equal(t, ActionCreated, events[1].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByProject_CustomLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM workflow_events").
		WithArgs("proj-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "user_id", "action", "from_status", "to_status", "detail", "created_at",
		}))

	repo := NewEventRepository(db)
	events, err := repo.ListByProject(context.Background(), "proj-1", 5)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
