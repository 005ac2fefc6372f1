package cronjob

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/appforge-labs/appforge-backend/internal/builder"
)

// ProjectChecker reports whether a project record still exists.
type ProjectChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Scheduler sweeps builder sessions whose project was deleted from the
// dashboard. Session TTLs cover abandonment; this covers deletion.
type Scheduler struct {
	sessions builder.SessionStore
	projects ProjectChecker
	cron     *cron.Cron
}

func NewScheduler(sessions builder.SessionStore, projects ProjectChecker) *Scheduler {
	return &Scheduler{
		sessions: sessions,
		projects: projects,
		cron:     cron.New(),
	}
}

// Start registers the nightly sweep and starts the cron loop.
func (s *Scheduler) Start() {
	_, err := s.cron.AddFunc("0 0 * * *", func() {
		s.SweepOrphanedSessions(context.Background())
	})
	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Println("Cron scheduler started (sweeping orphaned builder sessions nightly at 12:00AM)")
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SweepOrphanedSessions deletes sessions for projects that no longer
// exist in the record store.
func (s *Scheduler) SweepOrphanedSessions(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	ids, err := s.sessions.ListProjectIDs(ctx)
	if err != nil {
		log.Printf("[cron] listing builder sessions: %v", err)
		return
	}

	removed := 0
	for _, id := range ids {
		exists, err := s.projects.Exists(ctx, id)
		if err != nil {
			log.Printf("[cron] checking project %q: %v", id, err)
			continue
		}
		if exists {
			continue
		}
		if err := s.sessions.Delete(ctx, id); err != nil {
			log.Printf("[cron] deleting session %q: %v", id, err)
			continue
		}
		removed++
	}

	log.Printf("[cron] session sweep complete: %d scanned, %d removed", len(ids), removed)
}
