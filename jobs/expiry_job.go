package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultExpiryBatch = 500

// SessionExpirer is satisfied by services.SessionService.
type SessionExpirer interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// ExpiryJob closes out in-progress sessions whose time ran out without a
// submission. Reads and submissions already do this lazily; the job keeps
// history and the database tidy between visits.
type ExpiryJob struct {
	Sessions  SessionExpirer
	BatchSize int
	Timeout   time.Duration
}

func (j ExpiryJob) Run() {
	log.Println("Running job: ExpireOverdueSessions...")

	batch := j.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	total := 0
	for {
		n, err := j.Sessions.ExpireOverdue(ctx, batch)
		total += n
		if err != nil {
			log.Printf("Error expiring overdue sessions: %v", err)
			break
		}
		if n < batch {
			break
		}
	}

	if total == 0 {
		log.Println("No overdue sessions found.")
		return
	}
	log.Printf("Marked %d session(s) as abandoned.", total)
}

func ScheduleExpiry(c *cron.Cron, spec string, job ExpiryJob) (cron.EntryID, error) {
	return c.AddJob(spec, job)
}
