package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"palace-backend/internal/models"
	"palace-backend/internal/repository"
	"palace-backend/internal/services"
)

type Pool struct {
	redis        *redis.Client
	analysis     *services.AnalysisService
	jobRepo      *repository.JobRepo
	sessionRepo  *repository.SessionRepo
	practiceRepo *repository.PracticeRepo
	workerCount  int
	stopChan     chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	analysis *services.AnalysisService,
	jobRepo *repository.JobRepo,
	sessionRepo *repository.SessionRepo,
	practiceRepo *repository.PracticeRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:        redisClient,
		analysis:     analysis,
		jobRepo:      jobRepo,
		sessionRepo:  sessionRepo,
		practiceRepo: practiceRepo,
		workerCount:  workerCount,
		stopChan:     make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{
		"queue:session-summary",
		"queue:practice-feedback",
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		// Parse job
		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		// Update status
		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")

		// Publish status update
		p.analysis.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				Step:     1,
				StepName: stepName(job.Type),
			},
		})

		// Execute handler
		var processErr error
		switch job.Type {
		case "session-summary":
			processErr = p.processSessionSummary(ctx, &job)
		case "practice-feedback":
			processErr = p.processPracticeFeedback(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// processSessionSummary assembles the saved session with its children and
// stores the generated summary on the session row.
func (p *Pool) processSessionSummary(ctx context.Context, job *models.Job) error {
	session, err := p.sessionRepo.GetSession(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if session.VerseVisits, err = p.sessionRepo.ListVerseVisits(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to list verse visits: %w", err)
	}
	if session.Notes, err = p.sessionRepo.ListNotes(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	if session.PrincipleInteractions, err = p.sessionRepo.ListPrincipleInteractions(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to list principle interactions: %w", err)
	}

	summary, err := p.analysis.SessionSummary(ctx, session)
	if err != nil {
		return err
	}

	now := time.Now()
	return p.sessionRepo.UpdateSession(ctx, session.ID, models.SessionUpdate{
		AISummary:            &summary,
		AISummaryGeneratedAt: &now,
	})
}

// processPracticeFeedback scores one recitation attempt against its verse.
func (p *Pool) processPracticeFeedback(ctx context.Context, job *models.Job) error {
	attempt, err := p.practiceRepo.GetAttempt(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get practice attempt: %w", err)
	}

	verse, err := p.practiceRepo.GetVerse(ctx, attempt.VerseID)
	if err != nil {
		return fmt.Errorf("failed to get memory verse: %w", err)
	}

	feedback, err := p.analysis.VerseFeedback(ctx, models.PracticeFeedbackRequest{
		VerseRef:   verse.Reference,
		VerseText:  verse.Text,
		Submission: attempt.Submission,
	})
	if err != nil {
		return err
	}

	return p.practiceRepo.SetFeedback(ctx, attempt.ID, feedback)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")

	p.analysis.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: getResultType(job.Type),
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries && retryable(err) {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), QueueName(job.Type), string(jobBytes))
		})
		return
	}

	// Max retries reached or not worth retrying
	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.SetError(ctx, job.ID, errMsg)

	p.analysis.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

// retryable excludes failures that re-running cannot fix: a malformed model
// response can be retried, exhausted quota cannot.
func retryable(err error) bool {
	var payErr *services.PaymentRequiredError
	return !errors.As(err, &payErr)
}

// QueueName maps a job type to its redis list.
func QueueName(jobType string) string {
	switch jobType {
	case "session-summary":
		return "queue:session-summary"
	case "practice-feedback":
		return "queue:practice-feedback"
	default:
		return "queue:" + jobType
	}
}

func stepName(jobType string) string {
	switch jobType {
	case "session-summary":
		return "Summarizing session"
	case "practice-feedback":
		return "Reviewing recitation"
	default:
		return "Processing"
	}
}

func getResultType(jobType string) string {
	switch jobType {
	case "session-summary":
		return "session"
	case "practice-feedback":
		return "practice_attempt"
	default:
		return "job"
	}
}
