package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campushq/campus-backend/internal/config"
	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/notifier"
	"github.com/campushq/campus-backend/internal/repository"
)

// AttemptService owns the attempt lifecycle: start, timed submission
// with auto-grading, manual subjective grading and advisory violation
// logging.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	examRepo    *repository.ExamRepository
	enrollRepo  *repository.EnrollmentRepository
	dispatcher  notifier.Dispatcher
	rdb         *redis.Client
	retries     int
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService. retries bounds the
// attempt-numbering loop under concurrent starts.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	examRepo *repository.ExamRepository,
	enrollRepo *repository.EnrollmentRepository,
	dispatcher notifier.Dispatcher,
	rdb *redis.Client,
	retries int,
	log zerolog.Logger,
) *AttemptService {
	if retries < 1 {
		retries = 1
	}
	return &AttemptService{
		attemptRepo: attemptRepo,
		examRepo:    examRepo,
		enrollRepo:  enrollRepo,
		dispatcher:  dispatcher,
		rdb:         rdb,
		retries:     retries,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start opens a new attempt for the participant. The exam must be
// active (owner-begun and inside its window) and the participant's
// budget must not be spent. Attempt numbers are assigned gaplessly:
// concurrent starters recount and retry on a duplicate number.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, participantID int, ip, userAgent string) (*model.Attempt, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollRepo.IsEnrolled(ctx, exam.CourseID, participantID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, reject(KindNotEligible, "participant %d is not enrolled in this course", participantID)
	}

	now := time.Now()
	if !exam.ActiveAt(now) {
		return nil, reject(KindWindowClosed, "exam %q is not accepting attempts", exam.Title)
	}

	for i := 0; i < s.retries; i++ {
		count, err := s.attemptRepo.CountByExamAndParticipant(ctx, examID, participantID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		if count >= exam.MaxAttempts {
			return nil, reject(KindAttemptsExhausted, "all %d attempts for %q are used", exam.MaxAttempts, exam.Title)
		}

		attempt := &model.Attempt{
			ExamID:        examID,
			ParticipantID: participantID,
			AttemptNumber: count + 1,
			StartedAt:     now,
			TotalMarks:    exam.TotalMarks,
			IP:            ip,
			UserAgent:     userAgent,
		}
		err = s.attemptRepo.Insert(ctx, attempt)
		if errors.Is(err, repository.ErrDuplicateAttemptNumber) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert attempt: %w", err)
		}
		s.publishActivity(ctx, examID, attempt, "attempt_started")
		return attempt, nil
	}
	return nil, reject(KindConflictingUpdate, "attempt numbering is contended, retry")
}

// Get retrieves an attempt. Participants see only their own; the exam
// owner sees all of them.
func (s *AttemptService) Get(ctx context.Context, attemptID uuid.UUID, actorID int) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.ParticipantID != actorID {
		exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
		if err != nil {
			return nil, err
		}
		if exam.OwnerID != actorID {
			return nil, reject(KindNotEligible, "this attempt belongs to another participant")
		}
	}
	return attempt, nil
}

// Submit finalizes an attempt: objective answers are auto-graded,
// subjective ones wait for a grader, and the attempt becomes immutable
// except for grading fields. A second submit of the same attempt is
// rejected without changing anything.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, participantID int, req *model.SubmitAttemptRequest) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.ParticipantID != participantID {
		return nil, reject(KindNotEligible, "this attempt belongs to another participant")
	}
	if attempt.IsSubmitted {
		return nil, reject(KindAlreadySubmitted, "attempt %d was already submitted", attempt.AttemptNumber)
	}

	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := s.examRepo.GetQuestions(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	now := time.Now()
	answers, needsGrading := ScoreAnswers(questions, req.Answers)
	attempt.Answers = answers
	attempt.MarksObtained, attempt.Percentage, attempt.Passed =
		AggregateScore(answers, exam.TotalMarks, exam.PassingMarks)
	attempt.SubmittedAt = &now
	attempt.TimeSpentSeconds = int(now.Sub(attempt.StartedAt).Seconds())
	attempt.IsSubmitted = true
	attempt.IsGraded = !needsGrading

	if err := s.attemptRepo.Submit(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptAlreadySubmitted) {
			return nil, reject(KindAlreadySubmitted, "attempt %d was already submitted", attempt.AttemptNumber)
		}
		return nil, err
	}

	if err := s.examRepo.RecomputeStats(ctx, attempt.ExamID); err != nil {
		return nil, err
	}
	s.publishActivity(ctx, attempt.ExamID, attempt, "attempt_submitted")

	if exam.ShowResultsImmediately && attempt.IsGraded {
		s.dispatcher.Dispatch(ctx, model.Notification{
			RecipientID: participantID,
			Type:        model.NotificationGrade,
			Title:       "Exam result",
			Message:     fmt.Sprintf("You scored %.2f/%.2f on %q", attempt.MarksObtained, attempt.TotalMarks, exam.Title),
			EntityType:  "attempt",
			EntityID:    attempt.ID.String(),
		})
	}
	return attempt, nil
}

// Grade applies a grader's marks to the subjective answers of a
// submitted attempt and finalizes the aggregate. Re-grading overwrites.
func (s *AttemptService) Grade(ctx context.Context, attemptID uuid.UUID, graderID int, req *model.GradeAttemptRequest) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsSubmitted {
		return nil, reject(KindNotEligible, "attempt %d has not been submitted yet", attempt.AttemptNumber)
	}

	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != graderID {
		return nil, reject(KindNotEligible, "only the exam owner can grade attempts")
	}
	questions, err := s.examRepo.GetQuestions(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	answers, err := ApplyManualGrades(questions, attempt.Answers, req.GradedAnswers)
	if err != nil {
		return nil, err
	}
	attempt.Answers = answers
	attempt.MarksObtained, attempt.Percentage, attempt.Passed =
		AggregateScore(answers, exam.TotalMarks, exam.PassingMarks)
	attempt.IsGraded = true
	attempt.GradedBy = &graderID

	now := time.Now()
	if err := s.attemptRepo.UpdateGrading(ctx, attempt, now); err != nil {
		return nil, err
	}
	attempt.GradedAt = &now

	if err := s.examRepo.RecomputeStats(ctx, attempt.ExamID); err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, model.Notification{
		RecipientID: attempt.ParticipantID,
		Type:        model.NotificationGrade,
		Title:       "Exam graded",
		Message:     fmt.Sprintf("Your attempt on %q was graded: %.2f/%.2f", exam.Title, attempt.MarksObtained, attempt.TotalMarks),
		EntityType:  "attempt",
		EntityID:    attempt.ID.String(),
	})
	return attempt, nil
}

// RecordViolation logs an advisory integrity event against an attempt.
// The event is queued for batched persistence and never blocks or
// terminates the attempt; tab switches also bump the live counter.
func (s *AttemptService) RecordViolation(ctx context.Context, attemptID uuid.UUID, participantID int, req *model.RecordViolationRequest) error {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.ParticipantID != participantID {
		return reject(KindNotEligible, "this attempt belongs to another participant")
	}

	vType := model.ViolationType(req.Type)
	if vType == model.ViolationTabSwitch {
		if err := s.attemptRepo.IncrementTabSwitches(ctx, attemptID); err != nil {
			s.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Increment tab switches failed")
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"attempt_id":  attemptID.String(),
		"type":        vType,
		"detail":      req.Detail,
		"occurred_at": time.Now().Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue violation: %w", err)
	}
	s.publishActivity(ctx, attempt.ExamID, attempt, "violation")
	return nil
}

// publishActivity streams attempt events to the exam's live monitor
// channel, best effort.
func (s *AttemptService) publishActivity(ctx context.Context, examID uuid.UUID, attempt *model.Attempt, event string) {
	if s.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event":          event,
		"exam_id":        examID.String(),
		"attempt_id":     attempt.ID.String(),
		"participant_id": attempt.ParticipantID,
		"attempt_number": attempt.AttemptNumber,
	})
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Publish attempt event failed")
	}
}
