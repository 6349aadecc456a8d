package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/notifier"
	"github.com/campushq/campus-backend/internal/repository"
)

// ExamService owns the exam lifecycle: creation with its question set,
// the owner-driven status transitions and the results view.
type ExamService struct {
	examRepo    *repository.ExamRepository
	attemptRepo *repository.AttemptRepository
	enrollRepo  *repository.EnrollmentRepository
	dispatcher  notifier.Dispatcher
	log         zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	attemptRepo *repository.AttemptRepository,
	enrollRepo *repository.EnrollmentRepository,
	dispatcher notifier.Dispatcher,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:    examRepo,
		attemptRepo: attemptRepo,
		enrollRepo:  enrollRepo,
		dispatcher:  dispatcher,
		log:         log.With().Str("component", "exam_service").Logger(),
	}
}

// Create schedules a new exam with its questions and notifies every
// enrolled participant. Objective questions must designate exactly one
// correct option.
func (s *ExamService) Create(ctx context.Context, ownerID int, req *model.CreateExamRequest) (*model.Exam, error) {
	questions := make([]model.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		qType := model.QuestionType(q.Type)
		if qType.Objective() {
			correct := 0
			for _, opt := range q.Options {
				if opt.IsCorrect {
					correct++
				}
			}
			if len(q.Options) < 2 || correct != 1 {
				return nil, reject(KindConstraintViolation, "question %d must have at least two options with exactly one marked correct", i+1)
			}
		}
		orderNum := q.OrderNum
		if orderNum == 0 {
			orderNum = i + 1
		}
		questions = append(questions, model.Question{
			Text:     q.Text,
			Type:     qType,
			Options:  q.Options,
			Marks:    q.Marks,
			OrderNum: orderNum,
		})
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	exam := &model.Exam{
		CourseID:               req.CourseID,
		OwnerID:                ownerID,
		Title:                  req.Title,
		Description:            req.Description,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		DurationMinutes:        req.DurationMinutes,
		TotalMarks:             req.TotalMarks,
		PassingMarks:           req.PassingMarks,
		MaxAttempts:            maxAttempts,
		ShowResultsImmediately: req.ShowResultsImmediately,
		Status:                 model.ExamStatusScheduled,
	}
	if err := s.examRepo.Create(ctx, exam, questions); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.notifyEnrolled(ctx, exam, "Exam scheduled",
		fmt.Sprintf("%q is scheduled for %s", exam.Title, exam.StartTime.Format("2006-01-02 15:04")))
	return exam, nil
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// Questions returns the exam's question set. When forParticipant is
// set, correct-option flags are stripped so the answer key never
// reaches a test taker.
func (s *ExamService) Questions(ctx context.Context, examID uuid.UUID, forParticipant bool) ([]model.Question, error) {
	questions, err := s.examRepo.GetQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if forParticipant {
		for i := range questions {
			for j := range questions[i].Options {
				questions[i].Options[j].IsCorrect = false
			}
		}
	}
	return questions, nil
}

// Begin moves a scheduled exam to ONGOING. Only an explicit owner call
// activates an exam; reaching the start time alone never does.
func (s *ExamService) Begin(ctx context.Context, examID uuid.UUID, actorID int) (*model.Exam, error) {
	return s.transition(ctx, examID, actorID, model.ExamStatusScheduled, model.ExamStatusOngoing)
}

// End moves an ongoing exam to COMPLETED.
func (s *ExamService) End(ctx context.Context, examID uuid.UUID, actorID int) (*model.Exam, error) {
	return s.transition(ctx, examID, actorID, model.ExamStatusOngoing, model.ExamStatusCompleted)
}

// Cancel voids a scheduled or ongoing exam.
func (s *ExamService) Cancel(ctx context.Context, examID uuid.UUID, actorID int) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != actorID {
		return nil, reject(KindNotEligible, "only the exam owner can change its status")
	}
	if exam.Status == model.ExamStatusCancelled {
		return exam, nil
	}
	if !exam.Status.CanTransitionTo(model.ExamStatusCancelled) {
		return nil, reject(KindInvalidTransition, "exam in state %s cannot be cancelled", exam.Status)
	}
	ok, err := s.examRepo.TransitionStatus(ctx, examID, exam.Status, model.ExamStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("transition status: %w", err)
	}
	if !ok {
		return nil, reject(KindInvalidTransition, "exam state changed concurrently, retry")
	}
	return s.examRepo.GetByID(ctx, examID)
}

func (s *ExamService) transition(ctx context.Context, examID uuid.UUID, actorID int, from, to model.ExamStatus) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != actorID {
		return nil, reject(KindNotEligible, "only the exam owner can change its status")
	}
	if exam.Status == to {
		return exam, nil
	}
	if exam.Status != from || !from.CanTransitionTo(to) {
		return nil, reject(KindInvalidTransition, "exam in state %s cannot move to %s", exam.Status, to)
	}
	ok, err := s.examRepo.TransitionStatus(ctx, examID, from, to)
	if err != nil {
		return nil, fmt.Errorf("transition status: %w", err)
	}
	if !ok {
		return nil, reject(KindInvalidTransition, "exam state changed concurrently, retry")
	}
	s.log.Info().Str("exam_id", examID.String()).Str("from", string(from)).Str("to", string(to)).Msg("Exam status changed")
	return s.examRepo.GetByID(ctx, examID)
}

// Results returns the exam with its derived aggregates and the
// submitted attempt summaries, owner only.
func (s *ExamService) Results(ctx context.Context, examID uuid.UUID, actorID int) (*model.Exam, []repository.AttemptSummary, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if exam.OwnerID != actorID {
		return nil, nil, reject(KindNotEligible, "only the exam owner can view results")
	}
	attempts, err := s.attemptRepo.ListSubmittedByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}
	return exam, attempts, nil
}

func (s *ExamService) notifyEnrolled(ctx context.Context, exam *model.Exam, title, message string) {
	ids, err := s.enrollRepo.ListParticipantIDs(ctx, exam.CourseID)
	if err != nil {
		s.log.Error().Err(err).Str("course_id", exam.CourseID.String()).Msg("List enrolled for notification failed")
		return
	}
	for _, id := range ids {
		s.dispatcher.Dispatch(ctx, model.Notification{
			RecipientID: id,
			Type:        model.NotificationExam,
			Title:       title,
			Message:     message,
			EntityType:  "exam",
			EntityID:    exam.ID.String(),
		})
	}
}
