package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/notifier"
	"github.com/campushq/campus-backend/internal/repository"
)

// AssignmentService owns deadline-bound assignments: creation, the
// submission policy (lateness, resubmission budget) and manual grading
// with the frozen final score.
type AssignmentService struct {
	assignRepo *repository.AssignmentRepository
	enrollRepo *repository.EnrollmentRepository
	dispatcher notifier.Dispatcher
	log        zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	assignRepo *repository.AssignmentRepository,
	enrollRepo *repository.EnrollmentRepository,
	dispatcher notifier.Dispatcher,
	log zerolog.Logger,
) *AssignmentService {
	return &AssignmentService{
		assignRepo: assignRepo,
		enrollRepo: enrollRepo,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "assignment_service").Logger(),
	}
}

// Create publishes a new assignment and notifies enrolled participants.
func (s *AssignmentService) Create(ctx context.Context, ownerID int, req *model.CreateAssignmentRequest) (*model.Assignment, error) {
	if req.LateAllowed && req.LateDeadline == nil {
		return nil, reject(KindConstraintViolation, "late submissions require a late deadline")
	}

	maxResub := req.MaxResubmissions
	if req.AllowResubmission && maxResub == 0 {
		maxResub = 1
	}

	a := &model.Assignment{
		CourseID:           req.CourseID,
		OwnerID:            ownerID,
		Title:              req.Title,
		Instructions:       req.Instructions,
		TotalMarks:         req.TotalMarks,
		PassingMarks:       req.PassingMarks,
		DueAt:              req.DueAt,
		LateAllowed:        req.LateAllowed,
		LateDeadline:       req.LateDeadline,
		LatePenaltyPercent: req.LatePenaltyPercent,
		AllowResubmission:  req.AllowResubmission,
		MaxResubmissions:   maxResub,
	}
	if err := s.assignRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	s.notifyEnrolled(ctx, a, "New assignment",
		fmt.Sprintf("%q is due %s", a.Title, a.DueAt.Format("2006-01-02 15:04")))
	return a, nil
}

// GetByID retrieves an assignment.
func (s *AssignmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return s.assignRepo.GetByID(ctx, id)
}

// Submit hands in a participant's work. On-time work is accepted until
// the due instant; late work until the late deadline when the policy
// allows it, flagged for the penalty at grading time. Resubmission
// consumes the bounded budget.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID uuid.UUID, participantID int, req *model.SubmitAssignmentRequest) (*model.Submission, error) {
	a, err := s.assignRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollRepo.IsEnrolled(ctx, a.CourseID, participantID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, reject(KindNotEligible, "participant %d is not enrolled in this course", participantID)
	}

	now := time.Now()
	isLate := now.After(a.DueAt)
	if isLate {
		if !a.LateAllowed {
			return nil, reject(KindWindowClosed, "%q closed at %s", a.Title, a.DueAt.Format(time.RFC3339))
		}
		if a.LateDeadline != nil && now.After(*a.LateDeadline) {
			return nil, reject(KindWindowClosed, "the late window for %q closed at %s", a.Title, a.LateDeadline.Format(time.RFC3339))
		}
	}

	count, err := s.assignRepo.CountSubmissions(ctx, assignmentID, participantID)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	if count > 0 {
		if !a.AllowResubmission {
			return nil, reject(KindAlreadySubmitted, "%q does not allow resubmission", a.Title)
		}
		if count > a.MaxResubmissions {
			return nil, reject(KindAttemptsExhausted, "all %d resubmissions for %q are used", a.MaxResubmissions, a.Title)
		}
	}

	penalty := 0.0
	if isLate {
		penalty = a.LatePenaltyPercent
	}
	sub := &model.Submission{
		AssignmentID:       assignmentID,
		ParticipantID:      participantID,
		AttemptNumber:      count + 1,
		Content:            req.Content,
		SubmittedAt:        now,
		IsLate:             isLate,
		Status:             model.SubmissionSubmitted,
		LatePenaltyPercent: penalty,
	}
	if err := s.assignRepo.InsertSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}

	s.dispatcher.Dispatch(ctx, model.Notification{
		RecipientID: a.OwnerID,
		Type:        model.NotificationAssignment,
		Title:       "New submission",
		Message:     fmt.Sprintf("Participant %d submitted %q", participantID, a.Title),
		EntityType:  "submission",
		EntityID:    sub.ID.String(),
	})
	return sub, nil
}

// GetSubmission retrieves a submission with its review history.
// Participants see only their own; the assignment owner sees all.
func (s *AssignmentService) GetSubmission(ctx context.Context, submissionID uuid.UUID, actorID int) (*model.Submission, error) {
	sub, err := s.assignRepo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.ParticipantID != actorID {
		a, err := s.assignRepo.GetByID(ctx, sub.AssignmentID)
		if err != nil {
			return nil, err
		}
		if a.OwnerID != actorID {
			return nil, reject(KindNotEligible, "this submission belongs to another participant")
		}
	}
	return sub, nil
}

// Grade scores a submission. The final marks are computed once from the
// penalty flagged at submission time plus any bonus, clamped to the
// assignment's total, and frozen. Re-grading overwrites and appends to
// the review history.
func (s *AssignmentService) Grade(ctx context.Context, submissionID uuid.UUID, graderID int, req *model.GradeSubmissionRequest) (*model.Submission, error) {
	sub, err := s.assignRepo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	a, err := s.assignRepo.GetByID(ctx, sub.AssignmentID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != graderID {
		return nil, reject(KindNotEligible, "only the assignment owner can grade submissions")
	}
	if req.Marks < 0 || req.Marks > a.TotalMarks {
		return nil, reject(KindInvalidGrade, "marks must be between 0 and %g", a.TotalMarks)
	}

	now := time.Now()
	final := FinalAssignmentMarks(req.Marks, a.TotalMarks, sub.LatePenaltyPercent, req.BonusPoints, sub.IsLate)

	sub.Status = model.SubmissionGraded
	sub.MarksObtained = &req.Marks
	sub.Feedback = req.Feedback
	sub.GradedBy = &graderID
	sub.GradedAt = &now
	sub.BonusPoints = req.BonusPoints
	sub.FinalMarks = &final

	review := model.SubmissionReview{
		ReviewedBy: graderID,
		ReviewedAt: now,
		Comments:   req.Feedback,
		MarksGiven: req.Marks,
	}
	if err := s.assignRepo.Grade(ctx, sub, review); err != nil {
		return nil, fmt.Errorf("grade submission: %w", err)
	}
	sub.Reviews = append(sub.Reviews, review)

	s.dispatcher.Dispatch(ctx, model.Notification{
		RecipientID: sub.ParticipantID,
		Type:        model.NotificationGrade,
		Title:       "Assignment graded",
		Message:     fmt.Sprintf("%q was graded: %.2f/%.2f", a.Title, final, a.TotalMarks),
		EntityType:  "submission",
		EntityID:    sub.ID.String(),
	})
	return sub, nil
}

// Submissions lists an assignment's submissions with the per-status
// counters, owner only, optionally filtered by status.
func (s *AssignmentService) Submissions(ctx context.Context, assignmentID uuid.UUID, actorID int, status *model.SubmissionStatus) ([]repository.SubmissionSummary, repository.SubmissionStats, error) {
	var stats repository.SubmissionStats

	a, err := s.assignRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, stats, err
	}
	if a.OwnerID != actorID {
		return nil, stats, reject(KindNotEligible, "only the assignment owner can list submissions")
	}

	subs, err := s.assignRepo.ListByAssignment(ctx, assignmentID, status)
	if err != nil {
		return nil, stats, err
	}
	stats, err = s.assignRepo.StatsByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, stats, err
	}
	return subs, stats, nil
}

func (s *AssignmentService) notifyEnrolled(ctx context.Context, a *model.Assignment, title, message string) {
	ids, err := s.enrollRepo.ListParticipantIDs(ctx, a.CourseID)
	if err != nil {
		s.log.Error().Err(err).Str("course_id", a.CourseID.String()).Msg("List enrolled for notification failed")
		return
	}
	for _, id := range ids {
		s.dispatcher.Dispatch(ctx, model.Notification{
			RecipientID: id,
			Type:        model.NotificationAssignment,
			Title:       title,
			Message:     message,
			EntityType:  "assignment",
			EntityID:    a.ID.String(),
		})
	}
}
