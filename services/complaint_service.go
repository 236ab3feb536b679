package services

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperror"
	"civicreport-be/models"
	"civicreport-be/policy"
	"civicreport-be/repository"
)

// Identity is the caller resolved by the auth middleware.
type Identity struct {
	ID   primitive.ObjectID
	Role models.Role
}

// CreateComplaintInput carries the fields of a new complaint. Latitude and
// Longitude are pointers so a missing coordinate is distinguishable from 0.
type CreateComplaintInput struct {
	Title          string
	Description    string
	Category       string
	CustomCategory string
	PhotoURL       string
	Latitude       *float64
	Longitude      *float64
}

// ComplaintService owns the complaint lifecycle: creation, role-scoped
// listing, assignment, and status transitions including worker
// self-assignment.
type ComplaintService struct {
	repo  repository.ComplaintRepository
	users repository.UserLookup
}

func NewComplaintService(repo repository.ComplaintRepository, users repository.UserLookup) *ComplaintService {
	return &ComplaintService{repo: repo, users: users}
}

// Create files a new complaint for a reporter. The complaint starts pending
// with no assignee.
func (s *ComplaintService) Create(ctx context.Context, caller Identity, in CreateComplaintInput) (*models.Complaint, error) {
	if caller.Role != models.RoleReporter {
		return nil, apperror.ErrAccessDenied
	}

	category, err := resolveCategory(in.Category, in.CustomCategory)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "Title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "Description is required")
	}
	if in.PhotoURL == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "Photo is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "Location is required")
	}

	now := time.Now()
	complaint := &models.Complaint{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Category:    category,
		PhotoURL:    in.PhotoURL,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		Status:      models.Pending,
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, complaint); err != nil {
		return nil, err
	}
	return complaint, nil
}

// resolveCategory applies the category rules: omitted falls back to the
// fixed default, "Other" demands a custom label stored verbatim.
func resolveCategory(category, customCategory string) (string, error) {
	if category == "" {
		return string(models.DefaultCategory), nil
	}
	if !models.ValidCategory(category) {
		return "", apperror.New(apperror.ErrCodeValidation, "Invalid category")
	}
	if models.ComplaintCategory(category) == models.Other {
		label := strings.TrimSpace(customCategory)
		if label == "" {
			return "", apperror.New(apperror.ErrCodeValidation, "Custom category label is required for Other")
		}
		return label, nil
	}
	return category, nil
}

// ListMine returns the caller's own complaints, newest first.
func (s *ComplaintService) ListMine(ctx context.Context, caller Identity) ([]models.Complaint, error) {
	if caller.Role != models.RoleReporter {
		return nil, apperror.ErrAccessDenied
	}
	return s.repo.FindByCreator(ctx, caller.ID)
}

// ListForRole returns the role-scoped listing: admins see everything with
// creator and assignee details resolved, workers see their own tasks plus
// unclaimed pending work, reporters are rejected.
func (s *ComplaintService) ListForRole(ctx context.Context, caller Identity) ([]models.ComplaintDetails, error) {
	scope, err := policy.ListScopeFor(caller.Role, caller.ID)
	if err != nil {
		return nil, err
	}

	var complaints []models.Complaint
	if scope.All {
		complaints, err = s.repo.FindAll(ctx)
	} else {
		complaints, err = s.repo.FindAssignedOrPending(ctx, *scope.WorkerID)
	}
	if err != nil {
		return nil, err
	}

	if !scope.ResolveIdentities {
		out := make([]models.ComplaintDetails, len(complaints))
		for i, c := range complaints {
			out[i] = models.ComplaintDetails{Complaint: c}
		}
		return out, nil
	}
	return s.withIdentities(ctx, complaints)
}

func (s *ComplaintService) withIdentities(ctx context.Context, complaints []models.Complaint) ([]models.ComplaintDetails, error) {
	ids := []primitive.ObjectID{}
	seen := map[primitive.ObjectID]bool{}
	add := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, c := range complaints {
		add(c.CreatedBy)
		if c.AssignedTo != nil {
			add(*c.AssignedTo)
		}
	}

	refs, err := s.users.Refs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.ComplaintDetails, len(complaints))
	for i, c := range complaints {
		d := models.ComplaintDetails{Complaint: c}
		if ref, ok := refs[c.CreatedBy]; ok {
			d.Creator = &ref
		}
		if c.AssignedTo != nil {
			if ref, ok := refs[*c.AssignedTo]; ok {
				d.Assignee = &ref
			}
		}
		out[i] = d
	}
	return out, nil
}

// Get fetches one complaint, enforcing per-role visibility.
func (s *ComplaintService) Get(ctx context.Context, caller Identity, id primitive.ObjectID) (*models.ComplaintDetails, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller.Role, caller.ID, c) {
		return nil, apperror.ErrAccessDenied
	}

	details, err := s.withIdentities(ctx, []models.Complaint{*c})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Assign lets an admin hand a complaint to a worker. The complaint moves
// to assigned regardless of its previous status.
func (s *ComplaintService) Assign(ctx context.Context, caller Identity, id, workerID primitive.ObjectID) (*models.Complaint, error) {
	if caller.Role != models.RoleAdmin {
		return nil, apperror.ErrAccessDenied
	}
	return s.repo.Assign(ctx, id, workerID)
}

// UpdateStatus applies newStatus per the role table. Admins update any
// complaint; a worker touching an unassigned complaint with a non-pending
// status claims it in the same atomic write, and a worker touching a
// complaint assigned to someone else is rejected. The status value itself
// is accepted verbatim for any permitted caller; resolvedAt is stamped on
// resolved and cleared otherwise.
func (s *ComplaintService) UpdateStatus(ctx context.Context, caller Identity, id primitive.ObjectID, newStatus string) (*models.Complaint, error) {
	if !models.ValidStatus(newStatus) {
		return nil, apperror.New(apperror.ErrCodeValidation, "Invalid status")
	}
	status := models.ComplaintStatus(newStatus)

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	decision, err := policy.UpdateDecisionFor(caller.Role, caller.ID, current, status)
	if err != nil {
		return nil, err
	}

	if caller.Role == models.RoleAdmin {
		return s.repo.SetStatus(ctx, id, status)
	}

	// Worker path: the conditional write revalidates the assignee so a
	// concurrent claim between the read above and this write loses cleanly
	// instead of overwriting the winner.
	updated, err := s.repo.ClaimAndSetStatus(ctx, id, caller.ID, status, decision.Claim)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		if _, err := s.repo.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.ErrNotComplaintOwner
	}
	return updated, nil
}
