package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperror"
	"civicreport-be/models"
)

// MemoryComplaintRepository is a map-backed ComplaintRepository. The mutex
// is held across every conditional check-and-write, giving it the same
// per-document atomicity the Mongo implementation gets from
// FindOneAndUpdate. Used by tests and as a dev backend.
type MemoryComplaintRepository struct {
	mu         sync.Mutex
	complaints map[primitive.ObjectID]models.Complaint
	users      map[primitive.ObjectID]models.UserRef
	seq        map[primitive.ObjectID]int
	nextSeq    int
}

func NewMemoryComplaintRepository() *MemoryComplaintRepository {
	return &MemoryComplaintRepository{
		complaints: make(map[primitive.ObjectID]models.Complaint),
		users:      make(map[primitive.ObjectID]models.UserRef),
		seq:        make(map[primitive.ObjectID]int),
	}
}

// AddUser registers an identity for Refs resolution.
func (r *MemoryComplaintRepository) AddUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u.Ref()
}

func (r *MemoryComplaintRepository) Insert(ctx context.Context, c *models.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.complaints[c.ID] = *c
	r.nextSeq++
	r.seq[c.ID] = r.nextSeq
	return nil
}

func (r *MemoryComplaintRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.complaints[id]
	if !ok {
		return nil, apperror.ErrComplaintNotFound
	}
	return &c, nil
}

func (r *MemoryComplaintRepository) FindByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]models.Complaint, error) {
	return r.filter(func(c models.Complaint) bool { return c.CreatedBy == creatorID }), nil
}

func (r *MemoryComplaintRepository) FindAll(ctx context.Context) ([]models.Complaint, error) {
	return r.filter(func(models.Complaint) bool { return true }), nil
}

func (r *MemoryComplaintRepository) FindAssignedOrPending(ctx context.Context, workerID primitive.ObjectID) ([]models.Complaint, error) {
	return r.filter(func(c models.Complaint) bool {
		return c.Status == models.Pending || (c.AssignedTo != nil && *c.AssignedTo == workerID)
	}), nil
}

func (r *MemoryComplaintRepository) filter(keep func(models.Complaint) bool) []models.Complaint {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []models.Complaint{}
	for _, c := range r.complaints {
		if keep(c) {
			out = append(out, c)
		}
	}
	// Newest first, insertion order breaking createdAt ties.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out
}

func (r *MemoryComplaintRepository) Assign(ctx context.Context, id, workerID primitive.ObjectID) (*models.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.complaints[id]
	if !ok {
		return nil, apperror.ErrComplaintNotFound
	}
	c.AssignedTo = &workerID
	c.Status = models.Assigned
	c.UpdatedAt = time.Now()
	r.complaints[id] = c
	return &c, nil
}

func (r *MemoryComplaintRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.ComplaintStatus) (*models.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.complaints[id]
	if !ok {
		return nil, apperror.ErrComplaintNotFound
	}
	applyStatus(&c, status, nil)
	r.complaints[id] = c
	return &c, nil
}

func (r *MemoryComplaintRepository) ClaimAndSetStatus(ctx context.Context, id, workerID primitive.ObjectID, status models.ComplaintStatus, claim bool) (*models.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.complaints[id]
	if !ok {
		return nil, nil
	}
	if c.AssignedTo != nil && *c.AssignedTo != workerID {
		return nil, nil
	}

	var assignee *primitive.ObjectID
	if claim {
		assignee = &workerID
	}
	applyStatus(&c, status, assignee)
	r.complaints[id] = c
	return &c, nil
}

func applyStatus(c *models.Complaint, status models.ComplaintStatus, assignee *primitive.ObjectID) {
	now := time.Now()
	if assignee != nil {
		id := *assignee
		c.AssignedTo = &id
	}
	c.Status = status
	c.UpdatedAt = now
	if status == models.Resolved {
		c.ResolvedAt = &now
	} else {
		c.ResolvedAt = nil
	}
}

func (r *MemoryComplaintRepository) Refs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs := make(map[primitive.ObjectID]models.UserRef, len(ids))
	for _, id := range ids {
		if ref, ok := r.users[id]; ok {
			refs[id] = ref
		}
	}
	return refs, nil
}
