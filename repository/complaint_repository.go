package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/models"
)

// ComplaintRepository is the persistent store for complaint records. All
// listing methods return newest first. The conditional write primitives
// exist so the race-prone self-assignment path is a single atomic
// read-modify-write on one document, never a read-then-write.
type ComplaintRepository interface {
	Insert(ctx context.Context, c *models.Complaint) error

	// FindByID returns apperror.ErrComplaintNotFound when id is absent.
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Complaint, error)

	FindByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]models.Complaint, error)
	FindAll(ctx context.Context) ([]models.Complaint, error)

	// FindAssignedOrPending returns the union of complaints assigned to
	// workerID and complaints still pending.
	FindAssignedOrPending(ctx context.Context, workerID primitive.ObjectID) ([]models.Complaint, error)

	// Assign sets the assignee and moves the complaint to assigned.
	Assign(ctx context.Context, id, workerID primitive.ObjectID) (*models.Complaint, error)

	// SetStatus applies status unconditionally, stamping resolvedAt when
	// status is resolved and clearing it otherwise.
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.ComplaintStatus) (*models.Complaint, error)

	// ClaimAndSetStatus applies status only while the complaint's assignee
	// is unset or already workerID; when claim is true the same write also
	// makes workerID the assignee. A nil complaint with a nil error means
	// the condition did not hold (the document is missing or claimed by
	// someone else) and nothing was written.
	ClaimAndSetStatus(ctx context.Context, id, workerID primitive.ObjectID, status models.ComplaintStatus, claim bool) (*models.Complaint, error)
}

// UserLookup resolves identity details for denormalized listings.
type UserLookup interface {
	// Refs returns the known subset of ids; absent ids are simply omitted.
	Refs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserRef, error)
}
