package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicreport-be/apperror"
	"civicreport-be/models"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

// MongoComplaintRepository stores complaints in a MongoDB collection.
// Single-document update atomicity is what guarantees at most one worker
// claims a complaint from the unassigned state.
type MongoComplaintRepository struct {
	col *mongo.Collection
}

func NewMongoComplaintRepository(col *mongo.Collection) *MongoComplaintRepository {
	return &MongoComplaintRepository{col: col}
}

func (r *MongoComplaintRepository) Insert(ctx context.Context, c *models.Complaint) error {
	_, err := r.col.InsertOne(ctx, c)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to create complaint")
	}
	return nil
}

func (r *MongoComplaintRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Complaint, error) {
	var c models.Complaint
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperror.ErrComplaintNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to retrieve complaint")
	}
	return &c, nil
}

func (r *MongoComplaintRepository) FindByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]models.Complaint, error) {
	return r.find(ctx, bson.M{"createdBy": creatorID})
}

func (r *MongoComplaintRepository) FindAll(ctx context.Context) ([]models.Complaint, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoComplaintRepository) FindAssignedOrPending(ctx context.Context, workerID primitive.ObjectID) ([]models.Complaint, error) {
	return r.find(ctx, bson.M{"$or": []bson.M{
		{"assignedTo": workerID},
		{"status": models.Pending},
	}})
}

func (r *MongoComplaintRepository) find(ctx context.Context, filter bson.M) ([]models.Complaint, error) {
	cursor, err := r.col.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to retrieve complaints")
	}
	defer cursor.Close(ctx)

	complaints := []models.Complaint{}
	if err := cursor.All(ctx, &complaints); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to decode complaints")
	}
	return complaints, nil
}

func (r *MongoComplaintRepository) Assign(ctx context.Context, id, workerID primitive.ObjectID) (*models.Complaint, error) {
	update := bson.M{"$set": bson.M{
		"assignedTo": workerID,
		"status":     models.Assigned,
		"updatedAt":  time.Now(),
	}}

	var c models.Complaint
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperror.ErrComplaintNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to assign complaint")
	}
	return &c, nil
}

func (r *MongoComplaintRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.ComplaintStatus) (*models.Complaint, error) {
	var c models.Complaint
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, statusUpdate(status, nil),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperror.ErrComplaintNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to update complaint")
	}
	return &c, nil
}

func (r *MongoComplaintRepository) ClaimAndSetStatus(ctx context.Context, id, workerID primitive.ObjectID, status models.ComplaintStatus, claim bool) (*models.Complaint, error) {
	// The filter pins the assignee to unset-or-caller, so a concurrent
	// claim by another worker makes this match nothing instead of
	// overwriting them.
	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{"assignedTo": nil},
			{"assignedTo": bson.M{"$exists": false}},
			{"assignedTo": workerID},
		},
	}

	var assignee *primitive.ObjectID
	if claim {
		assignee = &workerID
	}

	var c models.Complaint
	err := r.col.FindOneAndUpdate(ctx, filter, statusUpdate(status, assignee),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to update complaint")
	}
	return &c, nil
}

// statusUpdate builds the update document keeping the resolvedAt invariant:
// stamped when entering resolved, cleared when leaving it.
func statusUpdate(status models.ComplaintStatus, assignee *primitive.ObjectID) bson.M {
	set := bson.M{
		"status":    status,
		"updatedAt": time.Now(),
	}
	if assignee != nil {
		set["assignedTo"] = *assignee
	}

	update := bson.M{"$set": set}
	if status == models.Resolved {
		set["resolvedAt"] = time.Now()
	} else {
		update["$unset"] = bson.M{"resolvedAt": ""}
	}
	return update
}

// MongoUserLookup resolves user references from the users collection.
type MongoUserLookup struct {
	col *mongo.Collection
}

func NewMongoUserLookup(col *mongo.Collection) *MongoUserLookup {
	return &MongoUserLookup{col: col}
}

func (l *MongoUserLookup) Refs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserRef, error) {
	refs := make(map[primitive.ObjectID]models.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	cursor, err := l.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to retrieve users")
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to decode users")
	}
	for _, u := range users {
		refs[u.ID] = *u.Ref()
	}
	return refs, nil
}
