package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ComplaintCategory enum
type ComplaintCategory string

const (
	Pothole      ComplaintCategory = "Pothole"
	Garbage      ComplaintCategory = "Garbage"
	WaterLeakage ComplaintCategory = "Water Leakage"
	Streetlight  ComplaintCategory = "Streetlight"
	Other        ComplaintCategory = "Other"
)

// DefaultCategory is stored when the client omits a category selection.
const DefaultCategory = Other

// ComplaintStatus enum
type ComplaintStatus string

const (
	Pending    ComplaintStatus = "pending"
	Assigned   ComplaintStatus = "assigned"
	InProgress ComplaintStatus = "in-progress"
	Resolved   ComplaintStatus = "resolved"
)

// ValidStatus reports whether s is one of the four lifecycle statuses.
func ValidStatus(s string) bool {
	switch ComplaintStatus(s) {
	case Pending, Assigned, InProgress, Resolved:
		return true
	}
	return false
}

// ValidCategory reports whether c is one of the fixed complaint categories.
func ValidCategory(c string) bool {
	switch ComplaintCategory(c) {
	case Pothole, Garbage, WaterLeakage, Streetlight, Other:
		return true
	}
	return false
}

// Complaint represents a civic issue reported by a citizen.
// AssignedTo stays nil while the complaint is pending; ResolvedAt is set
// exactly when status becomes resolved.
type Complaint struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Category    string              `bson:"category" json:"category"`
	PhotoURL    string              `bson:"photoUrl" json:"photoUrl"`
	Latitude    float64             `bson:"latitude" json:"latitude"`
	Longitude   float64             `bson:"longitude" json:"longitude"`
	Status      ComplaintStatus     `bson:"status" json:"status"`
	CreatedBy   primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	AssignedTo  *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	ResolvedAt  *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// UserRef is the denormalized identity detail attached to admin listings.
type UserRef struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email,omitempty"`
}

// ComplaintDetails is a complaint with its creator and assignee resolved.
type ComplaintDetails struct {
	Complaint
	Creator  *UserRef `json:"creator,omitempty"`
	Assignee *UserRef `json:"assignee,omitempty"`
}
