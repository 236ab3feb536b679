// Package policy holds the role table governing complaint visibility and
// status updates. Each rule is looked up once per request by role, keeping
// the authorization rules in one auditable place instead of branching
// inside the lifecycle operations.
package policy

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperror"
	"civicreport-be/models"
)

// ListScope describes which complaints a caller may list and whether the
// listing carries denormalized creator/assignee details.
type ListScope struct {
	// All is set for admins: every complaint, with identities resolved.
	All bool
	// WorkerID, when set, scopes the listing to complaints assigned to
	// that worker plus every pending complaint. The union matters: a
	// worker has to see unclaimed work alongside their own tasks.
	WorkerID *primitive.ObjectID
	// ResolveIdentities asks the repository for creator/assignee details.
	ResolveIdentities bool
}

var listRules = map[models.Role]func(callerID primitive.ObjectID) (ListScope, error){
	models.RoleAdmin: func(primitive.ObjectID) (ListScope, error) {
		return ListScope{All: true, ResolveIdentities: true}, nil
	},
	models.RoleWorker: func(callerID primitive.ObjectID) (ListScope, error) {
		return ListScope{WorkerID: &callerID}, nil
	},
	models.RoleReporter: func(primitive.ObjectID) (ListScope, error) {
		// Reporters list only their own complaints through ListMine.
		return ListScope{}, apperror.ErrAccessDenied
	},
}

// ListScopeFor resolves the listing rule for a role.
func ListScopeFor(role models.Role, callerID primitive.ObjectID) (ListScope, error) {
	rule, ok := listRules[role]
	if !ok {
		return ListScope{}, apperror.ErrAccessDenied
	}
	return rule(callerID)
}

// UpdateDecision is the outcome of evaluating a status update against the
// role table: either the caller is rejected, or the update proceeds,
// optionally claiming the complaint for the caller first.
type UpdateDecision struct {
	// Claim means the caller must become the assignee as part of the same
	// atomic write that applies the status (worker self-assignment).
	Claim bool
}

var updateRules = map[models.Role]func(callerID primitive.ObjectID, c *models.Complaint, newStatus models.ComplaintStatus) (UpdateDecision, error){
	models.RoleAdmin: func(primitive.ObjectID, *models.Complaint, models.ComplaintStatus) (UpdateDecision, error) {
		return UpdateDecision{}, nil
	},
	models.RoleWorker: func(callerID primitive.ObjectID, c *models.Complaint, newStatus models.ComplaintStatus) (UpdateDecision, error) {
		if c.AssignedTo != nil && *c.AssignedTo != callerID {
			return UpdateDecision{}, apperror.ErrNotComplaintOwner
		}
		// Self-assignment on first touch, skipped only for pending.
		if c.AssignedTo == nil && newStatus != models.Pending {
			return UpdateDecision{Claim: true}, nil
		}
		return UpdateDecision{}, nil
	},
	models.RoleReporter: func(primitive.ObjectID, *models.Complaint, models.ComplaintStatus) (UpdateDecision, error) {
		return UpdateDecision{}, apperror.ErrAccessDenied
	},
}

// UpdateDecisionFor resolves the status-update rule for a role. Reporters
// are rejected regardless of ownership.
func UpdateDecisionFor(role models.Role, callerID primitive.ObjectID, c *models.Complaint, newStatus models.ComplaintStatus) (UpdateDecision, error) {
	rule, ok := updateRules[role]
	if !ok {
		return UpdateDecision{}, apperror.ErrAccessDenied
	}
	return rule(callerID, c, newStatus)
}

// CanView reports whether a caller may fetch a single complaint: admins any,
// workers those pending or assigned to them, reporters their own.
func CanView(role models.Role, callerID primitive.ObjectID, c *models.Complaint) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleWorker:
		return c.Status == models.Pending || (c.AssignedTo != nil && *c.AssignedTo == callerID)
	case models.RoleReporter:
		return c.CreatedBy == callerID
	}
	return false
}
