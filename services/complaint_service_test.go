package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperror"
	"civicreport-be/models"
	"civicreport-be/repository"
	"civicreport-be/services"
)

func newTestService() (*services.ComplaintService, *repository.MemoryComplaintRepository) {
	repo := repository.NewMemoryComplaintRepository()
	return services.NewComplaintService(repo, repo), repo
}

func reporter() services.Identity {
	return services.Identity{ID: primitive.NewObjectID(), Role: models.RoleReporter}
}

func worker() services.Identity {
	return services.Identity{ID: primitive.NewObjectID(), Role: models.RoleWorker}
}

func admin() services.Identity {
	return services.Identity{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
}

func validInput() services.CreateComplaintInput {
	lat, lon := 12.97, 77.59
	return services.CreateComplaintInput{
		Title:       "Broken streetlight",
		Description: "Streetlight out on 5th Cross",
		Category:    "Streetlight",
		PhotoURL:    "/uploads/abc.jpg",
		Latitude:    &lat,
		Longitude:   &lon,
	}
}

func mustCreate(t *testing.T, svc *services.ComplaintService, caller services.Identity) *models.Complaint {
	t.Helper()
	c, err := svc.Create(context.Background(), caller, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestCreateStartsPendingUnassigned(t *testing.T) {
	svc, _ := newTestService()
	r := reporter()

	c := mustCreate(t, svc, r)

	if c.Status != models.Pending {
		t.Errorf("expected status pending, got %s", c.Status)
	}
	if c.AssignedTo != nil {
		t.Errorf("expected no assignee, got %s", c.AssignedTo.Hex())
	}
	if c.ResolvedAt != nil {
		t.Error("expected resolvedAt unset on creation")
	}
	if c.CreatedBy != r.ID {
		t.Errorf("expected creator %s, got %s", r.ID.Hex(), c.CreatedBy.Hex())
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	r := reporter()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*services.CreateComplaintInput)
	}{
		{"missing title", func(in *services.CreateComplaintInput) { in.Title = "" }},
		{"missing description", func(in *services.CreateComplaintInput) { in.Description = "" }},
		{"missing photo", func(in *services.CreateComplaintInput) { in.PhotoURL = "" }},
		{"missing latitude", func(in *services.CreateComplaintInput) { in.Latitude = nil }},
		{"missing longitude", func(in *services.CreateComplaintInput) { in.Longitude = nil }},
		{"unknown category", func(in *services.CreateComplaintInput) { in.Category = "Graffiti" }},
		{"other without label", func(in *services.CreateComplaintInput) {
			in.Category = "Other"
			in.CustomCategory = ""
		}},
		{"other with blank label", func(in *services.CreateComplaintInput) {
			in.Category = "Other"
			in.CustomCategory = "   "
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(ctx, r, in)
			if !apperror.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateOtherWithCustomLabel(t *testing.T) {
	svc, _ := newTestService()

	in := validInput()
	in.Category = "Other"
	in.CustomCategory = "Fallen Tree"

	c, err := svc.Create(context.Background(), reporter(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Category != "Fallen Tree" {
		t.Errorf("expected category stored verbatim, got %q", c.Category)
	}
}

func TestCreateOmittedCategoryDefaults(t *testing.T) {
	svc, _ := newTestService()

	in := validInput()
	in.Category = ""

	c, err := svc.Create(context.Background(), reporter(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Category != string(models.DefaultCategory) {
		t.Errorf("expected default category %q, got %q", models.DefaultCategory, c.Category)
	}
}

func TestCreateRequiresReporterRole(t *testing.T) {
	svc, _ := newTestService()

	for _, caller := range []services.Identity{worker(), admin()} {
		if _, err := svc.Create(context.Background(), caller, validInput()); !apperror.IsForbidden(err) {
			t.Errorf("role %s: expected forbidden, got %v", caller.Role, err)
		}
	}
}

func TestListMineNewestFirst(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	r := reporter()
	other := reporter()

	older := mustCreate(t, svc, r)
	mustCreate(t, svc, other)
	newer := mustCreate(t, svc, r)

	// Separate the timestamps so the ordering assertion is meaningful.
	bump(t, repo, newer.ID, time.Minute)

	mine, err := svc.ListMine(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 complaints, got %d", len(mine))
	}
	if mine[0].ID != newer.ID || mine[1].ID != older.ID {
		t.Error("expected newest complaint first")
	}
}

func TestListMineRejectsOtherRoles(t *testing.T) {
	svc, _ := newTestService()

	for _, caller := range []services.Identity{worker(), admin()} {
		if _, err := svc.ListMine(context.Background(), caller); !apperror.IsForbidden(err) {
			t.Errorf("role %s: expected forbidden, got %v", caller.Role, err)
		}
	}
}

func TestListForRoleReporterForbidden(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ListForRole(context.Background(), reporter())
	if !apperror.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListForRoleWorkerUnion(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r := reporter()
	w := worker()
	otherWorker := worker()
	a := admin()

	pending := mustCreate(t, svc, r)
	mine := mustCreate(t, svc, r)
	theirs := mustCreate(t, svc, r)

	if _, err := svc.Assign(ctx, a, mine.ID, w.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Assign(ctx, a, theirs.ID, otherWorker.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	listed, err := svc.ListForRole(ctx, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[primitive.ObjectID]bool{}
	for _, c := range listed {
		got[c.ID] = true
	}
	if !got[pending.ID] || !got[mine.ID] {
		t.Error("worker listing must include pending and own complaints")
	}
	if got[theirs.ID] {
		t.Error("worker listing must not include complaints assigned to another worker")
	}
	if len(listed) != 2 {
		t.Errorf("expected exactly 2 complaints, got %d", len(listed))
	}
}

func TestListForRoleAdminResolvesIdentities(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	r := reporter()
	w := worker()
	a := admin()

	repo.AddUser(models.User{ID: r.ID, Name: "Rhea", Email: "rhea@example.com", Role: models.RoleReporter})
	repo.AddUser(models.User{ID: w.ID, Name: "Wade", Role: models.RoleWorker})

	c := mustCreate(t, svc, r)
	if _, err := svc.Assign(ctx, a, c.ID, w.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	listed, err := svc.ListForRole(ctx, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 complaint, got %d", len(listed))
	}
	if listed[0].Creator == nil || listed[0].Creator.Name != "Rhea" {
		t.Error("expected creator details resolved for admin listing")
	}
	if listed[0].Assignee == nil || listed[0].Assignee.Name != "Wade" {
		t.Error("expected assignee details resolved for admin listing")
	}
}

func TestAssign(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := worker()
	a := admin()

	c := mustCreate(t, svc, reporter())

	updated, err := svc.Assign(ctx, a, c.ID, w.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != models.Assigned {
		t.Errorf("expected status assigned, got %s", updated.Status)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != w.ID {
		t.Error("expected assignee set to the worker")
	}
}

func TestAssignNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Assign(context.Background(), admin(), primitive.NewObjectID(), primitive.NewObjectID())
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()
	c := mustCreate(t, svc, reporter())

	for _, caller := range []services.Identity{reporter(), worker()} {
		if _, err := svc.Assign(context.Background(), caller, c.ID, primitive.NewObjectID()); !apperror.IsForbidden(err) {
			t.Errorf("role %s: expected forbidden, got %v", caller.Role, err)
		}
	}
}

func TestUpdateStatusWorkerSelfAssigns(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w1 := worker()
	w2 := worker()

	c := mustCreate(t, svc, reporter())

	updated, err := svc.UpdateStatus(ctx, w1, c.ID, "in-progress")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != w1.ID {
		t.Fatal("expected first toucher to become assignee")
	}
	if updated.Status != models.InProgress {
		t.Errorf("expected status in-progress, got %s", updated.Status)
	}

	// A different worker may no longer advance it.
	_, err = svc.UpdateStatus(ctx, w2, c.ID, "resolved")
	if !apperror.IsForbidden(err) {
		t.Fatalf("expected forbidden for non-assignee, got %v", err)
	}
}

func TestUpdateStatusPendingSkipsSelfAssignment(t *testing.T) {
	svc, _ := newTestService()
	w := worker()

	c := mustCreate(t, svc, reporter())

	updated, err := svc.UpdateStatus(context.Background(), w, c.ID, "pending")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AssignedTo != nil {
		t.Error("setting pending must not self-assign")
	}
}

func TestUpdateStatusResolvedStampsResolvedAt(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	w := worker()

	c := mustCreate(t, svc, reporter())

	updated, err := svc.UpdateStatus(ctx, w, c.ID, "resolved")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ResolvedAt == nil {
		t.Fatal("expected resolvedAt stamped on resolution")
	}

	// Round-trip: re-fetch shows both fields consistent.
	fetched, err := repo.FindByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetched.Status != models.Resolved || fetched.ResolvedAt == nil {
		t.Error("expected resolved status and resolvedAt after re-fetch")
	}

	// Permissive transitions: moving back out of resolved is accepted and
	// clears the stamp, keeping the invariant.
	reverted, err := svc.UpdateStatus(ctx, w, c.ID, "in-progress")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reverted.ResolvedAt != nil {
		t.Error("expected resolvedAt cleared when leaving resolved")
	}
}

func TestUpdateStatusAdminBypassesAssignee(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := worker()
	a := admin()

	c := mustCreate(t, svc, reporter())
	if _, err := svc.Assign(ctx, a, c.ID, w.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, a, c.ID, "resolved")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != models.Resolved {
		t.Errorf("expected resolved, got %s", updated.Status)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != w.ID {
		t.Error("admin status update must not change the assignee")
	}
}

func TestUpdateStatusReporterForbidden(t *testing.T) {
	svc, _ := newTestService()
	r := reporter()

	c := mustCreate(t, svc, r)

	// Ownership does not matter: reporters never update status.
	_, err := svc.UpdateStatus(context.Background(), r, c.ID, "resolved")
	if !apperror.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateStatusInvalidValue(t *testing.T) {
	svc, _ := newTestService()
	c := mustCreate(t, svc, reporter())

	_, err := svc.UpdateStatus(context.Background(), worker(), c.ID, "closed")
	if !apperror.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.UpdateStatus(context.Background(), worker(), primitive.NewObjectID(), "in-progress")
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentSelfAssignmentSingleWinner(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	const attempts = 50
	for i := 0; i < attempts; i++ {
		c := mustCreate(t, svc, reporter())
		w1 := worker()
		w2 := worker()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, w := range []services.Identity{w1, w2} {
			wg.Add(1)
			go func(j int, w services.Identity) {
				defer wg.Done()
				_, errs[j] = svc.UpdateStatus(ctx, w, c.ID, "in-progress")
			}(j, w)
		}
		wg.Wait()

		final, err := repo.FindByID(ctx, c.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if final.AssignedTo == nil {
			t.Fatal("expected a single worker to have claimed the complaint")
		}
		if *final.AssignedTo != w1.ID && *final.AssignedTo != w2.ID {
			t.Fatal("assignee must be one of the racing workers")
		}

		wins, losses := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case apperror.IsForbidden(err):
				losses++
			default:
				t.Fatalf("unexpected error kind: %v", err)
			}
		}
		if wins != 1 || losses != 1 {
			t.Fatalf("expected exactly one winner and one forbidden loser, got %d/%d", wins, losses)
		}
	}
}

func TestGetVisibility(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r := reporter()
	stranger := reporter()
	w := worker()
	a := admin()

	c := mustCreate(t, svc, r)

	if _, err := svc.Get(ctx, r, c.ID); err != nil {
		t.Errorf("creator should see own complaint: %v", err)
	}
	if _, err := svc.Get(ctx, stranger, c.ID); !apperror.IsForbidden(err) {
		t.Errorf("other reporter should be forbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, w, c.ID); err != nil {
		t.Errorf("worker should see pending complaint: %v", err)
	}
	if _, err := svc.Get(ctx, a, c.ID); err != nil {
		t.Errorf("admin should see any complaint: %v", err)
	}

	// Claimed by another worker: no longer visible to this one.
	otherWorker := worker()
	if _, err := svc.UpdateStatus(ctx, otherWorker, c.ID, "in-progress"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.Get(ctx, w, c.ID); !apperror.IsForbidden(err) {
		t.Errorf("worker should not see a complaint claimed by another, got %v", err)
	}
}

// bump moves a complaint's createdAt forward through the repository's own
// write path so listing order can be asserted deterministically.
func bump(t *testing.T, repo *repository.MemoryComplaintRepository, id primitive.ObjectID, d time.Duration) {
	t.Helper()
	c, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.CreatedAt = c.CreatedAt.Add(d)
	if err := repo.Insert(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
