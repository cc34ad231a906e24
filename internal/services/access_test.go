package services

import (
	"testing"

	"github.com/makerplan/backend/internal/models"
)

func TestAccess_ProjectCreator(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")

	if !access.CanReadProject(creator.ID, project) {
		t.Error("creator should read own project")
	}
	if !access.CanUpdateProject(creator.ID, project) {
		t.Error("creator should update own project")
	}
	if !access.CanDeleteProject(creator.ID, project) {
		t.Error("creator should delete own project")
	}
}

func TestAccess_NonMemberDenied(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	stranger := createTestUser(t, db, "stranger", "stranger@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")

	if access.CanReadProject(stranger.ID, project) {
		t.Error("stranger should not read the project")
	}
	if access.CanUpdateProject(stranger.ID, project) {
		t.Error("stranger should not update the project")
	}
	if access.CanDeleteProject(stranger.ID, project) {
		t.Error("stranger should not delete the project")
	}
}

func TestAccess_MemberRoles(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	viewer := createTestUser(t, db, "viewer", "viewer@example.com")
	admin := createTestUser(t, db, "padmin", "padmin@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")
	addAcceptedMember(t, db, project.ID, viewer, models.RoleViewer)
	addAcceptedMember(t, db, project.ID, admin, models.RoleAdmin)

	if !access.CanReadProject(viewer.ID, project) {
		t.Error("viewer should read the project")
	}
	if access.CanUpdateProject(viewer.ID, project) {
		t.Error("viewer should not update the project")
	}

	if !access.CanUpdateProject(admin.ID, project) {
		t.Error("admin member should update the project")
	}
	if access.CanDeleteProject(admin.ID, project) {
		t.Error("only the creator may delete the project")
	}
}

func TestAccess_PendingInvitationGrantsNothing(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	invitee := createTestUser(t, db, "invitee", "invitee@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")

	invite := addPendingInvite(t, db, project.ID, invitee.Email, models.RoleContributor, "tok-1", creator.ID)
	db.Model(invite).Update("user_id", invitee.ID)

	if access.CanReadProject(invitee.ID, project) {
		t.Error("pending invitee should not read the project")
	}

	// Acceptance flips access on.
	db.Model(invite).Update("invitation_status", models.InvitationAccepted)
	if !access.CanReadProject(invitee.ID, project) {
		t.Error("accepted member should read the project")
	}

	// Declined and expired rows grant nothing.
	for _, status := range []string{models.InvitationDeclined, models.InvitationExpired} {
		db.Model(invite).Update("invitation_status", status)
		if access.CanReadProject(invitee.ID, project) {
			t.Errorf("%s invitation should not grant read access", status)
		}
	}
}

func TestAccess_LegacyTeamReadOnly(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	legacy := createTestUser(t, db, "legacy", "legacy@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")
	project.Team = []uint{legacy.ID}
	db.Save(project)

	if !access.CanReadProject(legacy.ID, project) {
		t.Error("legacy team member should read the project")
	}
	if access.CanUpdateProject(legacy.ID, project) {
		t.Error("legacy team entry carries no role, update should be denied")
	}
	if access.CanManageRoster(legacy.ID, project) {
		t.Error("legacy team entry should not manage the roster")
	}
}

func TestAccess_Roster(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	viewer := createTestUser(t, db, "viewer", "viewer@example.com")
	stranger := createTestUser(t, db, "stranger", "stranger@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")
	addAcceptedMember(t, db, project.ID, viewer, models.RoleViewer)

	if !access.CanReadRoster(viewer.ID, project) {
		t.Error("any accepted member should read the roster")
	}
	if access.CanReadRoster(stranger.ID, project) {
		t.Error("stranger should not read the roster")
	}
	if access.CanManageRoster(viewer.ID, project) {
		t.Error("viewer should not manage the roster")
	}
	if !access.CanManageRoster(creator.ID, project) {
		t.Error("creator should manage the roster")
	}
}

func TestAccess_TaskPredicates(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	member := createTestUser(t, db, "member", "member@example.com")
	assignee := createTestUser(t, db, "assignee", "assignee@example.com")
	stranger := createTestUser(t, db, "stranger", "stranger@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")
	addAcceptedMember(t, db, project.ID, member, models.RoleContributor)

	task := &models.Task{
		Title:     "Build shelf",
		CreatorID: creator.ID,
		ProjectID: &project.ID,
		Assignees: []uint{assignee.ID},
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	if !access.CanAccessTask(creator.ID, task) {
		t.Error("task creator should access the task")
	}
	if !access.CanAccessTask(assignee.ID, task) {
		t.Error("assignee should access the task even without project membership")
	}
	if !access.CanAccessTask(member.ID, task) {
		t.Error("project member should access a project task")
	}
	if access.CanAccessTask(stranger.ID, task) {
		t.Error("stranger should not access the task")
	}

	if !access.CanDeleteTask(creator.ID, task) {
		t.Error("task creator should delete the task")
	}
	if access.CanDeleteTask(assignee.ID, task) {
		t.Error("assignee should not delete the task")
	}
	if access.CanDeleteTask(member.ID, task) {
		t.Error("plain member should not delete the task")
	}
}

func TestAccess_TaskAssigneeRemovalRevokesAccess(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	assignee := createTestUser(t, db, "assignee", "assignee@example.com")

	task := &models.Task{
		Title:     "Personal errand",
		CreatorID: creator.ID,
		Assignees: []uint{assignee.ID},
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	if !access.CanAccessTask(assignee.ID, task) {
		t.Fatal("assignee should access the task")
	}

	db.Model(task).Update("assignees", []uint{})
	var reloaded models.Task
	db.First(&reloaded, task.ID)
	if access.CanAccessTask(assignee.ID, &reloaded) {
		t.Error("removed assignee should lose access to a projectless task")
	}
}

func TestAccess_ProjectCreatorCanDeleteMemberTask(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	member := createTestUser(t, db, "member", "member@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")
	addAcceptedMember(t, db, project.ID, member, models.RoleContributor)

	task := &models.Task{
		Title:     "Member task",
		CreatorID: member.ID,
		ProjectID: &project.ID,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	if !access.CanDeleteTask(creator.ID, task) {
		t.Error("project creator should delete tasks inside the project")
	}
}

func TestAccess_ItemPredicates(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	member := createTestUser(t, db, "member", "member@example.com")
	stranger := createTestUser(t, db, "stranger", "stranger@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")
	addAcceptedMember(t, db, project.ID, member, models.RoleViewer)

	item := &models.Item{
		Name:      "Plywood",
		AddedBy:   member.ID,
		ProjectID: &project.ID,
		ItemType:  models.ItemTypeNeededSupply,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	if !access.CanAccessItem(member.ID, item) {
		t.Error("adder should access the item")
	}
	if !access.CanAccessItem(creator.ID, item) {
		t.Error("project creator should access a project item")
	}
	if access.CanAccessItem(stranger.ID, item) {
		t.Error("stranger should not access the item")
	}

	if !access.CanDeleteItem(member.ID, item) {
		t.Error("adder should delete the item")
	}
	if !access.CanDeleteItem(creator.ID, item) {
		t.Error("project creator should delete project items")
	}
	if access.CanDeleteItem(stranger.ID, item) {
		t.Error("stranger should not delete the item")
	}
}

func TestAccess_AuthorizeDispatch(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	other := createTestUser(t, db, "other", "other@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")

	if !access.Authorize(creator.ID, OpRead, project) {
		t.Error("creator read should be allowed")
	}
	if access.Authorize(other.ID, OpRead, project) {
		t.Error("non-member read should be denied")
	}

	// Insert is only allowed for rows owned by the actor.
	if access.Authorize(other.ID, OpInsert, &models.Project{CreatorID: creator.ID}) {
		t.Error("inserting a project owned by someone else should be denied")
	}
	if !access.Authorize(creator.ID, OpInsert, &models.Project{CreatorID: creator.ID}) {
		t.Error("inserting an own project should be allowed")
	}

	// Unknown row types never authorize.
	if access.Authorize(creator.ID, OpRead, "not a model") {
		t.Error("unknown row type should be denied")
	}
}

func TestAccess_RoleOfIgnoresNonAccepted(t *testing.T) {
	db := setupTestDB(t)
	access := NewAccessService(db)
	creator := createTestUser(t, db, "creator", "creator@example.com")
	invitee := createTestUser(t, db, "invitee", "invitee@example.com")
	project := createTestProject(t, db, creator.ID, "Workshop")

	invite := addPendingInvite(t, db, project.ID, invitee.Email, models.RoleAdmin, "tok-2", creator.ID)
	db.Model(invite).Update("user_id", invitee.ID)

	if _, ok := access.RoleOf(invitee.ID, project.ID); ok {
		t.Error("pending invitation should not resolve to a role")
	}

	db.Model(invite).Update("invitation_status", models.InvitationAccepted)
	role, ok := access.RoleOf(invitee.ID, project.ID)
	if !ok || role != models.RoleAdmin {
		t.Errorf("RoleOf = (%q, %v), expected (%q, true)", role, ok, models.RoleAdmin)
	}
}

func TestReadableProjectIDs(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")

	owned := createTestProject(t, db, alice.ID, "Owned")
	memberProject := createTestProject(t, db, bob.ID, "Shared")
	addAcceptedMember(t, db, memberProject.ID, alice, models.RoleViewer)
	legacyProject := createTestProject(t, db, bob.ID, "Legacy")
	legacyProject.Team = []uint{alice.ID}
	db.Save(legacyProject)
	createTestProject(t, db, bob.ID, "Hidden")

	ids, err := ReadableProjectIDs(db, alice.ID)
	if err != nil {
		t.Fatalf("ReadableProjectIDs() error = %v", err)
	}

	want := map[uint]bool{owned.ID: true, memberProject.ID: true, legacyProject.ID: true}
	if len(ids) != len(want) {
		t.Fatalf("got %d project ids, expected %d (%v)", len(ids), len(want), ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected project id %d", id)
		}
	}
}
