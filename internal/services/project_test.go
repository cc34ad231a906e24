package services

import (
	"errors"
	"testing"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/response"
)

func profileProjects(t *testing.T, svc *ProfileService, userID uint) []uint {
	t.Helper()
	profile, err := svc.GetByUserID(userID)
	if err != nil {
		t.Fatalf("load profile for %d: %v", userID, err)
	}
	return profile.CurrentProjects
}

func TestProjectCreate_MaterializesOwnerMembership(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db, testPublisher())
	profiles := NewProfileService(db)
	alice := createTestUser(t, db, "alice", "alice@example.com")

	project, err := svc.Create(alice.ID, &CreateProjectRequest{Title: "Garden"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var member models.ProjectMember
	err = db.Where("project_id = ? AND user_id = ?", project.ID, alice.ID).First(&member).Error
	if err != nil {
		t.Fatalf("creator membership row missing: %v", err)
	}
	if member.Role != models.RoleOwner {
		t.Errorf("creator role = %q, expected %q", member.Role, models.RoleOwner)
	}
	if member.InvitationStatus != models.InvitationAccepted {
		t.Errorf("creator membership status = %q, expected accepted", member.InvitationStatus)
	}

	// New projects never populate the legacy team list.
	if len(project.Team) != 0 {
		t.Errorf("new project team = %v, expected empty", project.Team)
	}

	cached := profileProjects(t, profiles, alice.ID)
	if len(cached) != 1 || cached[0] != project.ID {
		t.Errorf("profile cache = %v, expected [%d]", cached, project.ID)
	}
}

func TestProjectGetByID_HidesUnreadableRows(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db, testPublisher())
	alice := createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")
	project := createTestProject(t, db, alice.ID, "Garden")

	_, err := svc.GetByID(bob.ID, project.ID)
	var appErr *response.AppError
	if !errors.As(err, &appErr) || appErr.Code != 404 {
		t.Fatalf("expected 404 for unreadable project, got %v", err)
	}

	// A genuinely missing row produces the same error.
	_, err2 := svc.GetByID(alice.ID, 9999)
	var appErr2 *response.AppError
	if !errors.As(err2, &appErr2) || appErr2.Code != 404 {
		t.Fatalf("expected 404 for missing project, got %v", err2)
	}
	if appErr.Message != appErr2.Message {
		t.Error("deny and missing should be indistinguishable")
	}
}

func TestProjectUpdate_WriteDenyOnReadableRow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db, testPublisher())
	alice := createTestUser(t, db, "alice", "alice@example.com")
	viewer := createTestUser(t, db, "viewer", "viewer@example.com")
	project := createTestProject(t, db, alice.ID, "Garden")
	addAcceptedMember(t, db, project.ID, viewer, models.RoleViewer)

	_, err := svc.Update(viewer.ID, project.ID, &UpdateProjectRequest{Title: "Hijacked"})
	var appErr *response.AppError
	if !errors.As(err, &appErr) || appErr.Code != 403 {
		t.Fatalf("expected 403 for readable but unwritable project, got %v", err)
	}
}

func TestProjectUpdate_TeamDiffSyncsProfiles(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db, testPublisher())
	profiles := NewProfileService(db)
	alice := createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")
	carol := createTestUser(t, db, "carol", "carol@example.com")

	project, err := svc.Create(alice.ID, &CreateProjectRequest{Title: "Garden"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Add bob and carol via the legacy team list.
	team := []uint{bob.ID, carol.ID}
	if _, err := svc.Update(alice.ID, project.ID, &UpdateProjectRequest{Team: &team}); err != nil {
		t.Fatalf("Update(add team) error = %v", err)
	}
	if got := profileProjects(t, profiles, bob.ID); len(got) != 1 || got[0] != project.ID {
		t.Errorf("bob's cache = %v, expected [%d]", got, project.ID)
	}

	// The team column must round-trip through its JSON serialization.
	var reloaded models.Project
	if err := db.First(&reloaded, project.ID).Error; err != nil {
		t.Fatalf("reload project: %v", err)
	}
	if len(reloaded.Team) != 2 || reloaded.Team[0] != bob.ID || reloaded.Team[1] != carol.ID {
		t.Errorf("stored team = %v, expected [%d %d]", reloaded.Team, bob.ID, carol.ID)
	}

	// Carol also holds an accepted membership row.
	addAcceptedMember(t, db, project.ID, carol, models.RoleContributor)

	// Remove both from the team.
	empty := []uint{}
	if _, err := svc.Update(alice.ID, project.ID, &UpdateProjectRequest{Team: &empty}); err != nil {
		t.Fatalf("Update(clear team) error = %v", err)
	}

	if got := profileProjects(t, profiles, bob.ID); len(got) != 0 {
		t.Errorf("bob's cache = %v, expected empty after team removal", got)
	}
	// Carol keeps the entry because the accepted membership still stands.
	if got := profileProjects(t, profiles, carol.ID); len(got) != 1 || got[0] != project.ID {
		t.Errorf("carol's cache = %v, expected [%d]", got, project.ID)
	}
}

func TestProjectDelete_Cascades(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db, testPublisher())
	profiles := NewProfileService(db)
	alice := createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")

	project, err := svc.Create(alice.ID, &CreateProjectRequest{Title: "Garden"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	addAcceptedMember(t, db, project.ID, bob, models.RoleContributor)
	db.Create(&models.Task{Title: "Dig", CreatorID: alice.ID, ProjectID: &project.ID})
	db.Create(&models.Item{Name: "Shovel", AddedBy: alice.ID, ProjectID: &project.ID, ItemType: models.ItemTypeOwnedResource})

	// Non-creators cannot delete.
	err = svc.Delete(bob.ID, project.ID)
	var appErr *response.AppError
	if !errors.As(err, &appErr) || appErr.Code != 403 {
		t.Fatalf("expected 403 for member delete, got %v", err)
	}

	if err := svc.Delete(alice.ID, project.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var members, tasks, items int64
	db.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&members)
	db.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&tasks)
	db.Model(&models.Item{}).Where("project_id = ?", project.ID).Count(&items)
	if members != 0 || tasks != 0 || items != 0 {
		t.Errorf("cascade left members=%d tasks=%d items=%d", members, tasks, items)
	}
	if got := profileProjects(t, profiles, alice.ID); len(got) != 0 {
		t.Errorf("alice's cache = %v, expected empty after delete", got)
	}
}

func TestProjectList_ScopedToReadable(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db, testPublisher())
	alice := createTestUser(t, db, "alice", "alice@example.com")
	bob := createTestUser(t, db, "bob", "bob@example.com")

	if _, err := svc.Create(alice.ID, &CreateProjectRequest{Title: "Mine"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	createTestProject(t, db, bob.ID, "Not mine")

	resp, err := svc.List(alice.ID, &ProjectListRequest{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("List() total=%d items=%d, expected 1/1", resp.Total, len(resp.Items))
	}
	if resp.Items[0].Title != "Mine" {
		t.Errorf("listed project = %q, expected %q", resp.Items[0].Title, "Mine")
	}
}

func TestProfileUpdate_CannotTouchProjectCache(t *testing.T) {
	db := setupTestDB(t)
	projects := NewProjectService(db, testPublisher())
	profiles := NewProfileService(db)
	alice := createTestUser(t, db, "alice", "alice@example.com")

	project, err := projects.Create(alice.ID, &CreateProjectRequest{Title: "Garden"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := profiles.Update(alice.ID, &UpdateProfileRequest{DisplayName: "Alice", Bio: "builder"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, expected %q", updated.DisplayName, "Alice")
	}

	if got := profileProjects(t, profiles, alice.ID); len(got) != 1 || got[0] != project.ID {
		t.Errorf("profile cache = %v, expected [%d]", got, project.ID)
	}
}
