package services

import (
	"testing"
	"time"

	"github.com/makerplan/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB opens a fresh in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.Item{},
		&models.Badge{},
		&models.UserBadge{},
		&models.BadgeQuest{},
		&models.NotifierBot{},
		&models.EstimatorConfig{},
		&models.ActivityLog{},
		&models.SystemConfig{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username, email string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    email,
		Role:     "user",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func createTestProject(t *testing.T, db *gorm.DB, creatorID uint, title string) *models.Project {
	t.Helper()
	project := &models.Project{
		Title:     title,
		CreatorID: creatorID,
		Status:    models.ProjectStatusPlanning,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("create project %s: %v", title, err)
	}
	return project
}

func addAcceptedMember(t *testing.T, db *gorm.DB, projectID uint, user *models.User, role string) *models.ProjectMember {
	t.Helper()
	now := time.Now()
	member := &models.ProjectMember{
		ProjectID:        projectID,
		UserID:           &user.ID,
		Role:             role,
		InvitationStatus: models.InvitationAccepted,
		InvitationEmail:  user.Email,
		AcceptedAt:       &now,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("add member %d to project %d: %v", user.ID, projectID, err)
	}
	return member
}

func addPendingInvite(t *testing.T, db *gorm.DB, projectID uint, email, role, token string, invitedBy uint) *models.ProjectMember {
	t.Helper()
	expires := time.Now().AddDate(0, 0, 14)
	member := &models.ProjectMember{
		ProjectID:        projectID,
		Role:             role,
		InvitationStatus: models.InvitationPending,
		InvitationEmail:  email,
		InvitationToken:  token,
		InvitedBy:        invitedBy,
		ExpiresAt:        &expires,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("invite %s to project %d: %v", email, projectID, err)
	}
	return member
}

// testPublisher is an EventPublisher that swallows events.
func testPublisher() *EventPublisher {
	return NewEventPublisher(nil)
}
