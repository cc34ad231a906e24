package services

import (
	"errors"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

// ProfileService manages user profiles and the derived current_projects
// cache. Cache mutations happen only through the side-effect helpers below,
// always inside the transaction of the membership change they mirror.
type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Location    string `json:"location"`
	Skills      string `json:"skills"`
}

// GetByUserID returns the profile for a user, creating an empty one on
// first access.
func (s *ProfileService) GetByUserID(userID uint) (*models.Profile, error) {
	return ensureProfile(s.db, userID)
}

// Update applies profile fields owned by the user. current_projects is
// deliberately not updatable here.
func (s *ProfileService) Update(userID uint, req *UpdateProfileRequest) (*models.Profile, error) {
	profile, err := ensureProfile(s.db, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.DisplayName != "" {
		updates["display_name"] = req.DisplayName
	}
	if req.Bio != "" {
		updates["bio"] = req.Bio
	}
	if req.Location != "" {
		updates["location"] = req.Location
	}
	if req.Skills != "" {
		updates["skills"] = req.Skills
	}

	if len(updates) > 0 {
		if err := s.db.Model(profile).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return profile, nil
}

// GetPublic returns another user's profile. Profiles are readable by any
// authenticated user.
func (s *ProfileService) GetPublic(userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.Preload("User").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("profile not found")
		}
		return nil, err
	}
	return &profile, nil
}

// --- Membership side-effect helpers (transaction-scoped) ---

// ensureProfile loads or creates the profile row for userID using tx.
func ensureProfile(tx *gorm.DB, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := tx.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.Profile{UserID: userID, CurrentProjects: []uint{}}
		if err := tx.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// addProjectToProfile appends projectID to the user's cache, idempotently.
func addProjectToProfile(tx *gorm.DB, userID, projectID uint) error {
	profile, err := ensureProfile(tx, userID)
	if err != nil {
		return err
	}
	if profile.HasProject(projectID) {
		return nil
	}
	profile.AddProject(projectID)
	return saveProjectCache(tx, profile)
}

// saveProjectCache persists the current_projects column. The write goes
// through a struct update so the JSON serializer runs; a bare column update
// would store the raw slice value.
func saveProjectCache(tx *gorm.DB, profile *models.Profile) error {
	return tx.Model(profile).
		Select("current_projects").
		Updates(&models.Profile{CurrentProjects: profile.CurrentProjects}).Error
}

// removeProjectFromProfile drops projectID from the user's cache.
func removeProjectFromProfile(tx *gorm.DB, userID, projectID uint) error {
	var profile models.Profile
	err := tx.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !profile.HasProject(projectID) {
		return nil
	}
	profile.RemoveProject(projectID)
	return saveProjectCache(tx, &profile)
}

// removeProjectFromAllProfiles strips projectID from every profile that
// caches it, as part of project deletion.
func removeProjectFromAllProfiles(tx *gorm.DB, projectID uint) error {
	var profiles []models.Profile
	if err := tx.Find(&profiles).Error; err != nil {
		return err
	}
	for i := range profiles {
		if !profiles[i].HasProject(projectID) {
			continue
		}
		profiles[i].RemoveProject(projectID)
		if err := saveProjectCache(tx, &profiles[i]); err != nil {
			return err
		}
	}
	return nil
}
