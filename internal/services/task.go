package services

import (
	"errors"
	"time"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

// TaskService manages tasks and the badge awards tied to their completion.
type TaskService struct {
	db     *gorm.DB
	access *AccessService
	events *EventPublisher
}

func NewTaskService(db *gorm.DB, events *EventPublisher) *TaskService {
	return &TaskService{db: db, access: NewAccessService(db), events: events}
}

type TaskListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	ProjectID *uint  `form:"project_id"`
	Status    string `form:"status"`
	Priority  string `form:"priority"`
	Assignee  *uint  `form:"assignee"`
}

type TaskListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Task `json:"items"`
}

type CreateTaskRequest struct {
	Title                  string     `json:"title" binding:"required"`
	Description            string     `json:"description"`
	ProjectID              *uint      `json:"project_id"`
	QuestID                *uint      `json:"quest_id"`
	Assignees              []uint     `json:"assignees"`
	Status                 string     `json:"status"`
	Priority               string     `json:"priority"`
	BadgeID                *uint      `json:"badge_id"`
	CompletionVerification bool       `json:"completion_verification"`
	IsProjectTask          bool       `json:"is_project_task"`
	DueDate                *time.Time `json:"due_date"`
}

type UpdateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Assignees   *[]uint    `json:"assignees"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

// List returns tasks visible to the user: tasks they created, tasks assigned
// to them, and tasks in projects they can read. Assignee membership of JSON
// lists is checked in Go for driver portability.
func (s *TaskService) List(userID uint, req *TaskListRequest) (*TaskListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	projectIDs, err := ReadableProjectIDs(s.db, userID)
	if err != nil {
		return nil, err
	}

	query := s.db.Model(&models.Task{})
	if len(projectIDs) > 0 {
		query = query.Where("creator_id = ? OR project_id IN ?", userID, projectIDs)
	} else {
		query = query.Where("creator_id = ?", userID)
	}
	if req.ProjectID != nil {
		query = query.Where("project_id = ?", *req.ProjectID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	// Pull in tasks assigned to the user that the project scan missed.
	// Assignee lists are JSON columns, so membership is checked in Go.
	var candidates []models.Task
	if err := s.db.Where("creator_id <> ?", userID).Find(&candidates).Error; err == nil {
		seen := map[uint]struct{}{}
		for _, t := range tasks {
			seen[t.ID] = struct{}{}
		}
		for _, t := range candidates {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			if t.IsAssignee(userID) {
				tasks = append(tasks, t)
			}
		}
	}

	if req.Assignee != nil {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.IsAssignee(*req.Assignee) {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	total := int64(len(tasks))
	start := (req.Page - 1) * req.PageSize
	if start > len(tasks) {
		start = len(tasks)
	}
	end := start + req.PageSize
	if end > len(tasks) {
		end = len(tasks)
	}

	return &TaskListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    tasks[start:end],
	}, nil
}

// GetByID returns the task when the user may read it. Absence and denial are
// the same NotFound.
func (s *TaskService) GetByID(userID, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.Preload("Creator").Preload("Badge").First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("task not found or no access")
		}
		return nil, err
	}
	if !s.access.CanAccessTask(userID, &task) {
		return nil, response.NewNotFound("task not found or no access")
	}
	return &task, nil
}

// Create inserts a task owned by the actor. A task flagged as a project task
// must carry a project id, and attaching to a project requires read access
// to that project.
func (s *TaskService) Create(userID uint, req *CreateTaskRequest) (*models.Task, error) {
	if req.IsProjectTask && req.ProjectID == nil {
		return nil, response.NewBadRequest("a project task requires a project_id")
	}

	task := &models.Task{
		Title:                  req.Title,
		Description:            req.Description,
		CreatorID:              userID,
		ProjectID:              req.ProjectID,
		QuestID:                req.QuestID,
		Assignees:              req.Assignees,
		Status:                 req.Status,
		Priority:               req.Priority,
		BadgeID:                req.BadgeID,
		CompletionVerification: req.CompletionVerification,
		IsProjectTask:          req.IsProjectTask,
		DueDate:                req.DueDate,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if req.ProjectID != nil {
			var project models.Project
			if err := tx.First(&project, *req.ProjectID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewNotFound("project not found or no access")
				}
				return err
			}
			if !s.access.WithTx(tx).CanReadProject(userID, &project) {
				return response.NewNotFound("project not found or no access")
			}
		}
		return tx.Create(task).Error
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Update modifies task fields. Writable by the creator, any assignee, or
// anyone with read access to the task's project. Completion goes through
// Complete, not here.
func (s *TaskService) Update(userID, id uint, req *UpdateTaskRequest) (*models.Task, error) {
	var task models.Task
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("task not found or no access")
			}
			return err
		}
		if !s.access.WithTx(tx).CanAccessTask(userID, &task) {
			return response.NewNotFound("task not found or no access")
		}

		updates := map[string]interface{}{}
		if req.Title != "" {
			updates["title"] = req.Title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Status != "" {
			if req.Status == models.TaskStatusDone {
				return response.NewBadRequest("use the completion endpoint to mark a task done")
			}
			updates["status"] = req.Status
		}
		if req.Priority != "" {
			updates["priority"] = req.Priority
		}
		if req.DueDate != nil {
			updates["due_date"] = req.DueDate
		}
		if req.Assignees != nil {
			// Struct update so the JSON serializer runs on the slice.
			task.Assignees = *req.Assignees
			if err := tx.Model(&task).
				Select("assignees").
				Updates(&models.Task{Assignees: task.Assignees}).Error; err != nil {
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&task).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	actor, _ := s.userByID(userID)
	event := &Event{
		Type:      EventTaskUpdated,
		ActorID:   userID,
		ActorName: displayName(actor),
		TaskID:    task.ID,
		TaskTitle: task.Title,
	}
	if task.ProjectID != nil {
		event.ProjectID = *task.ProjectID
	}
	s.events.Publish(event)
	return &task, nil
}

// Complete marks the task done. When a badge is attached it is awarded
// immediately unless the task demands completion verification and the actor
// is not the task's creator, in which case the task parks in
// verification_pending until the creator approves.
func (s *TaskService) Complete(userID, id uint) (*models.Task, error) {
	var task models.Task
	var awarded []awardRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("task not found or no access")
			}
			return err
		}
		if !s.access.WithTx(tx).CanAccessTask(userID, &task) {
			return response.NewNotFound("task not found or no access")
		}
		if task.Status == models.TaskStatusDone {
			return response.NewConflict("task is already done")
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":       models.TaskStatusDone,
			"completed_at": &now,
			"completed_by": userID,
		}

		if task.BadgeID != nil {
			if task.CompletionVerification && userID != task.CreatorID {
				updates["verification_pending"] = true
			} else {
				records, err := awardTaskBadge(tx, &task, userID)
				if err != nil {
					return err
				}
				awarded = append(awarded, records...)
			}
		}

		if err := tx.Model(&task).Updates(updates).Error; err != nil {
			return err
		}
		task.Status = models.TaskStatusDone
		task.CompletedAt = &now
		task.CompletedBy = &userID
		if pending, ok := updates["verification_pending"].(bool); ok {
			task.VerificationPending = pending
		}

		if task.QuestID != nil {
			records, err := checkQuestCompletion(tx, *task.QuestID)
			if err != nil {
				return err
			}
			awarded = append(awarded, records...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCompletion(userID, &task, awarded)
	return &task, nil
}

// Approve releases a verification-pending badge award. Creator only; anyone
// else with write access to the task still gets Forbidden here.
func (s *TaskService) Approve(userID, id uint) (*models.Task, error) {
	var task models.Task
	var awarded []awardRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("task not found or no access")
			}
			return err
		}
		if !s.access.WithTx(tx).CanAccessTask(userID, &task) {
			return response.NewNotFound("task not found or no access")
		}
		if task.CreatorID != userID {
			return response.NewForbidden("only the task creator can approve a completion")
		}
		if !task.VerificationPending {
			return response.NewConflict("task has no pending verification")
		}

		if task.BadgeID != nil {
			completer := task.CreatorID
			if task.CompletedBy != nil {
				completer = *task.CompletedBy
			}
			records, err := awardTaskBadge(tx, &task, completer)
			if err != nil {
				return err
			}
			awarded = append(awarded, records...)
		}

		if err := tx.Model(&task).Update("verification_pending", false).Error; err != nil {
			return err
		}
		task.VerificationPending = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCompletion(userID, &task, awarded)
	return &task, nil
}

// Delete removes the task. Only the task creator or the creator of its
// project may delete; denial of an existing, readable task is Forbidden.
func (s *TaskService) Delete(userID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("task not found or no access")
			}
			return err
		}
		access := s.access.WithTx(tx)
		if !access.CanAccessTask(userID, &task) {
			return response.NewNotFound("task not found or no access")
		}
		if !access.CanDeleteTask(userID, &task) {
			return response.NewForbidden("only the task creator or the project creator can delete a task")
		}
		// Items attached to the task survive with the link cleared.
		if err := tx.Model(&models.Item{}).Where("task_id = ?", task.ID).
			Update("task_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
}

type awardRecord struct {
	UserID  uint
	BadgeID uint
}

// awardTaskBadge awards the task's badge. Assigned tasks reward the primary
// assignee; unassigned tasks reward the completer.
func awardTaskBadge(tx *gorm.DB, task *models.Task, completer uint) ([]awardRecord, error) {
	recipient := task.PrimaryAssignee()
	if recipient == 0 {
		recipient = completer
	}
	created, err := awardBadge(tx, recipient, *task.BadgeID, models.BadgeSourceTask)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}
	return []awardRecord{{UserID: recipient, BadgeID: *task.BadgeID}}, nil
}

// awardBadge inserts a UserBadge row, treating the (user, badge) unique
// constraint as an idempotent no-op. Reports whether a new row was created.
func awardBadge(tx *gorm.DB, userID, badgeID uint, source string) (bool, error) {
	record := models.UserBadge{
		UserID:    userID,
		BadgeID:   badgeID,
		Source:    source,
		AwardedAt: time.Now(),
	}
	result := tx.Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Attrs(record).
		FirstOrCreate(&models.UserBadge{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// checkQuestCompletion awards the quest badge once every task in the quest
// is done. Each quest task's primary assignee earns the badge.
func checkQuestCompletion(tx *gorm.DB, questID uint) ([]awardRecord, error) {
	var quest models.BadgeQuest
	if err := tx.First(&quest, questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var tasks []models.Task
	if err := tx.Where("quest_id = ?", questID).Find(&tasks).Error; err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	for _, t := range tasks {
		if t.Status != models.TaskStatusDone {
			return nil, nil
		}
	}

	var records []awardRecord
	seen := map[uint]struct{}{}
	for _, t := range tasks {
		recipient := t.PrimaryAssignee()
		if recipient == 0 {
			recipient = t.CreatorID
		}
		if _, done := seen[recipient]; done {
			continue
		}
		seen[recipient] = struct{}{}
		created, err := awardBadge(tx, recipient, quest.BadgeID, models.BadgeSourceQuest)
		if err != nil {
			return nil, err
		}
		if created {
			records = append(records, awardRecord{UserID: recipient, BadgeID: quest.BadgeID})
		}
	}
	return records, nil
}

func (s *TaskService) publishCompletion(actorID uint, task *models.Task, awarded []awardRecord) {
	actor, _ := s.userByID(actorID)
	event := &Event{
		Type:      EventTaskCompleted,
		ActorID:   actorID,
		ActorName: displayName(actor),
		TaskID:    task.ID,
		TaskTitle: task.Title,
	}
	if task.ProjectID != nil {
		event.ProjectID = *task.ProjectID
	}
	s.events.Publish(event)

	for _, award := range awarded {
		var badge models.Badge
		if err := s.db.First(&badge, award.BadgeID).Error; err != nil {
			continue
		}
		s.events.Publish(&Event{
			Type:         EventBadgeAwarded,
			ActorID:      actorID,
			ActorName:    displayName(actor),
			TargetUserID: award.UserID,
			BadgeID:      badge.ID,
			BadgeName:    badge.Name,
			TaskID:       task.ID,
			TaskTitle:    task.Title,
		})
	}
}

func (s *TaskService) userByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
