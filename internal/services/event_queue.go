package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/makerplan/backend/internal/config"
	"github.com/makerplan/backend/pkg/logger"
)

const (
	TaskTypeNotify = "notify:event"
)

// Event types published on membership and task changes.
const (
	EventProjectCreated = "project_created"
	EventMemberInvited  = "member_invited"
	EventMemberAccepted = "member_accepted"
	EventMemberDeclined = "member_declined"
	EventMemberRemoved  = "member_removed"
	EventTaskUpdated    = "task_updated"
	EventTaskCompleted  = "task_completed"
	EventBadgeAwarded   = "badge_awarded"
)

// Event is a fire-and-forget notification payload. Delivery is best-effort:
// the primary write never waits on, or fails because of, a notifier.
type Event struct {
	Type         string `json:"type"`
	ProjectID    uint   `json:"project_id,omitempty"`
	ProjectName  string `json:"project_name,omitempty"`
	ActorID      uint   `json:"actor_id,omitempty"`
	ActorName    string `json:"actor_name,omitempty"`
	TargetUserID uint   `json:"target_user_id,omitempty"`
	TargetEmail  string `json:"target_email,omitempty"`
	TaskID       uint   `json:"task_id,omitempty"`
	TaskTitle    string `json:"task_title,omitempty"`
	BadgeID      uint   `json:"badge_id,omitempty"`
	BadgeName    string `json:"badge_name,omitempty"`
	Role         string `json:"role,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// EventQueue defines the interface for notification event processing
type EventQueue interface {
	// Enqueue adds an event to the queue
	Enqueue(event *Event) error
	// IsAsync returns true if the queue processes events asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global event queue instance
var (
	globalEventQueue EventQueue
	eventQueueOnce   sync.Once
)

// InitEventQueue initializes the global event queue based on config
func InitEventQueue(cfg *config.Config) EventQueue {
	eventQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncEventQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[EventQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalEventQueue = NewSyncEventQueue()
			} else {
				logger.Infof("[EventQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalEventQueue = queue
			}
		} else {
			logger.Infof("[EventQueue] Sync queue initialized (Redis disabled)")
			globalEventQueue = NewSyncEventQueue()
		}
	})
	return globalEventQueue
}

// GetEventQueue returns the global event queue instance
func GetEventQueue() EventQueue {
	return globalEventQueue
}

// AsyncEventQueue implements EventQueue using asynq (Redis-based)
type AsyncEventQueue struct {
	client *asynq.Client
}

// NewAsyncEventQueue creates a new Redis-based async queue
func NewAsyncEventQueue(cfg *config.RedisConfig) (*AsyncEventQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncEventQueue{client: client}, nil
}

// Enqueue adds a notification event to the async queue
func (q *AsyncEventQueue) Enqueue(event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeNotify, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("event", event.Type).Msg("event enqueued")
	return nil
}

func (q *AsyncEventQueue) IsAsync() bool { return true }

func (q *AsyncEventQueue) Close() error { return q.client.Close() }

// SyncEventQueue implements EventQueue by dispatching in-process. Dispatch
// happens on a goroutine so callers never block on notifier latency.
type SyncEventQueue struct {
	processor func(context.Context, *Event) error
}

func NewSyncEventQueue() *SyncEventQueue {
	return &SyncEventQueue{}
}

// SetProcessor sets the function that handles events in sync mode.
func (q *SyncEventQueue) SetProcessor(processor func(context.Context, *Event) error) {
	q.processor = processor
}

func (q *SyncEventQueue) Enqueue(event *Event) error {
	if q.processor == nil {
		return nil
	}
	go func() {
		if err := q.processor(context.Background(), event); err != nil {
			logger.Infof("[EventQueue] Failed to process event %s: %v", event.Type, err)
		}
	}()
	return nil
}

func (q *SyncEventQueue) IsAsync() bool { return false }

func (q *SyncEventQueue) Close() error { return nil }

// EventPublisher is the producer handle services hold. Publishing never
// returns an error to callers; failures are logged and dropped.
type EventPublisher struct {
	queue EventQueue
}

func NewEventPublisher(queue EventQueue) *EventPublisher {
	return &EventPublisher{queue: queue}
}

// Publish enqueues the event, best-effort. Safe on a nil publisher.
func (p *EventPublisher) Publish(event *Event) {
	if p == nil || p.queue == nil || event == nil {
		return
	}
	if err := p.queue.Enqueue(event); err != nil {
		logger.Infof("[EventQueue] Failed to enqueue %s event: %v", event.Type, err)
	}
}
