package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/makerplan/backend/internal/models"
)

func TestBuildMessage(t *testing.T) {
	svc := NewNotificationService(nil)

	tests := []struct {
		name  string
		event *Event
		want  []string
	}{
		{
			name: "project created",
			event: &Event{
				Type:        EventProjectCreated,
				ActorName:   "alice",
				ProjectName: "Robot Arm",
			},
			want: []string{"alice", "created project", "Robot Arm"},
		},
		{
			name: "member invited",
			event: &Event{
				Type:        EventMemberInvited,
				ActorName:   "alice",
				TargetEmail: "bob@example.com",
				ProjectName: "Robot Arm",
				Role:        models.RoleContributor,
			},
			want: []string{"invited", "bob@example.com", "contributor"},
		},
		{
			name: "task completed",
			event: &Event{
				Type:        EventTaskCompleted,
				ActorName:   "bob",
				TaskTitle:   "Wire the servos",
				ProjectName: "Robot Arm",
			},
			want: []string{"bob", "completed task", "Wire the servos", "**Project**: Robot Arm"},
		},
		{
			name: "badge awarded",
			event: &Event{
				Type:      EventBadgeAwarded,
				BadgeName: "First Build",
			},
			want: []string{"Badge", "First Build", "awarded"},
		},
		{
			name:  "unknown type falls back to the type name",
			event: &Event{Type: "something_new"},
			want:  []string{"something_new"},
		},
		{
			name: "detail is appended",
			event: &Event{
				Type:   EventTaskUpdated,
				Detail: "status: todo -> in_progress",
			},
			want: []string{"status: todo -> in_progress"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := svc.buildMessage(tt.event)
			for _, want := range tt.want {
				if !strings.Contains(msg, want) {
					t.Errorf("message %q missing %q", msg, want)
				}
			}
		})
	}

	// The project line is part of the creation headline already, not a
	// second mention.
	created := svc.buildMessage(&Event{Type: EventProjectCreated, ProjectName: "Robot Arm"})
	if strings.Contains(created, "**Project**:") {
		t.Errorf("project_created should not repeat the project line: %q", created)
	}
}

func TestSigningHelpers(t *testing.T) {
	svc := NewNotificationService(nil)

	if got := svc.dingTalkSign(1609459200, "secret"); got != "tsxuZJ2PMTIQYMOXI71YKe6833j/Ll2UyBtygDi/5pg=" {
		t.Errorf("dingTalkSign = %q", got)
	}
	if got := svc.feishuSign(1609459200, "secret"); got != "2Ca3d39kAlzMRirAtNtlQHj+zkWq7TSIpB+IuK1nzjk=" {
		t.Errorf("feishuSign = %q", got)
	}
	if svc.dingTalkSign(1, "a") == svc.dingTalkSign(2, "a") {
		t.Error("dingTalkSign should vary with the timestamp")
	}
}

func TestDispatch_SkipsInactiveBots(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db)

	var mu sync.Mutex
	var bodies []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		bodies = append(bodies, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	seedBot := func(name, botType string, active bool) {
		bot := &models.NotifierBot{Name: name, Type: botType, Webhook: server.URL, IsActive: active}
		if err := db.Create(bot).Error; err != nil {
			t.Fatalf("create bot %s: %v", name, err)
		}
	}
	seedBot("team-chat", "wechat_work", true)
	seedBot("raw-hook", "generic", true)
	seedBot("muted", "slack", false)

	err := svc.Dispatch(context.Background(), &Event{
		Type:        EventTaskCompleted,
		ActorName:   "bob",
		TaskTitle:   "Wire the servos",
		ProjectName: "Robot Arm",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("deliveries = %d, want 2 (inactive bot must be skipped)", len(bodies))
	}

	var sawMarkdown, sawRawEvent bool
	for _, body := range bodies {
		if body["msgtype"] == "markdown" {
			sawMarkdown = true
		}
		if body["type"] == EventTaskCompleted {
			sawRawEvent = true
		}
	}
	if !sawMarkdown {
		t.Error("wechat_work bot did not receive a markdown payload")
	}
	if !sawRawEvent {
		t.Error("generic bot did not receive the raw event")
	}
}

func TestDispatch_FailingBotDoesNotBlockOthers(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer failing.Close()

	var delivered int
	var mu sync.Mutex
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		delivered++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	for _, bot := range []*models.NotifierBot{
		{Name: "broken", Type: "generic", Webhook: failing.URL, IsActive: true},
		{Name: "healthy", Type: "generic", Webhook: healthy.URL, IsActive: true},
	} {
		if err := db.Create(bot).Error; err != nil {
			t.Fatalf("create bot: %v", err)
		}
	}

	err := svc.Dispatch(context.Background(), &Event{Type: EventMemberAccepted, ActorName: "bob"})
	if err == nil {
		t.Error("expected dispatch to surface the failing bot's error")
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Errorf("healthy bot deliveries = %d, want 1", delivered)
	}
}

func TestDispatch_NoBotsIsNoop(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db)

	if err := svc.Dispatch(context.Background(), &Event{Type: EventTaskUpdated}); err != nil {
		t.Fatalf("dispatch with no bots: %v", err)
	}
}

func TestDingTalkWebhook_SignedURL(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db)

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bot := &models.NotifierBot{
		Name:     "dt",
		Type:     "dingtalk",
		Webhook:  server.URL + "/robot/send?access_token=abc",
		Secret:   "s3cret",
		IsActive: true,
	}
	if err := db.Create(bot).Error; err != nil {
		t.Fatalf("create bot: %v", err)
	}

	if err := svc.Dispatch(context.Background(), &Event{Type: EventBadgeAwarded, BadgeName: "First Build"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if !strings.Contains(gotQuery, "timestamp=") || !strings.Contains(gotQuery, "sign=") {
		t.Errorf("signed dingtalk URL missing timestamp/sign: %q", gotQuery)
	}
}
