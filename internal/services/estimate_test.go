package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/makerplan/backend/internal/config"
	"github.com/makerplan/backend/internal/models"
)

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
		ok      bool
	}{
		{"canonical form", "Estimated price: $42.50", 42.50, true},
		{"no dollar sign", "Estimated price: 42.50", 42.50, true},
		{"full-width colon", "Estimated price：$19", 19, true},
		{"price prefix only", "The price: $3.99 seems fair.", 3.99, true},
		{"bare dollar amount", "I'd say around $120 for this.", 120, true},
		{"bare number as last resort", "Roughly 15", 15, true},
		{"prefers labeled price over earlier numbers", "Based on 3 vendors, estimated price: $25", 25, true},
		{"integer", "Estimated price: $7", 7, true},
		{"no number at all", "I cannot estimate this item.", 0, false},
		{"empty reply", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractPrice(tt.content)
			if ok != tt.ok || got != tt.want {
				t.Errorf("extractPrice(%q) = (%v, %v), want (%v, %v)", tt.content, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBuildPricePrompt(t *testing.T) {
	item := &models.Item{
		Name:        "Stepper motor",
		Description: "NEMA 17, 1.8 degree",
		ItemType:    models.ItemTypeNeededSupply,
	}
	prompt := buildPricePrompt(item)

	for _, want := range []string{"Stepper motor", "NEMA 17", models.ItemTypeNeededSupply, "Estimated price: $"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	bare := buildPricePrompt(&models.Item{Name: "Screws", ItemType: models.ItemTypeOwnedResource})
	if strings.Contains(bare, "Description:") {
		t.Errorf("empty description should not produce a Description line:\n%s", bare)
	}
}

func TestGetOrderedConfigs(t *testing.T) {
	db := setupTestDB(t)

	seed := func(name string, isDefault, isActive bool) {
		cfg := &models.EstimatorConfig{
			Name: name, Provider: "openai", APIKey: "k", Model: "m",
			IsDefault: isDefault, IsActive: isActive,
		}
		if err := db.Create(cfg).Error; err != nil {
			t.Fatalf("seed config %s: %v", name, err)
		}
	}
	seed("backup-a", false, true)
	seed("primary", true, true)
	seed("disabled", false, false)

	svc := NewEstimateService(db, nil)
	configs := svc.getOrderedConfigs()
	if len(configs) != 2 {
		t.Fatalf("configs = %d, want 2 (disabled excluded)", len(configs))
	}
	if configs[0].Name != "primary" {
		t.Errorf("first config = %q, want the default", configs[0].Name)
	}
	if configs[1].Name != "backup-a" {
		t.Errorf("second config = %q, want the backup", configs[1].Name)
	}
}

func TestGetOrderedConfigs_FileFallback(t *testing.T) {
	db := setupTestDB(t)

	svc := NewEstimateService(db, &config.EstimatorConfig{
		BaseURL: "https://api.example.com/v1",
		APIKey:  "file-key",
		Model:   "gpt-4o-mini",
	})
	configs := svc.getOrderedConfigs()
	if len(configs) != 1 || configs[0].Name != "fallback" {
		t.Fatalf("expected the file fallback config, got %+v", configs)
	}

	// No rows and no file key means nothing to try.
	empty := NewEstimateService(db, &config.EstimatorConfig{})
	if got := empty.getOrderedConfigs(); len(got) != 0 {
		t.Errorf("expected no configs, got %d", len(got))
	}
}

func TestEstimateItemPrice_OpenAICompatible(t *testing.T) {
	db := setupTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Estimated price: $42.50"}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	cfg := &models.EstimatorConfig{
		Name: "local", Provider: "openai",
		BaseURL: server.URL + "/v1", APIKey: "test-key", Model: "test",
		IsDefault: true, IsActive: true,
	}
	if err := db.Create(cfg).Error; err != nil {
		t.Fatalf("seed config: %v", err)
	}

	svc := NewEstimateService(db, nil)
	price, err := svc.EstimateItemPrice(context.Background(), &models.Item{
		Name:     "Stepper motor",
		ItemType: models.ItemTypeNeededSupply,
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if price != 42.50 {
		t.Errorf("price = %v, want 42.50", price)
	}
}

func TestEstimateItemPrice_NoConfigs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEstimateService(db, nil)

	_, err := svc.EstimateItemPrice(context.Background(), &models.Item{Name: "Widget"})
	if err == nil {
		t.Fatal("expected an error with no estimator configured")
	}
}

func TestEstimateItemPrice_FallsBackToNextEstimator(t *testing.T) {
	db := setupTestDB(t)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "$9.99"}, "finish_reason": "stop"}]
		}`))
	}))
	defer working.Close()

	for _, cfg := range []*models.EstimatorConfig{
		{Name: "primary", Provider: "openai", BaseURL: broken.URL + "/v1", APIKey: "k", Model: "m", IsDefault: true, IsActive: true},
		{Name: "backup", Provider: "openai", BaseURL: working.URL + "/v1", APIKey: "k", Model: "m", IsActive: true},
	} {
		if err := db.Create(cfg).Error; err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}

	svc := NewEstimateService(db, nil)
	price, err := svc.EstimateItemPrice(context.Background(), &models.Item{
		Name:     "Hinge",
		ItemType: models.ItemTypeNeededSupply,
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if price != 9.99 {
		t.Errorf("price = %v, want 9.99", price)
	}
}
