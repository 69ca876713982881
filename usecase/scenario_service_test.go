package usecase

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/adapters/llm"
	"github.com/w3joe/eloquentai/domain/entities"
)

func testProfile() *entities.UserProfile {
	return &entities.UserProfile{
		NativeLanguage: "en",
		TargetLanguage: "es",
		Bio:            "Software engineer who loves hiking and cooking",
		Profession:     "Software Engineer",
		Interests:      []string{"hiking", "cooking"},
		Level:          "Intermediate",
	}
}

func TestExtractProfile(t *testing.T) {
	generator := llm.NewMockGenerationService(`{
		"profession": "Software Engineer",
		"interests": ["hiking", "cooking", "travel"],
		"conversationTopics": ["tech", "food"],
		"displayName": "Alex",
		"level": "Intermediate"
	}`)
	service := NewScenarioService(generator, zap.NewNop())

	extraction, err := service.ExtractProfile(context.Background(), "I am Alex, a software engineer", []string{"work"}, "es")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if extraction.Profession != "Software Engineer" {
		t.Errorf("Unexpected profession: %s", extraction.Profession)
	}
	if len(extraction.Interests) != 3 {
		t.Errorf("Expected 3 interests, got %d", len(extraction.Interests))
	}
	if extraction.DisplayName != "Alex" {
		t.Errorf("Unexpected display name: %s", extraction.DisplayName)
	}

	if len(generator.Prompts) != 1 {
		t.Fatalf("Expected 1 prompt, got %d", len(generator.Prompts))
	}
	if !strings.Contains(generator.Prompts[0], "Spanish") {
		t.Error("Expected prompt to name the target language")
	}
}

func TestGenerateScenarios(t *testing.T) {
	generator := llm.NewMockGenerationService(`[
		{"id": "1", "title": "Standup in Spanish", "difficulty": "Beginner", "character": {"name": "Lucia", "role": "Colleague"}},
		{"id": "2", "title": "Trail Talk", "difficulty": "Intermediate", "character": {"name": "Mateo", "role": "Hiking Guide"}},
		{"id": "3", "title": "Cooking Class", "difficulty": "Advanced", "character": {"name": "Carmen", "role": "Chef"}}
	]`)
	service := NewScenarioService(generator, zap.NewNop())

	scenarios, err := service.GenerateScenarios(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(scenarios) != 3 {
		t.Fatalf("Expected 3 scenarios, got %d", len(scenarios))
	}
	if scenarios[1].Character.Name != "Mateo" {
		t.Errorf("Unexpected character name: %s", scenarios[1].Character.Name)
	}

	prompt := generator.Prompts[0]
	if !strings.Contains(prompt, "Software Engineer") {
		t.Error("Expected prompt to carry the profession")
	}
	if !strings.Contains(prompt, "hiking, cooking") {
		t.Error("Expected prompt to carry the interests")
	}
}

func TestGenerateScenariosMalformedResponse(t *testing.T) {
	generator := llm.NewMockGenerationService("I cannot do that")
	service := NewScenarioService(generator, zap.NewNop())

	if _, err := service.GenerateScenarios(context.Background(), testProfile()); err == nil {
		t.Fatal("Expected error for malformed response")
	}
}

func TestGenerateCustomScenario(t *testing.T) {
	generator := llm.NewMockGenerationService("```json\n" + `{
		"id": "custom",
		"title": "Negotiating Rent",
		"difficulty": "Intermediate",
		"character": {"name": "Sofia", "role": "Landlord"}
	}` + "\n```")
	service := NewScenarioService(generator, zap.NewNop())

	scenario, err := service.GenerateCustomScenario(context.Background(), "practice negotiating rent with my landlord", testProfile())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if scenario.ID != "custom" {
		t.Errorf("Expected custom scenario ID, got %s", scenario.ID)
	}
	if scenario.Title != "Negotiating Rent" {
		t.Errorf("Unexpected title: %s", scenario.Title)
	}
	if !strings.Contains(generator.Prompts[0], "negotiating rent") {
		t.Error("Expected prompt to carry the user description")
	}
}
