package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
)

// ProfileExtraction is the structured result of analyzing a free-text bio.
type ProfileExtraction struct {
	Profession         string   `json:"profession"`
	Interests          []string `json:"interests"`
	ConversationTopics []string `json:"conversationTopics"`
	DisplayName        string   `json:"displayName"`
	Level              string   `json:"level"`
}

// ScenarioService generates personalized practice scenarios and extracts
// structured profiles from free-text bios via the generation service.
type ScenarioService struct {
	generator repositories.GenerationService
	logger    *zap.Logger
}

// NewScenarioService creates a new scenario service
func NewScenarioService(generator repositories.GenerationService, logger *zap.Logger) *ScenarioService {
	return &ScenarioService{
		generator: generator,
		logger:    logger,
	}
}

// ExtractProfile derives a structured profile from the user's bio and
// context tags.
func (s *ScenarioService) ExtractProfile(ctx context.Context, bio string, contextTags []string, targetLanguage string) (*ProfileExtraction, error) {
	tags, _ := json.Marshal(contextTags)
	prompt := fmt.Sprintf(`You are a language learning app assistant. Analyze the following user bio and context tags, then extract a structured profile.

Bio: "%s"
Context tags: %s
Target language: %s

Return a JSON object with exactly these fields:
- "profession": a short profession title (e.g. "Software Engineer", "Marketing Manager")
- "interests": array of 3-5 key interests relevant to language practice
- "conversationTopics": array of 3-4 conversation topics they'd likely encounter in their target language
- "displayName": extract or infer a short display name (first name or first two words)
- "level": infer their likely language level from context ("Beginner", "Intermediate", or "Advanced")

Return ONLY valid JSON, no markdown fences.`, bio, tags, entities.LanguageName(targetLanguage))

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("profile extraction failed: %w", err)
	}

	var extraction ProfileExtraction
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &extraction); err != nil {
		return nil, fmt.Errorf("malformed profile extraction response: %w", err)
	}
	return &extraction, nil
}

// GenerateScenarios produces three scenarios, one per difficulty level,
// personalized to the profile.
func (s *ScenarioService) GenerateScenarios(ctx context.Context, profile *entities.UserProfile) ([]entities.Scenario, error) {
	langName := entities.LanguageName(profile.TargetLanguage)
	tags, _ := json.Marshal(profile.ContextTags)

	profession := profile.Profession
	if profession == "" {
		profession = "Not specified"
	}
	interests := strings.Join(profile.Interests, ", ")
	if interests == "" {
		interests = "General"
	}

	prompt := fmt.Sprintf(`You are a language learning app. Generate 3 conversation practice scenarios for a user learning %[1]s.

User profile:
- Profession: %[2]s
- Interests: %[3]s
- Level: %[4]s
- Bio: "%[5]s"
- Context tags: %[6]s

Create 3 diverse scenarios at different difficulty levels (one Beginner, one Intermediate, one Advanced) that are personalized to this user's profession and interests.

Return a JSON array where each scenario has:
- "id": string (1, 2, 3)
- "title": short engaging title (under 60 chars)
- "description": one-sentence description
- "difficulty": "Beginner" | "Intermediate" | "Advanced"
- "duration": estimated minutes (3-10)
- "icon": a single relevant emoji
- "scene": 1-2 sentence scene-setting description in second person
- "character": { "name": a %[1]s-appropriate name, "role": their role, "personality": 2-3 personality traits, "voiceLabel": "%[1]s Male/Female · Style" }
- "tips": array of 2 specific language tips for this scenario

Return ONLY valid JSON array, no markdown fences.`,
		langName, profession, interests, profile.Level, profile.Bio, tags)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("scenario generation failed: %w", err)
	}

	var scenarios []entities.Scenario
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &scenarios); err != nil {
		return nil, fmt.Errorf("malformed scenario response: %w", err)
	}
	return scenarios, nil
}

// GenerateCustomScenario builds one scenario from a user-provided
// description.
func (s *ScenarioService) GenerateCustomScenario(ctx context.Context, description string, profile *entities.UserProfile) (*entities.Scenario, error) {
	langName := entities.LanguageName(profile.TargetLanguage)

	profession := profile.Profession
	if profession == "" {
		profession = "Not specified"
	}

	prompt := fmt.Sprintf(`You are a language learning app. Create a conversation practice scenario based on this user request:
"%[1]s"

User is learning %[2]s at %[3]s level.
Profession: %[4]s

Return a JSON object with:
- "id": "custom"
- "title": short engaging title (under 60 chars)
- "description": one-sentence description
- "difficulty": "%[3]s"
- "duration": estimated minutes (3-10)
- "icon": a single relevant emoji
- "scene": 1-2 sentence scene-setting description in second person
- "character": { "name": a %[2]s-appropriate name, "role": their role, "personality": 2-3 personality traits, "voiceLabel": "%[2]s Male/Female · Style" }
- "tips": array of 2 specific language tips for this scenario

Return ONLY valid JSON, no markdown fences.`,
		description, langName, profile.Level, profession)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("custom scenario generation failed: %w", err)
	}

	var scenario entities.Scenario
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &scenario); err != nil {
		return nil, fmt.Errorf("malformed scenario response: %w", err)
	}
	return &scenario, nil
}
