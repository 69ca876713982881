package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
)

// degradedSummary is shown when feedback generation failed. Ending a session
// must never leave the user stuck, so a placeholder record is produced
// instead of surfacing the error.
const degradedSummary = "Could not generate feedback for this session. Your pronunciation scores were still recorded. Please try again after your next conversation."

// FeedbackService turns a finished session's transcript into a structured
// feedback record via the generation service.
type FeedbackService struct {
	generator repositories.GenerationService
	logger    *zap.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(generator repositories.GenerationService, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{
		generator: generator,
		logger:    logger,
	}
}

// BuildFeedbackRecord sends the transcript to the generation service and
// normalizes the free-form JSON response. Missing or malformed fields are
// coerced rather than treated as errors: absent arrays become empty, a bare
// object becomes a one-element array, missing scalars default to zero values.
func (s *FeedbackService) BuildFeedbackRecord(
	ctx context.Context,
	transcript []entities.TranscriptEntry,
	scenario entities.Scenario,
	targetLanguage string,
	durationSeconds int,
) (*entities.FeedbackRecord, error) {
	langName := entities.LanguageName(targetLanguage)

	raw, err := s.generator.Generate(ctx, feedbackPrompt(transcript, scenario, langName))
	if err != nil {
		return nil, fmt.Errorf("feedback generation failed: %w", err)
	}

	var parsed struct {
		FluencyScore json.RawMessage `json:"fluencyScore"`
		Corrections  json.RawMessage `json:"corrections"`
		Vocabulary   json.RawMessage `json:"vocabulary"`
		Summary      json.RawMessage `json:"summary"`
		FocusTip     json.RawMessage `json:"focusTip"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed feedback response: %w", err)
	}

	return &entities.FeedbackRecord{
		FluencyScore: coerceScore(parsed.FluencyScore),
		Corrections:  coerceList[entities.CorrectionItem](parsed.Corrections),
		Vocabulary:   coerceList[entities.VocabularyItem](parsed.Vocabulary),
		Summary:      coerceString(parsed.Summary),
		FocusTip:     coerceString(parsed.FocusTip),
		Duration:     durationSeconds,
		ScenarioName: scenario.Title,
		Language:     langName,
		Date:         time.Now(),
	}, nil
}

// Degraded builds the placeholder record used when generation fails.
func (s *FeedbackService) Degraded(scenario entities.Scenario, targetLanguage string, durationSeconds int) *entities.FeedbackRecord {
	return &entities.FeedbackRecord{
		FluencyScore: 0,
		Corrections:  []entities.CorrectionItem{},
		Vocabulary:   []entities.VocabularyItem{},
		Summary:      degradedSummary,
		FocusTip:     "",
		Duration:     durationSeconds,
		ScenarioName: scenario.Title,
		Language:     entities.LanguageName(targetLanguage),
		Date:         time.Now(),
	}
}

func feedbackPrompt(transcript []entities.TranscriptEntry, scenario entities.Scenario, langName string) string {
	var lines []string
	var userLines []string
	for _, entry := range transcript {
		speaker := "AI"
		if entry.Role == entities.TranscriptRoleUser {
			speaker = "User"
			userLines = append(userLines, entry.Text)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, entry.Text))
	}

	return fmt.Sprintf(`You are a language tutor analyzing a %[1]s conversation practice session.

Scenario: "%[2]s"
Character: %[3]s (%[4]s)

Full transcript:
%[5]s

User's messages in %[1]s:
%[6]s

Analyze the user's %[1]s usage and return a JSON object with:
- "fluencyScore": number 0-100 rating their overall fluency
- "corrections": array of objects with { "original": exact text the user said wrong, "correction": corrected version, "explanation": brief grammar/usage explanation }. Include 2-5 corrections. If the user made no mistakes, include 1-2 suggestions for more natural phrasing.
- "vocabulary": array of 3-5 objects with { "word": a %[1]s word from the conversation or related to the topic, "translation": English translation, "example": example sentence using the word }
- "summary": 2-3 sentence summary of how they did, what was good, what to improve
- "focusTip": one specific actionable tip for their next practice session

Return ONLY valid JSON, no markdown fences.`,
		langName,
		scenario.Title,
		scenario.Character.Name,
		scenario.Character.Role,
		strings.Join(lines, "\n"),
		strings.Join(userLines, "\n"),
	)
}
