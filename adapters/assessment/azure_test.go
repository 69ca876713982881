package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
)

const azureSuccessJSON = `{
	"RecognitionStatus": "Success",
	"DisplayText": "Un cafe por favor.",
	"NBest": [{
		"Display": "Un cafe por favor.",
		"PronunciationAssessment": {
			"AccuracyScore": 84.5,
			"FluencyScore": 91.2,
			"CompletenessScore": 100.0,
			"PronScore": 87.3
		},
		"Words": [
			{"Word": "un", "PronunciationAssessment": {"AccuracyScore": 95.0, "ErrorType": "None"},
				"Phonemes": [{"Phoneme": "u", "PronunciationAssessment": {"AccuracyScore": 94.4}}]},
			{"Word": "cafe", "PronunciationAssessment": {"AccuracyScore": 72.6, "ErrorType": ""}},
			{"Word": "por", "PronunciationAssessment": {"AccuracyScore": 55.0, "ErrorType": "Mispronunciation"}},
			{"Word": "favor", "PronunciationAssessment": {"AccuracyScore": 88.0, "ErrorType": "None"}}
		]
	}]
}`

func decodeAzure(t *testing.T, raw string) *azureResponse {
	t.Helper()
	var result azureResponse
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("Failed to decode fixture: %v", err)
	}
	return &result
}

func TestNormalizeAzureResponseSuccess(t *testing.T) {
	assessment, err := normalizeAzureResponse(decodeAzure(t, azureSuccessJSON))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if assessment.Transcript != "Un cafe por favor." {
		t.Errorf("Unexpected transcript: %s", assessment.Transcript)
	}
	if assessment.OverallScore != 87 {
		t.Errorf("Expected overall score 87, got %d", assessment.OverallScore)
	}
	if assessment.AccuracyScore != 85 {
		t.Errorf("Expected accuracy score 85, got %d", assessment.AccuracyScore)
	}
	if assessment.FluencyScore != 91 {
		t.Errorf("Expected fluency score 91, got %d", assessment.FluencyScore)
	}
	if len(assessment.Words) != 4 {
		t.Fatalf("Expected 4 words, got %d", len(assessment.Words))
	}

	first := assessment.Words[0]
	if first.AccuracyScore != 95 || first.Tier != entities.TierHigh {
		t.Errorf("Unexpected first word scoring: %+v", first)
	}
	if len(first.Phonemes) != 1 || first.Phonemes[0].AccuracyScore != 94 {
		t.Errorf("Unexpected phoneme breakdown: %+v", first.Phonemes)
	}

	// Missing error type defaults to None.
	if assessment.Words[1].ErrorType != "None" {
		t.Errorf("Expected defaulted error type None, got %s", assessment.Words[1].ErrorType)
	}
	if assessment.Words[1].Tier != entities.TierMedium {
		t.Errorf("Expected medium tier for 72.6, got %s", assessment.Words[1].Tier)
	}
	if assessment.Words[2].Tier != entities.TierLow {
		t.Errorf("Expected low tier for 55, got %s", assessment.Words[2].Tier)
	}
}

func TestNormalizeAzureResponseNoSpeech(t *testing.T) {
	for _, status := range []string{"NoMatch", "InitialSilenceTimeout", "BabbleTimeout"} {
		_, err := normalizeAzureResponse(&azureResponse{RecognitionStatus: status})
		if !errors.Is(err, repositories.ErrNoSpeechDetected) {
			t.Errorf("Expected ErrNoSpeechDetected for %s, got %v", status, err)
		}
	}

	// Success with no hypotheses is treated as silence too.
	_, err := normalizeAzureResponse(&azureResponse{RecognitionStatus: "Success"})
	if !errors.Is(err, repositories.ErrNoSpeechDetected) {
		t.Errorf("Expected ErrNoSpeechDetected for empty NBest, got %v", err)
	}
}

func TestNormalizeAzureResponseUnknownStatus(t *testing.T) {
	_, err := normalizeAzureResponse(&azureResponse{RecognitionStatus: "Error"})
	if !errors.Is(err, repositories.ErrRecognitionFailed) {
		t.Errorf("Expected ErrRecognitionFailed, got %v", err)
	}
}

func TestAssessWithoutCredentials(t *testing.T) {
	t.Setenv("AZURE_SPEECH_KEY", "")
	t.Setenv("AZURE_SPEECH_REGION", "")
	assessor := NewAzureAssessor(zap.NewNop())

	if assessor.Configured() {
		t.Fatal("Expected assessor to report missing credentials")
	}
	_, err := assessor.Assess(context.Background(), "es", []byte{0x01, 0x02})
	if !errors.Is(err, repositories.ErrCredentialsMissing) {
		t.Errorf("Expected ErrCredentialsMissing, got %v", err)
	}
}

func TestAssessEmptyAudio(t *testing.T) {
	t.Setenv("AZURE_SPEECH_KEY", "test-key")
	t.Setenv("AZURE_SPEECH_REGION", "westeurope")
	assessor := NewAzureAssessor(zap.NewNop())

	_, err := assessor.Assess(context.Background(), "es", nil)
	if !errors.Is(err, repositories.ErrNoAudioData) {
		t.Errorf("Expected ErrNoAudioData, got %v", err)
	}
}

func TestToLocale(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"es", "es-ES"},
		{"en", "en-US"},
		{"ja", "ja-JP"},
		{"xx", "xx"},
	}
	for _, c := range cases {
		if got := toLocale(c.code); got != c.want {
			t.Errorf("toLocale(%s) = %s, want %s", c.code, got, c.want)
		}
	}
}
