package assessment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
	"github.com/w3joe/eloquentai/internal/audio"
)

// AzureAssessor scores utterances with the Azure Speech pronunciation
// assessment REST API. Input audio must be mono 16kHz 16-bit PCM.
type AzureAssessor struct {
	key    string
	region string
	client *http.Client
	logger *zap.Logger
}

// NewAzureAssessor creates an assessor reading AZURE_SPEECH_KEY and
// AZURE_SPEECH_REGION. Missing credentials are reported per call, not here,
// so the app can still run with assessment disabled.
func NewAzureAssessor(logger *zap.Logger) *AzureAssessor {
	return &AzureAssessor{
		key:    os.Getenv("AZURE_SPEECH_KEY"),
		region: os.Getenv("AZURE_SPEECH_REGION"),
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Configured reports whether service credentials are present.
func (a *AzureAssessor) Configured() bool {
	return a.key != "" && a.region != ""
}

type azureWordAssessment struct {
	AccuracyScore float64 `json:"AccuracyScore"`
	ErrorType     string  `json:"ErrorType"`
}

type azurePhoneme struct {
	Phoneme                 string              `json:"Phoneme"`
	PronunciationAssessment azureWordAssessment `json:"PronunciationAssessment"`
}

type azureWord struct {
	Word                    string              `json:"Word"`
	PronunciationAssessment azureWordAssessment `json:"PronunciationAssessment"`
	Phonemes                []azurePhoneme      `json:"Phonemes"`
}

type azureNBest struct {
	Display                 string `json:"Display"`
	PronunciationAssessment struct {
		AccuracyScore     float64 `json:"AccuracyScore"`
		FluencyScore      float64 `json:"FluencyScore"`
		CompletenessScore float64 `json:"CompletenessScore"`
		PronScore         float64 `json:"PronScore"`
	} `json:"PronunciationAssessment"`
	Words []azureWord `json:"Words"`
}

type azureResponse struct {
	RecognitionStatus string       `json:"RecognitionStatus"`
	DisplayText       string       `json:"DisplayText"`
	NBest             []azureNBest `json:"NBest"`
}

// Assess submits one utterance for unscripted pronunciation assessment and
// normalizes the response.
func (a *AzureAssessor) Assess(ctx context.Context, language string, pcm []byte) (*entities.PronunciationAssessment, error) {
	if !a.Configured() {
		return nil, repositories.ErrCredentialsMissing
	}
	if len(pcm) == 0 {
		return nil, repositories.ErrNoAudioData
	}

	// Unscripted (free speech) assessment: empty reference text.
	assessmentConfig, _ := json.Marshal(map[string]interface{}{
		"ReferenceText":   "",
		"GradingSystem":   "HundredMark",
		"Granularity":     "Phoneme",
		"Dimension":       "Comprehensive",
		"PhonemeAlphabet": "IPA",
		"EnableMiscue":    false,
	})

	endpoint := fmt.Sprintf(
		"https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1?language=%s&format=detailed",
		a.region, toLocale(language))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		bytes.NewReader(audio.WAVEnvelope(pcm, audio.TargetSampleRate)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrRecognitionFailed, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(assessmentConfig))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrRecognitionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service returned status %d", repositories.ErrRecognitionFailed, resp.StatusCode)
	}

	var result azureResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", repositories.ErrRecognitionFailed, err)
	}

	return normalizeAzureResponse(&result)
}

func normalizeAzureResponse(result *azureResponse) (*entities.PronunciationAssessment, error) {
	switch result.RecognitionStatus {
	case "Success":
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		return nil, repositories.ErrNoSpeechDetected
	default:
		return nil, fmt.Errorf("%w: recognition status %s", repositories.ErrRecognitionFailed, result.RecognitionStatus)
	}

	if len(result.NBest) == 0 {
		return nil, repositories.ErrNoSpeechDetected
	}
	best := result.NBest[0]

	words := make([]entities.PronunciationWord, 0, len(best.Words))
	for _, w := range best.Words {
		acc := w.PronunciationAssessment.AccuracyScore
		errorType := w.PronunciationAssessment.ErrorType
		if errorType == "" {
			errorType = "None"
		}

		phonemes := make([]entities.PronunciationPhoneme, 0, len(w.Phonemes))
		for _, p := range w.Phonemes {
			phonemes = append(phonemes, entities.PronunciationPhoneme{
				Phoneme:       p.Phoneme,
				AccuracyScore: round(p.PronunciationAssessment.AccuracyScore),
			})
		}

		words = append(words, entities.PronunciationWord{
			Word:          w.Word,
			AccuracyScore: round(acc),
			ErrorType:     errorType,
			Tier:          entities.TierForScore(acc),
			Phonemes:      phonemes,
		})
	}

	transcript := best.Display
	if transcript == "" {
		transcript = result.DisplayText
	}

	return &entities.PronunciationAssessment{
		Transcript:        transcript,
		OverallScore:      round(best.PronunciationAssessment.PronScore),
		AccuracyScore:     round(best.PronunciationAssessment.AccuracyScore),
		FluencyScore:      round(best.PronunciationAssessment.FluencyScore),
		CompletenessScore: round(best.PronunciationAssessment.CompletenessScore),
		Words:             words,
	}, nil
}

func round(f float64) int {
	return int(math.Round(f))
}
