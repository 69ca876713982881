package assessment

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
	"github.com/w3joe/eloquentai/internal/audio"
)

// GoogleAssessor scores utterances with Google Cloud Speech-to-Text word
// confidence. The service exposes no dedicated pronunciation dimensions, so
// per-word accuracy is derived from recognition confidence and the session
// scores from word means. Used as a fallback when Azure is not configured.
type GoogleAssessor struct {
	logger *zap.Logger
}

// NewGoogleAssessor creates a Google-backed assessor. Credentials come from
// the standard GOOGLE_APPLICATION_CREDENTIALS mechanism.
func NewGoogleAssessor(logger *zap.Logger) *GoogleAssessor {
	return &GoogleAssessor{logger: logger}
}

// Assess runs one synchronous recognition over the utterance buffer.
func (g *GoogleAssessor) Assess(ctx context.Context, language string, pcm []byte) (*entities.PronunciationAssessment, error) {
	if len(pcm) == 0 {
		return nil, repositories.ErrNoAudioData
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrCredentialsMissing, err)
	}
	defer client.Close()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:             speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:      int32(audio.TargetSampleRate),
			LanguageCode:         toLocale(language),
			EnableWordConfidence: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrRecognitionFailed, err)
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
		return nil, repositories.ErrNoSpeechDetected
	}
	alt := resp.Results[0].Alternatives[0]
	if alt.Transcript == "" {
		return nil, repositories.ErrNoSpeechDetected
	}

	words := make([]entities.PronunciationWord, 0, len(alt.Words))
	var sum float64
	for _, w := range alt.Words {
		score := float64(w.Confidence) * 100
		sum += score
		words = append(words, entities.PronunciationWord{
			Word:          w.Word,
			AccuracyScore: round(score),
			ErrorType:     "None",
			Tier:          entities.TierForScore(score),
		})
	}

	accuracy := 0
	if len(words) > 0 {
		accuracy = round(sum / float64(len(words)))
	}
	completeness := 0
	if len(words) > 0 {
		completeness = 100
	}

	return &entities.PronunciationAssessment{
		Transcript:        alt.Transcript,
		OverallScore:      accuracy,
		AccuracyScore:     accuracy,
		FluencyScore:      round(float64(alt.Confidence) * 100),
		CompletenessScore: completeness,
		Words:             words,
	}, nil
}
