package entities

import "math"

// PronunciationTier is the coarse color-coding bucket for a word score.
type PronunciationTier string

const (
	TierHigh   PronunciationTier = "high"
	TierMedium PronunciationTier = "medium"
	TierLow    PronunciationTier = "low"
)

// TierForScore classifies a 0-100 accuracy score into a tier. Thresholds
// must stay in sync with the UI color coding: >=80 high, >=60 medium.
func TierForScore(score float64) PronunciationTier {
	if score >= 80 {
		return TierHigh
	}
	if score >= 60 {
		return TierMedium
	}
	return TierLow
}

// PronunciationPhoneme is a single phoneme score within a word.
type PronunciationPhoneme struct {
	Phoneme       string `json:"phoneme" bson:"phoneme"`
	AccuracyScore int    `json:"accuracyScore" bson:"accuracy_score"`
}

// PronunciationWord is the per-word breakdown of an assessment.
type PronunciationWord struct {
	Word          string                 `json:"word" bson:"word"`
	AccuracyScore int                    `json:"accuracyScore" bson:"accuracy_score"`
	ErrorType     string                 `json:"errorType" bson:"error_type"`
	Tier          PronunciationTier      `json:"tier" bson:"tier"`
	Phonemes      []PronunciationPhoneme `json:"phonemes,omitempty" bson:"phonemes,omitempty"`
}

// PronunciationAssessment is the normalized result of scoring one user
// utterance. Immutable once produced.
type PronunciationAssessment struct {
	Transcript        string              `json:"transcript" bson:"transcript"`
	OverallScore      int                 `json:"overall_score" bson:"overall_score"`
	AccuracyScore     int                 `json:"accuracyScore" bson:"accuracy_score"`
	FluencyScore      int                 `json:"fluencyScore" bson:"fluency_score"`
	CompletenessScore int                 `json:"completenessScore" bson:"completeness_score"`
	Words             []PronunciationWord `json:"words" bson:"words"`
}

// MinScorableWords is the minimum number of recognized words for an
// assessment to be considered reliable. Shorter utterances are dropped.
const MinScorableWords = 2

// Scorable reports whether the assessment carries enough recognized words
// to be kept.
func (a *PronunciationAssessment) Scorable() bool {
	return a != nil && len(a.Words) >= MinScorableWords
}

// AggregatePronunciationScore computes the session-level pronunciation score
// as the rounded mean of every per-word accuracy score across all
// assessments. It is always recomputed from the full list and returns 0 when
// no words were scored.
func AggregatePronunciationScore(assessments []PronunciationAssessment) int {
	var sum, count int
	for _, a := range assessments {
		for _, w := range a.Words {
			sum += w.AccuracyScore
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}
