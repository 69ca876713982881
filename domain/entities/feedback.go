package entities

import "time"

// CorrectionItem is one correction the tutor model suggested.
type CorrectionItem struct {
	Original    string `json:"original" bson:"original"`
	Correction  string `json:"correction" bson:"correction"`
	Explanation string `json:"explanation" bson:"explanation"`
}

// VocabularyItem is one vocabulary suggestion from the tutor model.
type VocabularyItem struct {
	Word        string `json:"word" bson:"word"`
	Translation string `json:"translation" bson:"translation"`
	Example     string `json:"example" bson:"example"`
}

// FeedbackRecord is the end-of-session feedback combining the tutor model's
// analysis with the accumulated pronunciation assessments. Produced exactly
// once per session and persisted as-is.
type FeedbackRecord struct {
	ID                 string                    `json:"id,omitempty" bson:"_id,omitempty"`
	FluencyScore       int                       `json:"fluencyScore" bson:"fluency_score"`
	Corrections        []CorrectionItem          `json:"corrections" bson:"corrections"`
	Vocabulary         []VocabularyItem          `json:"vocabulary" bson:"vocabulary"`
	Summary            string                    `json:"summary" bson:"summary"`
	FocusTip           string                    `json:"focusTip" bson:"focus_tip"`
	Duration           int                       `json:"duration" bson:"duration"` // seconds
	ScenarioName       string                    `json:"scenarioName" bson:"scenario_name"`
	Language           string                    `json:"language" bson:"language"`
	Date               time.Time                 `json:"date" bson:"date"`
	Pronunciation      []PronunciationAssessment `json:"pronunciation" bson:"pronunciation"`
	PronunciationScore int                       `json:"pronunciationScore" bson:"pronunciation_score"`
}
