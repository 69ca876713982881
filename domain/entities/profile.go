package entities

import "errors"

// Language pairs a short language code with its display name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists the languages the app can be practiced in.
var Languages = []Language{
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
	{Code: "ar", Name: "Arabic"},
	{Code: "en", Name: "English"},
}

// LanguageName resolves a short code to a display name, falling back to the
// code itself for unknown languages.
func LanguageName(code string) string {
	for _, l := range Languages {
		if l.Code == code {
			return l.Name
		}
	}
	return code
}

// UserProfile represents a learner's profile
type UserProfile struct {
	ID                 string   `json:"id,omitempty" bson:"_id,omitempty"`
	NativeLanguage     string   `json:"native_language" bson:"native_language"`
	TargetLanguage     string   `json:"target_language" bson:"target_language"`
	Bio                string   `json:"bio" bson:"bio"`
	ContextTags        []string `json:"context_tags" bson:"context_tags"`
	Profession         string   `json:"profession" bson:"profession"`
	Interests          []string `json:"interests" bson:"interests"`
	ConversationTopics []string `json:"conversation_topics" bson:"conversation_topics"`
	Level              string   `json:"level" bson:"level"`
	DisplayName        string   `json:"display_name" bson:"display_name"`
}

// Validate validates the profile data
func (p *UserProfile) Validate() error {
	if p.TargetLanguage == "" {
		return errors.New("target language is required")
	}
	if p.NativeLanguage == "" {
		return errors.New("native language is required")
	}
	return nil
}
