package entities

// Character describes the AI persona the learner talks to in a scenario.
type Character struct {
	Name        string `json:"name" bson:"name"`
	Role        string `json:"role" bson:"role"`
	Personality string `json:"personality" bson:"personality"`
	VoiceLabel  string `json:"voiceLabel" bson:"voice_label"`
}

// Scenario represents one conversation practice scenario
type Scenario struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Difficulty  string    `json:"difficulty" bson:"difficulty"` // "Beginner", "Intermediate" or "Advanced"
	Duration    int       `json:"duration" bson:"duration"`     // estimated minutes
	Icon        string    `json:"icon" bson:"icon"`
	Scene       string    `json:"scene" bson:"scene"`
	Character   Character `json:"character" bson:"character"`
	Tips        []string  `json:"tips" bson:"tips"`
}
