package models

// PipelineStage is one step in a crop's fixed, ordered task sequence.
type PipelineStage struct {
	ID           int    `yaml:"id" json:"id"`
	Title        string `yaml:"title" json:"title"`
	Task         string `yaml:"task" json:"task"`
	Description  string `yaml:"description" json:"description"`
	Verification string `yaml:"verification" json:"verification"`
	Category     string `yaml:"category" json:"category"`
	Difficulty   string `yaml:"difficulty" json:"difficulty"`
	Points       int    `yaml:"points" json:"points"`
}

// CriteriaType selects the aggregate a badge is judged on.
type CriteriaType string

const (
	CriteriaMissionCount     CriteriaType = "mission_count"
	CriteriaStreak           CriteriaType = "streak"
	CriteriaCommunityPosts   CriteriaType = "community_posts"
	CriteriaCommunityReplies CriteriaType = "community_replies"
	CriteriaLearningModules  CriteriaType = "learning_modules"
	CriteriaLevel            CriteriaType = "level"
	CriteriaEcoScoreGain     CriteriaType = "eco_score_gain"
	CriteriaQuizScore        CriteriaType = "quiz_score"
	CriteriaLegendStatus     CriteriaType = "legend_status"
)

type BadgeCriteria struct {
	Type      CriteriaType `yaml:"type" json:"type"`
	Category  string       `yaml:"category,omitempty" json:"category,omitempty"`
	Threshold int          `yaml:"threshold" json:"threshold"`
}

// Badge is immutable reference data.
type Badge struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Icon        string        `yaml:"icon" json:"icon"`
	Criteria    BadgeCriteria `yaml:"criteria" json:"criteria"`
}
