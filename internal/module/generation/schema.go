package generation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CV is a structured résumé, tailored or parsed.
type CV struct {
	FullName         string            `json:"fullName" validate:"required"`
	JobTitle         string            `json:"jobTitle"`
	Summary          string            `json:"summary"`
	Email            string            `json:"email"`
	LinkedIn         string            `json:"linkedin"`
	Phone            string            `json:"phone"`
	Location         string            `json:"location"`
	Experience       []Experience      `json:"experience" validate:"dive"`
	Education        []Education       `json:"education" validate:"dive"`
	Skills           []string          `json:"skills"`
	Certifications   []string          `json:"certifications"`
	SkillGapAnalysis *SkillGapAnalysis `json:"skillGapAnalysis,omitempty"`
}

// Experience is one position in a CV.
type Experience struct {
	JobTitle       string   `json:"jobTitle" validate:"required_without=Company"`
	Company        string   `json:"company"`
	Dates          string   `json:"dates"`
	Description    string   `json:"description"`
	Achievements   []string `json:"achievements"`
	RelevanceScore *float64 `json:"relevanceScore,omitempty" validate:"omitempty,min=0,max=100"`
}

// Education is one degree in a CV.
type Education struct {
	Degree         string   `json:"degree" validate:"required_without=Institution"`
	Institution    string   `json:"institution"`
	Dates          string   `json:"dates"`
	RelevanceScore *float64 `json:"relevanceScore,omitempty" validate:"omitempty,min=0,max=100"`
}

// SkillGapAnalysis compares the candidate's skills with the job.
type SkillGapAnalysis struct {
	MatchingSkills []string `json:"matchingSkills"`
	MissingSkills  []string `json:"missingSkills"`
	OverallMatch   *float64 `json:"overallMatch,omitempty" validate:"omitempty,min=0,max=100"`
}

// ProfessionalProfile is the profiling result.
type ProfessionalProfile struct {
	PersonalityProfile *PersonalityProfile `json:"personality_profile" validate:"required"`
	SkillsAssessment   *SkillsAssessment   `json:"skills_assessment" validate:"required"`
	RoleFitAnalysis    *RoleFitAnalysis    `json:"role_fit_analysis" validate:"required"`
	CareerDevelopment  *CareerDevelopment  `json:"career_development" validate:"required"`
	BehavioralInsights *BehavioralInsights `json:"behavioral_insights" validate:"required"`
	ConfidenceScore    float64             `json:"confidence_score" validate:"min=0,max=1"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

type PersonalityProfile struct {
	Traits              map[string]any `json:"traits"`
	WorkStyle           string         `json:"work_style"`
	LeadershipPotential string         `json:"leadership_potential"`
	TeamDynamics        string         `json:"team_dynamics"`
}

type SkillsAssessment struct {
	TechnicalSkills    []map[string]any `json:"technical_skills"`
	SoftSkills         []map[string]any `json:"soft_skills"`
	TransferableSkills []map[string]any `json:"transferable_skills"`
	SkillGaps          []string         `json:"skill_gaps"`
}

type RoleFitAnalysis struct {
	SuitableRoles         []map[string]any   `json:"suitable_roles"`
	RoleMatchScores       map[string]float64 `json:"role_match_scores"`
	CareerLevelAssessment string             `json:"career_level_assessment"`
}

type CareerDevelopment struct {
	RecommendedNextSteps       []string          `json:"recommended_next_steps"`
	SkillDevelopmentPriorities []string          `json:"skill_development_priorities"`
	CareerProgressionPaths     []map[string]any  `json:"career_progression_paths"`
	TimelineRecommendations    map[string]string `json:"timeline_recommendations"`
}

type BehavioralInsights struct {
	DecisionMakingStyle        string   `json:"decision_making_style"`
	CommunicationStyle         string   `json:"communication_style"`
	MotivationDrivers          []string `json:"motivation_drivers"`
	PotentialChallenges        []string `json:"potential_challenges"`
	WorkEnvironmentPreferences []string `json:"work_environment_preferences"`
}

// SchemaError lists the fields that failed validation, keyed by JSON name.
type SchemaError struct {
	Fields map[string]string
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, msg))
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// SchemaValidator decodes extracted objects into typed documents and validates them.
type SchemaValidator struct {
	validate *validator.Validate
}

// NewSchemaValidator creates a validator that reports JSON field names.
func NewSchemaValidator() *SchemaValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &SchemaValidator{validate: v}
}

// Decode converts obj into out and validates it.
func (s *SchemaValidator) Decode(obj map[string]any, out any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("re-encode extracted object: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &SchemaError{Fields: map[string]string{"$": err.Error()}}
	}

	err = s.validate.Struct(out)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fieldMessage(fe)
	}
	return &SchemaError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
