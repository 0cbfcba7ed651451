package generation

import (
	"fmt"
	"strings"

	"github.com/jobhunter/server/internal/module/llm"
)

const (
	cvMaxTokens          = 8192
	coverLetterMaxTokens = 2048
	profileMaxTokens     = 4096

	structuredTemperature  = 0.2
	coverLetterTemperature = 0.4
)

// Prompt is a provider-agnostic instruction with its sampling settings.
type Prompt struct {
	Task        llm.Task
	Text        string
	MaxTokens   int
	Temperature float64
}

// Request converts the prompt into a provider request.
func (p Prompt) Request() *llm.CompletionRequest {
	return &llm.CompletionRequest{
		Task:        p.Task,
		Prompt:      p.Text,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
}

// ProfilingAnswers are the three self-assessment answers used for a professional profile.
type ProfilingAnswers struct {
	WorkApproach   string `json:"work_approach" binding:"required"`
	ProblemSolving string `json:"problem_solving" binding:"required"`
	WorkValues     string `json:"work_values" binding:"required"`
}

const noFabricationRule = `Use only facts that appear in the candidate's résumé text. Never invent employers, ` +
	`dates, degrees, certifications, contact details or achievements. Leave a field empty ("" or []) ` +
	`when the résumé does not support it.`

const jsonOnlyRule = `Respond with a single JSON object and nothing else: no introduction, no explanation, ` +
	`no markdown outside the JSON.`

const cvShape = `{
  "fullName": "Candidate's full name from the résumé",
  "jobTitle": "%s",
  "summary": "%s",
  "email": "Email from the résumé",
  "linkedin": "LinkedIn URL from the résumé, or empty",
  "phone": "Phone number from the résumé",
  "location": "Location from the résumé",
  "experience": [
    {
      "jobTitle": "Position title",
      "company": "Company name",
      "dates": "Start date - End date (or Present)",
      "description": "%s",
      "achievements": ["Achievement with quantifiable result"],
      "relevanceScore": %s
    }
  ],
  "education": [
    {
      "degree": "Degree name",
      "institution": "Institution name",
      "dates": "Start year - End year",
      "relevanceScore": %s
    }
  ],
  "skills": [
    "Technical: Skill1, Skill2",
    "Soft Skills: Communication, Leadership"
  ],
  "certifications": ["Certification with year if available"],
  "skillGapAnalysis": {
    "matchingSkills": [%s],
    "missingSkills": [%s],
    "overallMatch": %s
  }
}`

// TailoredCVPrompt builds the prompt for a CV tailored to a job description.
func TailoredCVPrompt(jobDescription, resume string) Prompt {
	shape := fmt.Sprintf(cvShape,
		"A title matching the job being applied for",
		"A concise professional summary tailored to this role",
		"Responsibilities most relevant to the job",
		"0-100",
		"0-100",
		`"Résumé skills that match the job requirements"`,
		`"Important job requirements the candidate does not show"`,
		"0-100",
	)

	var b strings.Builder
	b.WriteString("Create a CV tailored to the job description below from the candidate's résumé.\n\n")
	b.WriteString("JOB DESCRIPTION:\n")
	b.WriteString(strings.TrimSpace(jobDescription))
	b.WriteString("\n\nCANDIDATE'S RÉSUMÉ:\n")
	b.WriteString(strings.TrimSpace(resume))
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Order experience and education by relevance to the job, most relevant first.\n")
	b.WriteString("- Give every experience and education entry a relevanceScore from 0 to 100.\n")
	b.WriteString("- Group skills by category, one category per string.\n")
	b.WriteString("- Fill skillGapAnalysis with matching skills, missing skills and an overallMatch percentage.\n")
	b.WriteString("- " + noFabricationRule + "\n")
	b.WriteString("- " + jsonOnlyRule + "\n\n")
	b.WriteString("Use exactly this structure:\n```json\n")
	b.WriteString(shape)
	b.WriteString("\n```\n")

	return Prompt{
		Task:        CapabilityCV.Task(),
		Text:        b.String(),
		MaxTokens:   cvMaxTokens,
		Temperature: structuredTemperature,
	}
}

// StructuredCVPrompt builds the prompt that turns raw document text into the CV structure.
// There is no job to compare against, so relevance scores and the match percentage are 0.
func StructuredCVPrompt(rawText string) Prompt {
	shape := fmt.Sprintf(cvShape,
		"The candidate's most recent or stated job title",
		"The candidate's own summary, or a neutral one built from the résumé",
		"Responsibilities as written in the résumé",
		"0",
		"0",
		"",
		"",
		"0",
	)

	var b strings.Builder
	b.WriteString("Extract the résumé text below into a structured CV.\n\n")
	b.WriteString("RÉSUMÉ TEXT:\n")
	b.WriteString(strings.TrimSpace(rawText))
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Keep experience and education in the order they appear.\n")
	b.WriteString("- Set every relevanceScore and overallMatch to 0 and leave matchingSkills and missingSkills empty.\n")
	b.WriteString("- " + noFabricationRule + "\n")
	b.WriteString("- " + jsonOnlyRule + "\n\n")
	b.WriteString("Use exactly this structure:\n```json\n")
	b.WriteString(shape)
	b.WriteString("\n```\n")

	return Prompt{
		Task:        CapabilityCVUpload.Task(),
		Text:        b.String(),
		MaxTokens:   cvMaxTokens,
		Temperature: structuredTemperature,
	}
}

// CoverLetterPrompt builds the prompt for a cover letter. feedback, when set, is the user's
// comment on a previous draft.
func CoverLetterPrompt(jobDescription, resume, feedback string) Prompt {
	var b strings.Builder
	b.WriteString("Write a cover letter for the candidate below, applying for the job described.\n\n")
	b.WriteString("JOB DESCRIPTION:\n")
	b.WriteString(strings.TrimSpace(jobDescription))
	b.WriteString("\n\nCANDIDATE'S RÉSUMÉ:\n")
	b.WriteString(strings.TrimSpace(resume))
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- First identify the three to five most important requirements in the job description.\n")
	b.WriteString("- Map each requirement to concrete experience from the résumé and build one paragraph per mapping.\n")
	b.WriteString("- Open with the role applied for and close with a call to action. Use a business-letter layout ")
	b.WriteString("with a salutation and a sign-off using the candidate's name.\n")
	b.WriteString("- Keep it under 400 words.\n")
	b.WriteString("- " + noFabricationRule + "\n")
	b.WriteString("- Respond with the letter as plain text only: no JSON, no markdown, no commentary before or after it.\n")

	if fb := strings.TrimSpace(feedback); fb != "" {
		b.WriteString("\nThe candidate reviewed a previous draft and asked for these changes:\n")
		b.WriteString(fb)
		b.WriteString("\nApply them while keeping every other rule above.\n")
	}

	return Prompt{
		Task:        CapabilityCoverLetter.Task(),
		Text:        b.String(),
		MaxTokens:   coverLetterMaxTokens,
		Temperature: coverLetterTemperature,
	}
}

const profileShape = `{
  "personality_profile": {
    "traits": {"openness": 0.0, "conscientiousness": 0.0, "extraversion": 0.0, "agreeableness": 0.0, "neuroticism": 0.0},
    "work_style": "Preferred work style",
    "leadership_potential": "Leadership style and potential",
    "team_dynamics": "How they work in teams"
  },
  "skills_assessment": {
    "technical_skills": [{"skill": "Name", "level": "beginner|intermediate|advanced|expert", "evidence": "Where in the CV"}],
    "soft_skills": [{"skill": "Name", "level": "beginner|intermediate|advanced|expert", "evidence": "Where it shows"}],
    "transferable_skills": [{"skill": "Name", "source": "Non-professional activity it comes from"}],
    "skill_gaps": ["Area for improvement"]
  },
  "role_fit_analysis": {
    "suitable_roles": [{"role": "Role title", "reason": "Why it fits"}],
    "role_match_scores": {"role type": 0.0},
    "career_level_assessment": "Current level and readiness"
  },
  "career_development": {
    "recommended_next_steps": ["Concrete action"],
    "skill_development_priorities": ["Skill to develop first"],
    "career_progression_paths": [{"path": "Target role", "timeline": "Expected timeframe"}],
    "timeline_recommendations": {"short_term": "0-6 months", "medium_term": "6-18 months", "long_term": "18+ months"}
  },
  "behavioral_insights": {
    "decision_making_style": "How they make decisions",
    "communication_style": "Preferred communication approach",
    "motivation_drivers": ["What motivates them"],
    "potential_challenges": ["What may be hard for them"],
    "work_environment_preferences": ["Ideal environment trait"]
  },
  "confidence_score": 0.0
}`

// ProfessionalProfilePrompt builds the prompt for a professional profile.
func ProfessionalProfilePrompt(cvText, nonProfessional string, answers ProfilingAnswers) Prompt {
	var b strings.Builder
	b.WriteString("Build a professional profile of the candidate from their CV, their non-professional ")
	b.WriteString("experience and their answers to three profiling questions.\n\n")
	b.WriteString("CV:\n")
	b.WriteString(strings.TrimSpace(cvText))
	b.WriteString("\n\nNON-PROFESSIONAL EXPERIENCE:\n")
	b.WriteString(strings.TrimSpace(nonProfessional))
	b.WriteString("\n\nPROFILING ANSWERS:\n")
	b.WriteString("How they approach challenging projects: ")
	b.WriteString(strings.TrimSpace(answers.WorkApproach))
	b.WriteString("\nA recent challenge and how they solved it: ")
	b.WriteString(strings.TrimSpace(answers.ProblemSolving))
	b.WriteString("\nWhat matters most in their ideal work environment: ")
	b.WriteString(strings.TrimSpace(answers.WorkValues))
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Personality trait scores and role match scores range from 0 to 1.\n")
	b.WriteString("- confidence_score (0 to 1) reflects how much evidence the inputs give.\n")
	b.WriteString("- Ground every statement in the inputs. Never invent employers, qualifications or experiences.\n")
	b.WriteString("- " + jsonOnlyRule + "\n\n")
	b.WriteString("Use exactly this structure:\n```json\n")
	b.WriteString(profileShape)
	b.WriteString("\n```\n")

	return Prompt{
		Task:        CapabilityProfessionalProfiling.Task(),
		Text:        b.String(),
		MaxTokens:   profileMaxTokens,
		Temperature: structuredTemperature,
	}
}
