package llm

import (
	"context"
	"time"
)

// CannedProvider answers every request with fixed output for its task. It is selected with
// ai.provider=mock so the server runs without a Gemini key.
type CannedProvider struct {
	responses map[Task]string
}

var _ Provider = (*CannedProvider)(nil)

// NewCannedProvider returns a provider preloaded with a valid answer per task.
func NewCannedProvider() *CannedProvider {
	return &CannedProvider{responses: map[Task]string{
		TaskTailoredCV:   cannedCV,
		TaskStructuredCV: cannedCV,
		TaskCoverLetter:  cannedCoverLetter,
		TaskProfessional: cannedProfile,
	}}
}

// WithResponse overrides the answer for a task.
func (p *CannedProvider) WithResponse(task Task, text string) *CannedProvider {
	p.responses[task] = text
	return p
}

// Name returns "mock".
func (p *CannedProvider) Name() string {
	return ProviderMock
}

// Complete returns the canned text for the request's task.
func (p *CannedProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}
	text, ok := p.responses[req.Task]
	if !ok || text == "" {
		return nil, ErrEmptyCompletion
	}
	return &Completion{
		Text:         text,
		FinishReason: FinishStop,
		Model:        ProviderMock,
		Duration:     time.Millisecond,
	}, nil
}

const cannedCV = "```json\n" + `{
  "fullName": "Ada Example",
  "jobTitle": "Backend Engineer",
  "summary": "Backend engineer with six years of experience building Go services.",
  "email": "ada@example.com",
  "linkedin": "https://www.linkedin.com/in/ada-example",
  "phone": "+1 555 0100",
  "location": "Remote",
  "experience": [
    {
      "jobTitle": "Senior Engineer",
      "company": "Example Corp",
      "dates": "2021 - Present",
      "description": "Owned the billing and quota services.",
      "achievements": ["Cut p99 latency by 40%"],
      "relevanceScore": 90
    }
  ],
  "education": [
    {
      "degree": "BSc Computer Science",
      "institution": "Example University",
      "dates": "2014 - 2018",
      "relevanceScore": 70
    }
  ],
  "skills": ["Technical: Go, PostgreSQL, Redis", "Soft Skills: Communication"],
  "certifications": [],
  "skillGapAnalysis": {
    "matchingSkills": ["Go", "Redis"],
    "missingSkills": ["Kubernetes"],
    "overallMatch": 82
  }
}` + "\n```"

const cannedCoverLetter = `Dear Hiring Manager,

I am writing to apply for the Backend Engineer role. Over the last six years I have built and run Go services handling billing and quota enforcement.

Thank you for your consideration.

Sincerely,
Ada Example`

const cannedProfile = `{
  "personality_profile": {
    "traits": {"openness": 0.8, "conscientiousness": 0.7},
    "work_style": "Structured and independent",
    "leadership_potential": "Leads by example",
    "team_dynamics": "Collaborative"
  },
  "skills_assessment": {
    "technical_skills": [{"skill": "Go", "level": "advanced"}],
    "soft_skills": [{"skill": "Communication", "level": "intermediate"}],
    "transferable_skills": [{"skill": "Event organisation", "source": "community work"}],
    "skill_gaps": ["Public speaking"]
  },
  "role_fit_analysis": {
    "suitable_roles": [{"role": "Backend Engineer", "fit": "high"}],
    "role_match_scores": {"backend": 0.85},
    "career_level_assessment": "Mid-senior"
  },
  "career_development": {
    "recommended_next_steps": ["Mentor a junior engineer"],
    "skill_development_priorities": ["System design"],
    "career_progression_paths": [{"path": "Staff Engineer", "timeline": "2-3 years"}],
    "timeline_recommendations": {"short_term": "Lead a project"}
  },
  "behavioral_insights": {
    "decision_making_style": "Data driven",
    "communication_style": "Direct",
    "motivation_drivers": ["Learning"],
    "potential_challenges": ["Delegation"],
    "work_environment_preferences": ["Remote friendly"]
  },
  "confidence_score": 0.8
}`
