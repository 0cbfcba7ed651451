// Package generation turns a job description and a résumé into a tailored CV, a cover letter or
// a professional profile. It gates every request on subscription tier and daily quota, calls the
// LLM provider and recovers structured JSON from whatever the provider returns.
package generation

import "github.com/jobhunter/server/internal/module/llm"

// Capability names a gated generation feature. Deployments list premium capabilities in
// features.premium_features.
type Capability string

const (
	CapabilityCV                    Capability = "gemini_cv_generation"
	CapabilityCoverLetter           Capability = "gemini_cover_letter_generation"
	CapabilityCVUpload              Capability = "cv_upload_and_parse"
	CapabilityProfessionalProfiling Capability = "professional_profiling"
)

// Task returns the provider task label for the capability.
func (c Capability) Task() llm.Task {
	switch c {
	case CapabilityCV:
		return llm.TaskTailoredCV
	case CapabilityCoverLetter:
		return llm.TaskCoverLetter
	case CapabilityCVUpload:
		return llm.TaskStructuredCV
	case CapabilityProfessionalProfiling:
		return llm.TaskProfessional
	default:
		return llm.TaskUnclassified
	}
}

func (c Capability) String() string {
	return string(c)
}
