package generation

// CVRequest is the body of POST /cv/generate.
type CVRequest struct {
	JobDescription string `json:"job_description" binding:"required"`
	Resume         string `json:"resume" binding:"required"`
}

// CoverLetterRequest is the body of POST /cv/generate_cover_letter.
type CoverLetterRequest struct {
	JobDescription string `json:"job_description" binding:"required"`
	Resume         string `json:"resume" binding:"required"`
	Feedback       string `json:"feedback"`
}

// StructureRequest is the body of POST /cv/structure_from_text.
type StructureRequest struct {
	RawText string `json:"raw_text" binding:"required"`
}

// ProfileRequest is the body of POST /profiling/generate_profile.
type ProfileRequest struct {
	CVText                    string           `json:"cv_text" binding:"required"`
	NonProfessionalExperience string           `json:"non_professional_experience"`
	ProfilingQuestions        ProfilingAnswers `json:"profiling_questions" binding:"required"`
}

// Quota is the caller's allowance after the current generation was counted.
type Quota struct {
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// CVResult is a tailored or structured CV.
type CVResult struct {
	CV    *CV   `json:"cv_data"`
	Quota Quota `json:"quota"`
	// Repaired is set when the provider output had to be repaired before it parsed.
	Repaired bool `json:"-"`
}

// CoverLetterResult is a generated cover letter.
type CoverLetterResult struct {
	CoverLetter string `json:"cover_letter"`
	Quota       Quota  `json:"quota"`
}

// ProfileResult is a generated professional profile.
type ProfileResult struct {
	Profile  *ProfessionalProfile `json:"profile"`
	Quota    Quota                `json:"quota"`
	Repaired bool                 `json:"-"`
}
