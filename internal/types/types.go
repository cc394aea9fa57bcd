package types

import "betterats/internal/schema"

// Document is the text extracted from one uploaded file
type Document struct {
	Content    string `json:"content"`
	SourcePath string `json:"sourcePath"`
	MimeType   string `json:"mimeType"`
}

// Experience represents one job listed in a candidate's documents
type Experience struct {
	Company     *string `json:"company"`
	Title       *string `json:"title"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
}

// CandidateProfile represents the contact data and work history of a candidate.
// Every field may be absent when the documents do not mention it.
type CandidateProfile struct {
	FirstName   *string      `json:"first_name"`
	LastName    *string      `json:"last_name"`
	Email       *string      `json:"email"`
	Phone       *string      `json:"phone"`
	LinkedIn    *string      `json:"linkedin"`
	Experiences []Experience `json:"experiences"`
}

// RequirementAssessment represents the verdict on a single job requirement
type RequirementAssessment struct {
	Requirement        string  `json:"requirement"`
	PresentInDocuments bool    `json:"present_in_documents"`
	Inquiry            *string `json:"inquiry"` // only set when PresentInDocuments is false
}

// ProcessResult represents the combined output of one processing run
type ProcessResult struct {
	Candidate   CandidateProfile        `json:"candidate_data"`
	Assessments []RequirementAssessment `json:"requirements_assessment"`
}

// ProcessInput represents the job requirements submitted alongside the files
type ProcessInput struct {
	JobRequirements []string `json:"job_requirements"`
}

// ExperienceSchema describes Experience to the language model.
var ExperienceSchema = schema.Schema{
	Name: "Experience",
	Fields: []schema.Field{
		{Name: "company", Type: schema.TypeString, Description: "The company name"},
		{Name: "title", Type: schema.TypeString, Description: "The title of the candidate"},
		{Name: "start_date", Type: schema.TypeString, Description: "The start date of the candidate's experience, in format MM/YYYY"},
		{Name: "end_date", Type: schema.TypeString, Description: "The end date of the candidate's experience, in format MM/YYYY"},
		{Name: "description", Type: schema.TypeString, Description: "The description of the candidate's experience"},
	},
}

// CandidateProfileSchema describes CandidateProfile to the language model.
var CandidateProfileSchema = schema.Schema{
	Name: "CandidateProfile",
	Fields: []schema.Field{
		{Name: "first_name", Type: schema.TypeString, Description: "The first name of the candidate"},
		{Name: "last_name", Type: schema.TypeString, Description: "The last name of the candidate"},
		{Name: "email", Type: schema.TypeString, Description: "The email of the candidate"},
		{Name: "phone", Type: schema.TypeString, Description: "The phone number of the candidate"},
		{Name: "linkedin", Type: schema.TypeString, Description: "The LinkedIn profile of the candidate"},
		{Name: "experiences", Type: schema.TypeArray, Description: "The experiences of the candidate", Items: &ExperienceSchema},
	},
}

// RequirementAssessmentSchema describes RequirementAssessment to the language model.
var RequirementAssessmentSchema = schema.Schema{
	Name: "RequirementAssessment",
	Fields: []schema.Field{
		{Name: "requirement", Type: schema.TypeString, Required: true,
			Description: "The requirement expressed in the job post"},
		{Name: "present_in_documents", Type: schema.TypeBoolean, Required: true,
			Description: "Whether it is reasonable to expect the requirement is met based on the provided documents"},
		{Name: "inquiry", Type: schema.TypeString,
			Description: "A clarifying question to ask the candidate when the requirement doesn't seem to be met in the documents"},
	},
}
