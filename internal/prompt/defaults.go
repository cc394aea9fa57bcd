package prompt

// Task kinds, also used as operation names in config, logs and metrics.
const (
	TaskCandidateData = "candidate_data"
	TaskAssessment    = "assessment"
)

const documentsBlock = `{{range .documents}}
{{.SourcePath}}:

{{.Content}}

---
{{end}}`

// DefaultCandidateSystem and DefaultCandidateUser drive candidate data extraction.
const DefaultCandidateSystem = `You are a helpful assistant that extracts data from documents received in a job application.`

const DefaultCandidateUser = `Your goal is to extract from the documents the information required about the candidate. Keep the extracted data as written in the documents: do not summarize it or change it.

Extract the first name, last name, email, phone, LinkedIn profile and all the experiences of the candidate. For each experience extract the company, title, start date, end date and description. Do not make up any information. Only extract what is written in the documents and nothing else. Use null for anything the documents do not contain.

{{.format_instructions}}

The documents to extract the data from are the following:
` + documentsBlock

// DefaultAssessmentSystem and DefaultAssessmentUser drive requirement assessment.
const DefaultAssessmentSystem = `You are a clever assistant that can infer if a candidate meets a job requirement.`

const DefaultAssessmentUser = `Your goal is to decide if a candidate most likely meets a requirement for a job. If they do, confirm that the experience or skill is present in the documents. If you are not reasonably sure, formulate a question to the candidate in the inquiry field to give them a chance to provide additional information.

{{.format_instructions}}

This is the requirement you need to assess:
` + "```" + `
{{.requirement}}
` + "```" + `

The documents to review for your assessment are the following:
` + documentsBlock

// DefaultCandidateTemplate returns the built-in candidate extraction template.
func DefaultCandidateTemplate() *Template {
	return MustNew(TaskCandidateData, DefaultCandidateSystem, DefaultCandidateUser)
}

// DefaultAssessmentTemplate returns the built-in requirement assessment template.
func DefaultAssessmentTemplate() *Template {
	return MustNew(TaskAssessment, DefaultAssessmentSystem, DefaultAssessmentUser)
}
