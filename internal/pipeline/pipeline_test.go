package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"betterats/internal/errors"
	"betterats/internal/prompt"
	"betterats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirementFrom pulls the fenced requirement out of a rendered assessment prompt.
func requirementFrom(messages []prompt.Message) string {
	user := messages[len(messages)-1].Content
	start := strings.Index(user, "```\n")
	if start < 0 {
		return ""
	}
	rest := user[start+4:]
	end := strings.Index(rest, "\n```")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func assessmentReply(requirement string, present bool, inquiry string) string {
	out := map[string]any{
		"requirement":          requirement,
		"present_in_documents": present,
		"inquiry":              nil,
	}
	if inquiry != "" {
		out["inquiry"] = inquiry
	}
	b, _ := json.Marshal(out)
	return "```json\n" + string(b) + "\n```"
}

// echoAssessor answers present=true for requirements mentioning Go.
func echoAssessor(delay func(requirement string) time.Duration) GeneratorFunc {
	return func(ctx context.Context, messages []prompt.Message) (string, error) {
		requirement := requirementFrom(messages)
		if delay != nil {
			select {
			case <-time.After(delay(requirement)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		present := strings.Contains(requirement, "Go")
		inquiry := ""
		if !present {
			inquiry = "Can you tell us about " + requirement + "?"
		}
		return assessmentReply(requirement, present, inquiry), nil
	}
}

var testDocs = []types.Document{
	{Content: "Ada Lovelace\nada@example.com\nEngineer at Analytical Engines, 2022-2024, Python and Go", SourcePath: "/tmp/cv.pdf", MimeType: "application/pdf"},
	{Content: "Cover letter: I love Go.", SourcePath: "/tmp/letter.docx", MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

func TestAssessPreservesInputOrder(t *testing.T) {
	requirements := []string{"SQL", "Go", "Kubernetes", "Go concurrency", "Terraform", "gRPC"}
	// later requirements finish first
	delay := func(requirement string) time.Duration {
		for i, r := range requirements {
			if r == requirement {
				return time.Duration(len(requirements)-i) * 5 * time.Millisecond
			}
		}
		return 0
	}

	parallel, err := NewAssessor(echoAssessor(delay), nil, 4, nil, nil).Assess(context.Background(), testDocs, requirements)
	require.NoError(t, err)
	sequential, err := NewAssessor(echoAssessor(nil), nil, 1, nil, nil).Assess(context.Background(), testDocs, requirements)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
	require.Len(t, parallel, len(requirements))
	for i, r := range requirements {
		assert.Equal(t, r, parallel[i].Requirement)
	}
	assert.True(t, parallel[1].PresentInDocuments)
	assert.Nil(t, parallel[1].Inquiry)
	assert.False(t, parallel[0].PresentInDocuments)
	require.NotNil(t, parallel[0].Inquiry)
	assert.NotEmpty(t, *parallel[0].Inquiry)
}

func TestAssessBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return assessmentReply(requirementFrom(messages), true, ""), nil
	})

	requirements := make([]string, 12)
	for i := range requirements {
		requirements[i] = fmt.Sprintf("requirement %d", i)
	}

	results, err := NewAssessor(gen, nil, 3, nil, nil).Assess(context.Background(), testDocs, requirements)
	require.NoError(t, err)
	assert.Len(t, results, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(0), inFlight.Load())
}

func TestAssessFailureNamesRequirement(t *testing.T) {
	var inFlight atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		inFlight.Add(1)
		defer inFlight.Add(-1)

		requirement := requirementFrom(messages)
		if requirement == "Kubernetes" {
			return "I am not sure, sorry.", nil
		}
		// siblings wait until the failure cancels them
		<-ctx.Done()
		return "", ctx.Err()
	})

	requirements := []string{"SQL", "Kubernetes", "Go", "Terraform"}
	results, err := NewAssessor(gen, nil, 4, nil, nil).Assess(context.Background(), testDocs, requirements)
	require.Error(t, err)
	assert.Nil(t, results)

	appErr, ok := errors.Find(err, errors.ErrorTypeAssessment)
	require.True(t, ok)
	assert.Equal(t, "Kubernetes", appErr.Context["requirement"])
	assert.Equal(t, 1, appErr.Context["index"])
	assert.Contains(t, err.Error(), "Kubernetes")

	root, ok := errors.RootType(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeMalformedReply, root)

	assert.Equal(t, int32(0), inFlight.Load(), "no task may outlive Assess")
}

func TestAssessValidationFailure(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		return `{"requirement": "Go"}`, nil
	})

	_, err := NewAssessor(gen, nil, 2, nil, nil).Assess(context.Background(), testDocs, []string{"Go"})
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeAssessment))
	assert.True(t, errors.HasType(err, errors.ErrorTypeValidation))
}

func TestAssessClearsInquiryWhenPresent(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		return assessmentReply("go ", true, "Anything else?"), nil
	})

	results, err := NewAssessor(gen, nil, 1, nil, nil).Assess(context.Background(), testDocs, []string{"Go"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Go", results[0].Requirement)
	assert.Nil(t, results[0].Inquiry)
}

func TestAssessPromptCarriesDocumentsAndInstructions(t *testing.T) {
	var seen []prompt.Message
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		seen = messages
		return assessmentReply("Go", true, ""), nil
	})

	_, err := NewAssessor(gen, nil, 1, nil, nil).Assess(context.Background(), testDocs, []string{"Go"})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, prompt.RoleSystem, seen[0].Role)
	user := seen[1].Content
	assert.Contains(t, user, "/tmp/cv.pdf")
	assert.Contains(t, user, "I love Go.")
	assert.Contains(t, user, `"present_in_documents"*: boolean`)
}

func TestAssessGenerationFailure(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		return "", fmt.Errorf("quota exceeded")
	})

	_, err := NewAssessor(gen, nil, 1, nil, nil).Assess(context.Background(), testDocs, []string{"Go"})
	root, ok := errors.RootType(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeGeneration, root)
}

func TestExtract(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		return `{
			"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com",
			"phone": null, "linkedin": null,
			"experiences": [{"company": "Analytical Engines", "title": "Engineer",
				"start_date": "01/2022", "end_date": "01/2024", "description": "Python and Go"}]
		}`, nil
	})

	profile, err := NewExtractor(gen, nil, nil, nil).Extract(context.Background(), testDocs)
	require.NoError(t, err)
	require.NotNil(t, profile.FirstName)
	assert.Equal(t, "Ada", *profile.FirstName)
	assert.Nil(t, profile.Phone)
	require.Len(t, profile.Experiences, 1)
	assert.Equal(t, "Analytical Engines", *profile.Experiences[0].Company)
}

func TestExtractZeroDocuments(t *testing.T) {
	var user string
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		user = messages[len(messages)-1].Content
		return `{"first_name": null, "last_name": null, "email": null, "phone": null, "linkedin": null, "experiences": []}`, nil
	})

	profile, err := NewExtractor(gen, nil, nil, nil).Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, profile.FirstName)
	assert.Nil(t, profile.Email)
	assert.NotNil(t, profile.Experiences)
	assert.Empty(t, profile.Experiences)
	assert.Contains(t, user, "first_name")
}

func TestExtractTemplateError(t *testing.T) {
	tmpl, err := prompt.New(prompt.TaskCandidateData, "", "Extract from {{.resume}}")
	require.NoError(t, err)

	called := false
	gen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		called = true
		return "{}", nil
	})

	_, err = NewExtractor(gen, tmpl, nil, nil).Extract(context.Background(), testDocs)
	assert.True(t, errors.HasType(err, errors.ErrorTypeTemplate))
	assert.False(t, called, "nothing is sent when rendering fails")
}

type stubLoader struct {
	docs []types.Document
	err  error
}

func (s stubLoader) Load(ctx context.Context, paths []string) ([]types.Document, error) {
	return s.docs, s.err
}

// countingObserver records pipeline events.
type countingObserver struct {
	documents, assessed, extracted atomic.Int32
}

func (o *countingObserver) RecordDocumentsLoaded(_ context.Context, n int) { o.documents.Add(int32(n)) }
func (o *countingObserver) RecordRequirementAssessed(context.Context, bool) { o.assessed.Add(1) }
func (o *countingObserver) RecordCandidateExtracted(context.Context, bool)  { o.extracted.Add(1) }

func TestCoordinatorEndToEnd(t *testing.T) {
	extractGen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		return `{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com",
			"experiences": [{"company": "Analytical Engines", "title": "Engineer",
				"start_date": "01/2022", "end_date": "01/2024", "description": "Python"}]}`, nil
	})
	assessGen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		return assessmentReply(requirementFrom(messages), false,
			"The documents show two years of Python. Do you have further experience?"), nil
	})

	observer := &countingObserver{}
	coordinator := NewCoordinator(
		stubLoader{docs: testDocs},
		NewExtractor(extractGen, nil, nil, observer),
		NewAssessor(assessGen, nil, 4, nil, observer),
		nil, observer)

	result, err := coordinator.Process(context.Background(), []string{"cv.pdf", "letter.docx"}, []string{"5+ years Python experience"})
	require.NoError(t, err)

	assert.Equal(t, "Ada", *result.Candidate.FirstName)
	assert.Equal(t, "Lovelace", *result.Candidate.LastName)
	assert.Equal(t, "ada@example.com", *result.Candidate.Email)
	assert.Len(t, result.Candidate.Experiences, 1)

	require.Len(t, result.Assessments, 1)
	assert.Equal(t, "5+ years Python experience", result.Assessments[0].Requirement)
	assert.False(t, result.Assessments[0].PresentInDocuments)
	require.NotNil(t, result.Assessments[0].Inquiry)
	assert.NotEmpty(t, *result.Assessments[0].Inquiry)

	assert.Equal(t, int32(2), observer.documents.Load())
	assert.Equal(t, int32(1), observer.assessed.Load())
	assert.Equal(t, int32(1), observer.extracted.Load())

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"candidate_data"`)
	assert.Contains(t, string(encoded), `"requirements_assessment"`)
}

func TestCoordinatorFailures(t *testing.T) {
	okGen := echoAssessor(nil)
	profileGen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
		return `{}`, nil
	})

	t.Run("no requirements", func(t *testing.T) {
		c := NewCoordinator(stubLoader{}, NewExtractor(profileGen, nil, nil, nil), NewAssessor(okGen, nil, 1, nil, nil), nil, nil)
		_, err := c.Process(context.Background(), nil, nil)
		appErr, ok := errors.Find(err, errors.ErrorTypeRequest)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeNoRequirements, appErr.Code)
	})

	t.Run("blank requirement", func(t *testing.T) {
		c := NewCoordinator(stubLoader{}, NewExtractor(profileGen, nil, nil, nil), NewAssessor(okGen, nil, 1, nil, nil), nil, nil)
		_, err := c.Process(context.Background(), nil, []string{"Go", "  "})
		assert.True(t, errors.HasType(err, errors.ErrorTypeRequest))
	})

	t.Run("loader failure", func(t *testing.T) {
		loadErr := errors.NewExtractionError("/tmp/broken.pdf", "could not read", nil)
		c := NewCoordinator(stubLoader{err: loadErr}, NewExtractor(profileGen, nil, nil, nil), NewAssessor(okGen, nil, 1, nil, nil), nil, nil)
		_, err := c.Process(context.Background(), []string{"/tmp/broken.pdf"}, []string{"Go"})
		assert.True(t, errors.HasType(err, errors.ErrorTypeExtraction))
	})

	t.Run("extraction failure", func(t *testing.T) {
		badGen := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
			return "not json", nil
		})
		c := NewCoordinator(stubLoader{docs: testDocs}, NewExtractor(badGen, nil, nil, nil), NewAssessor(okGen, nil, 1, nil, nil), nil, nil)
		result, err := c.Process(context.Background(), nil, []string{"Go"})
		assert.Nil(t, result)
		assert.True(t, errors.HasType(err, errors.ErrorTypeMalformedReply))
	})

	t.Run("assessment failure", func(t *testing.T) {
		slowProfile := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		failing := GeneratorFunc(func(ctx context.Context, messages []prompt.Message) (string, error) {
			return "", errors.NewGenerationError(errors.ErrCodeGenerationFailed, "backend unavailable", nil)
		})
		c := NewCoordinator(stubLoader{docs: testDocs}, NewExtractor(slowProfile, nil, nil, nil), NewAssessor(failing, nil, 1, nil, nil), nil, nil)
		_, err := c.Process(context.Background(), nil, []string{"Go"})
		appErr, ok := errors.Find(err, errors.ErrorTypeAssessment)
		require.True(t, ok, "the failing sibling is reported, not the cancelled one")
		assert.Equal(t, "Go", appErr.Context["requirement"])
	})
}
