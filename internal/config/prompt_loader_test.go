package config

import (
	"os"
	"path/filepath"
	"testing"

	"betterats/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePromptFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadTemplatesFromFiles(t *testing.T) {
	dir := t.TempDir()
	systemFile := writePromptFile(t, dir, "assessment.system.md", "  You review job applications.\n")
	userFile := writePromptFile(t, dir, "assessment.user.md", "Requirement: {{.requirement}}")

	config := &Config{AI: AIConfig{Assessment: OperationAIConfig{
		Prompts: PromptConfig{SystemFile: systemFile, UserFile: userFile},
	}}}

	require.NoError(t, config.validatePromptFiles())
	templates, err := config.loadTemplates()
	require.NoError(t, err)

	messages, err := templates.Assessment.Render(prompt.Vars{prompt.VarRequirement: "Go"})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "You review job applications.", messages[0].Content)
	assert.Equal(t, "Requirement: Go", messages[1].Content)

	// the other operation keeps its built-in prompts
	assert.Equal(t, prompt.TaskCandidateData, templates.CandidateData.Name())
}

func TestLoadTemplatesPriority(t *testing.T) {
	dir := t.TempDir()
	userFile := writePromptFile(t, dir, "user.md", "from file {{.requirement}}")

	config := &Config{AI: AIConfig{Assessment: OperationAIConfig{
		Prompts: PromptConfig{User: "inline {{.requirement}}", UserFile: userFile, System: " "},
	}}}

	templates, err := config.loadTemplates()
	require.NoError(t, err)

	messages, err := templates.Assessment.Render(prompt.Vars{prompt.VarRequirement: "SQL"})
	require.NoError(t, err)
	require.Len(t, messages, 1, "a blank system instruction is omitted")
	assert.Equal(t, "from file SQL", messages[0].Content)
}

func TestLoadTemplatesInline(t *testing.T) {
	config := &Config{AI: AIConfig{CandidateData: OperationAIConfig{
		Prompts: PromptConfig{User: "Extract {{.format_instructions}}"},
	}}}

	templates, err := config.loadTemplates()
	require.NoError(t, err)

	messages, err := templates.CandidateData.Render(prompt.Vars{prompt.VarFormatInstructions: "JSON"})
	require.NoError(t, err)
	assert.Equal(t, "Extract JSON", messages[len(messages)-1].Content)
}

func TestLoadTemplatesErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty file", func(t *testing.T) {
		empty := writePromptFile(t, dir, "empty.md", "   \n")
		config := &Config{AI: AIConfig{Assessment: OperationAIConfig{Prompts: PromptConfig{UserFile: empty}}}}
		_, err := config.loadTemplates()
		assert.ErrorContains(t, err, "is empty")
	})

	t.Run("unparseable template", func(t *testing.T) {
		config := &Config{AI: AIConfig{Assessment: OperationAIConfig{Prompts: PromptConfig{User: "{{.requirement"}}}}
		_, err := config.loadTemplates()
		assert.Error(t, err)
	})

	t.Run("missing files are reported together", func(t *testing.T) {
		config := &Config{AI: AIConfig{
			CandidateData: OperationAIConfig{Prompts: PromptConfig{SystemFile: filepath.Join(dir, "a.md")}},
			Assessment:    OperationAIConfig{Prompts: PromptConfig{UserFile: filepath.Join(dir, "b.md")}},
		}}
		err := config.validatePromptFiles()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a.md")
		assert.Contains(t, err.Error(), "b.md")
	})
}

func TestTemplatesDefaultWhenNotLoaded(t *testing.T) {
	config := &Config{}
	templates := config.Templates()
	require.NotNil(t, templates.CandidateData)
	require.NotNil(t, templates.Assessment)
	assert.Equal(t, prompt.TaskAssessment, templates.Assessment.Name())
}
