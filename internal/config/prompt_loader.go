package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"betterats/internal/prompt"
)

// Templates holds the parsed prompt templates, one per task kind. They are
// resolved once during LoadConfig and never change afterwards.
type Templates struct {
	CandidateData *prompt.Template
	Assessment    *prompt.Template
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() *Templates {
	return &Templates{
		CandidateData: prompt.DefaultCandidateTemplate(),
		Assessment:    prompt.DefaultAssessmentTemplate(),
	}
}

// Templates returns the templates resolved by LoadConfig, or the built-in
// ones for a Config that was constructed directly.
func (c *Config) Templates() *Templates {
	if c.templates == nil {
		return DefaultTemplates()
	}
	return c.templates
}

// loadTemplates resolves each operation's prompts with the priority
// file > inline config > built-in default, then parses them.
func (c *Config) loadTemplates() (*Templates, error) {
	candidate, err := c.loadTemplate(prompt.TaskCandidateData, c.AI.CandidateData.Prompts,
		prompt.DefaultCandidateSystem, prompt.DefaultCandidateUser)
	if err != nil {
		return nil, err
	}
	assessment, err := c.loadTemplate(prompt.TaskAssessment, c.AI.Assessment.Prompts,
		prompt.DefaultAssessmentSystem, prompt.DefaultAssessmentUser)
	if err != nil {
		return nil, err
	}
	return &Templates{CandidateData: candidate, Assessment: assessment}, nil
}

func (c *Config) loadTemplate(operation string, cfg PromptConfig, defaultSystem, defaultUser string) (*prompt.Template, error) {
	system, err := c.resolvePrompt(cfg.SystemFile, cfg.System, defaultSystem, "system", operation)
	if err != nil {
		return nil, err
	}
	user, err := c.resolvePrompt(cfg.UserFile, cfg.User, defaultUser, "user", operation)
	if err != nil {
		return nil, err
	}

	tmpl, err := prompt.New(operation, system, user)
	if err != nil {
		return nil, fmt.Errorf("invalid %s prompt template: %w", operation, err)
	}
	return tmpl, nil
}

func (c *Config) resolvePrompt(file, inline, fallback, promptType, operation string) (string, error) {
	if file != "" {
		return c.loadPromptFromFile(file, promptType, operation)
	}
	if inline != "" {
		log.Printf("[CONFIG] Using %s %s prompt from configuration", operation, promptType)
		return inline, nil
	}
	return fallback, nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func (c *Config) loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles checks that every configured prompt file exists before
// any of them is loaded, so all problems are reported together
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", operation, promptType, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", operation, promptType, absPath))
		}
	}

	validateFile(c.AI.CandidateData.Prompts.SystemFile, "system", prompt.TaskCandidateData)
	validateFile(c.AI.CandidateData.Prompts.UserFile, "user", prompt.TaskCandidateData)
	validateFile(c.AI.Assessment.Prompts.SystemFile, "system", prompt.TaskAssessment)
	validateFile(c.AI.Assessment.Prompts.UserFile, "user", prompt.TaskAssessment)

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}
