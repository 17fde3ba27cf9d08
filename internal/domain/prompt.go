package domain

import "time"

// PromptTypeTranslation scopes templates used for translation jobs.
const PromptTypeTranslation = "translation"

// DefaultTranslationPrompt seeds the template created when none is active.
// {{source_locale}} and {{target_locale}} are replaced with display names.
const DefaultTranslationPrompt = "You are a professional translator for a market research publisher. " +
	"Translate the user's text from {{source_locale}} to {{target_locale}}. " +
	"Return only the translated text."

// PromptTemplate is a versioned system prompt.
type PromptTemplate struct {
	ID         string    `db:"id"          json:"id"`
	PromptType string    `db:"prompt_type" json:"prompt_type"`
	Name       string    `db:"name"        json:"name"`
	Template   string    `db:"template"    json:"template"`
	Version    int       `db:"version"     json:"version"`
	IsActive   bool      `db:"is_active"   json:"is_active"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// UsageLog is one LLM invocation, successful or not.
type UsageLog struct {
	ID           string    `db:"id"            json:"id"`
	JobID        *string   `db:"job_id"        json:"job_id,omitempty"`
	Provider     string    `db:"provider"      json:"provider"`
	Model        string    `db:"model"         json:"model"`
	Operation    string    `db:"operation"     json:"operation"`
	InputTokens  int       `db:"input_tokens"  json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	TotalTokens  int       `db:"total_tokens"  json:"total_tokens"`
	CostUSD      float64   `db:"cost_usd"      json:"cost_usd"`
	DurationMs   int64     `db:"duration_ms"   json:"duration_ms"`
	Success      bool      `db:"success"       json:"success"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

// UsageSummary aggregates usage logs.
type UsageSummary struct {
	Calls        int64   `db:"calls"         json:"calls"`
	Failures     int64   `db:"failures"      json:"failures"`
	InputTokens  int64   `db:"input_tokens"  json:"input_tokens"`
	OutputTokens int64   `db:"output_tokens" json:"output_tokens"`
	CostUSD      float64 `db:"cost_usd"      json:"cost_usd"`
}
