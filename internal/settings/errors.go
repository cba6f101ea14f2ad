package settings

import "errors"

var (
	// ErrNotFound indicates no model or prompt has the requested id
	ErrNotFound = errors.New("not found")

	// ErrMissingTitle indicates a prompt template without a title
	ErrMissingTitle = errors.New("title is required")

	// ErrMissingModel indicates a provider config without a model name
	ErrMissingModel = errors.New("model name is required")

	// ErrMissingEndpoint indicates a local-compatible config without an endpoint
	ErrMissingEndpoint = errors.New("endpoint url is required for local-compatible models")

	// ErrMissingAPIKey indicates a hosted-vendor config without an api key
	ErrMissingAPIKey = errors.New("api key is required for this provider")

	// ErrMissingFrontmatter indicates a prompt file lacks YAML frontmatter
	ErrMissingFrontmatter = errors.New("prompt file must start with YAML frontmatter (---)")

	// ErrEmptyPrompt indicates a prompt template without a system prompt
	ErrEmptyPrompt = errors.New("system prompt is required")
)
