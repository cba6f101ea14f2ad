package settings

import "github.com/simonyos/mango/internal/llm"

// DefaultSystemPrompt is used for chat turns when no prompt template is active.
const DefaultSystemPrompt = `You are a helpful, respectful and honest AI Assistant named Mango. You are talking to a human User. Always answer as helpfully and logically as possible, while being safe. Your answers should not include any harmful, political, religious, unethical, racist, sexist, toxic, dangerous, or illegal content. Please ensure that your responses are socially unbiased and positive in nature. If a question does not make any sense, or is not factually coherent, explain why instead of answering something not correct. If you don't know the answer to a question, please don't share false information.`

// DefaultSummaryPrompt is the system prompt for page summaries.
const DefaultSummaryPrompt = `Summarizes content for the average person.`

// DefaultCompatibleEndpoint is suggested when adding a local-compatible model.
const DefaultCompatibleEndpoint = "http://localhost:1234/v1"

// APIKeyURL returns where a user can create a key for kind, if anywhere.
func APIKeyURL(kind llm.Kind) string {
	switch kind {
	case llm.KindGemini:
		return "https://aistudio.google.com/app/apikey"
	case llm.KindGroq:
		return "https://console.groq.com/keys"
	case llm.KindClaude:
		return "https://console.anthropic.com/settings/keys"
	}
	return ""
}
