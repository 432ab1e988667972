package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAnswerSystem is the system instruction for grounded answers.
	// It has no placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptAnswer is the user turn of a grounded answer. Placeholders:
	// {{guidance}}, {{language}}, {{context}}, {{question}}.
	PromptAnswer = "answer"
)

// GuidancePrompt returns the prompt name holding answer guidance for an
// intent, e.g. "guidance_comparison". Guidance prompts have no placeholders.
func GuidancePrompt(intent string) string {
	return "guidance_" + intent
}
