package driven

// PromptStore provides access to the system prompts sent with every
// batch request. Implementations may load prompts from files, embed
// them in the binary, or fetch them from a remote configuration
// service.
type PromptStore interface {
	// Load returns the prompt for the given name. Unknown names fall
	// back to the analyst default so a misconfigured source never
	// submits without instructions.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next
	// access. This is useful when prompts have been edited on disk.
	Reload()
}

// Well-known prompt names. These constants define the contract between
// prompt consumers and providers.
const (
	// PromptAnalyst is the default system prompt instructing the
	// model to produce a structured intelligence report. It has no
	// format placeholders.
	PromptAnalyst = "analyst"
)
