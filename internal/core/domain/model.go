package domain

// DefaultModelKey is used when no model is specified or the requested
// key is unknown.
const DefaultModelKey = "nano"

// ModelAliases maps short model keys to the concrete model identifiers
// they resolve to.
var ModelAliases = map[string]string{
	"nano": "gpt-4.1-nano-2025-04-14",
	"mini": "gpt-4.1-mini-2025-04-14",
	"full": "gpt-4.1-2025-04-14",
}

// TextChatModels are the chat-completion models accepted for batch
// submission. A concrete model name from this list resolves to itself.
var TextChatModels = []string{
	"gpt-4.1-2025-04-14",
	"gpt-4.1-mini-2025-04-14",
	"gpt-4.1-nano-2025-04-14",
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4o-2024-05-13",
	"gpt-3.5-turbo",
	"gpt-3.5-turbo-16k",
	"gpt-4",
	"gpt-4-32k",
	"gpt-4-turbo-preview",
	"gpt-4-vision-preview",
	"gpt-4-turbo",
	"gpt-4-0125-preview",
	"gpt-3.5-turbo-1106",
	"gpt-4-0314",
	"gpt-4-turbo-2024-04-09",
	"gpt-4-32k-0314",
	"gpt-4-32k-0613",
}

// EmbeddingModels are known embedding models. They are listed by the
// models command but are not valid for batch submission.
var EmbeddingModels = []string{
	"text-embedding-3-large",
	"text-embedding-3-small",
	"text-embedding-ada-002",
}

// ResolveModel maps a model key to a concrete model identifier. An
// alias resolves to its mapped model, a known model resolves to
// itself, and anything else falls back to the default alias.
func ResolveModel(key string) string {
	if m, ok := ModelAliases[key]; ok {
		return m
	}
	for _, m := range SupportedModels() {
		if m == key {
			return m
		}
	}
	return ModelAliases[DefaultModelKey]
}

// SupportedModels returns every concrete model the provider accepts,
// chat models first.
func SupportedModels() []string {
	out := make([]string, 0, len(TextChatModels)+len(EmbeddingModels))
	out = append(out, TextChatModels...)
	return append(out, EmbeddingModels...)
}

// KnownModelKeys returns every accepted model key: the aliases in a
// fixed order, then the chat models.
func KnownModelKeys() []string {
	keys := []string{"nano", "mini", "full"}
	return append(keys, TextChatModels...)
}
