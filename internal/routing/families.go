package routing

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ModelFamilies maps chat/completion/embedding to ordered glob patterns used
// to classify an inbound model name into a RequestType. Static default data,
// not user-mutable.
type ModelFamilies struct {
	Chat       []string `json:"chat"`
	Completion []string `json:"completion"`
	Embedding  []string `json:"embedding"`
}

// DefaultModelFamilies returns the built-in classification patterns.
func DefaultModelFamilies() ModelFamilies {
	return ModelFamilies{
		Chat:       []string{"gpt-4*", "gpt-5*", "claude-*", "gemini-*-pro*", "gemini-3-*"},
		Completion: []string{"gpt-3.5-turbo-instruct", "code-*", "*-codex*"},
		Embedding:  []string{"text-embedding-*", "embed-*"},
	}
}

// Clone returns a deep copy of the families.
func (f ModelFamilies) Clone() ModelFamilies {
	return ModelFamilies{
		Chat:       append([]string(nil), f.Chat...),
		Completion: append([]string(nil), f.Completion...),
		Embedding:  append([]string(nil), f.Embedding...),
	}
}

// Classify matches a model name against the family patterns, in family order
// chat, completion, embedding. Names matching no pattern classify as other.
// Matching is case-insensitive because model names arrive in mixed casing
// from different clients.
func (f ModelFamilies) Classify(model string) RequestType {
	name := strings.ToLower(strings.TrimSpace(model))
	if name == "" {
		return RequestTypeOther
	}
	if matchAny(f.Chat, name) {
		return RequestTypeChat
	}
	if matchAny(f.Completion, name) {
		return RequestTypeCompletion
	}
	if matchAny(f.Embedding, name) {
		return RequestTypeEmbedding
	}
	return RequestTypeOther
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(strings.ToLower(pattern), name)
		if err != nil {
			// Malformed pattern, skip it rather than fail classification.
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
