package llm

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

// PromptMaker turns the user's planning issue into a model prompt.
type PromptMaker interface {
	MakePrompt(input string) (string, error)
}

// LoadPrompt reads an embedded prompt template by file name.
func LoadPrompt(name string) (string, error) {
	b, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %q: %w", name, err)
	}
	return string(b), nil
}

// SuggestionPromptMaker asks the model for an attention tree that inspires
// the user, by example rather than instruction.
type SuggestionPromptMaker struct{}

func (SuggestionPromptMaker) MakePrompt(input string) (string, error) {
	tmpl, err := LoadPrompt("suggestion-prompt.md")
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(tmpl, "{text}", input), nil
}

const lrpsPreamble = "<prompt>You are a manager working on the long range planning of your organization, " +
	"using the SOFT framework known as the Long Range Planning Service (LRPS) of Stanford Research Institute (SRI).</prompt>\n" +
	"<policy>As a professional, provide clear and accurate validation of the identification of a planning issue " +
	"for the organization while maintaining confidentiality and professionalism. Avoid giving specific advice " +
	"without sufficient context as standardised by the SOFT framework.</policy>\n"

// ValidatingPromptMaker checks the user's wording of an issue against an
// example response. Inspiration, when set, replaces the embedded sample.
type ValidatingPromptMaker struct {
	Inspiration string
}

func (v ValidatingPromptMaker) MakePrompt(input string) (string, error) {
	example := v.Inspiration
	if example == "" {
		sample, err := LoadPrompt("response-sample.md")
		if err != nil {
			return "", err
		}
		example = sample
	}
	const question = "Check that you have formulated the issue correctly as follows:"
	return fmt.Sprintf("%s\n<example><question>%s %s</question>\n<response>%s</response>\n</example>",
		lrpsPreamble, question, input, example), nil
}
