package triage

import (
	"bytes"
	"embed"
	"text/template"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

//go:embed prompts/system_prompt.txt prompts/user_message.tmpl
var promptFS embed.FS

// promptBuilder renders the fixed system instruction and the per-ticket user
// message sent to the classification function.
type promptBuilder struct {
	system string
	user   *template.Template
}

func newPromptBuilder() (*promptBuilder, error) {
	system, err := promptFS.ReadFile("prompts/system_prompt.txt")
	if err != nil {
		return nil, err
	}
	user, err := template.ParseFS(promptFS, "prompts/user_message.tmpl")
	if err != nil {
		return nil, err
	}
	return &promptBuilder{system: string(system), user: user}, nil
}

type userMessageInput struct {
	OperationContext string
	Description      string
	Client           string
	Channel          string
	Module           string
	Attempts         string
}

// BuildUserMessage composes the classifier's user message. The standing
// operation context, when present, is prefixed so the model treats it as
// reference material.
func (b *promptBuilder) BuildUserMessage(sub model.Submission) (string, error) {
	var buf bytes.Buffer
	err := b.user.ExecuteTemplate(&buf, "user_message.tmpl", userMessageInput{
		OperationContext: sub.OperationContext,
		Description:      sub.Description,
		Client:           sub.Client,
		Channel:          string(sub.Channel),
		Module:           sub.Module,
		Attempts:         string(sub.Attempts),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
