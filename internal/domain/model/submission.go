package model

import (
	"fmt"
	"strings"
)

// Submission is a validated intake request: everything needed to run the
// triage pipeline for one new ticket. It is also the persisted payload of an
// outbox job, so it must round-trip through JSON.
type Submission struct {
	Description      string       `json:"description"`
	Client           string       `json:"client"`
	Channel          Channel      `json:"channel"`
	Module           string       `json:"module"`
	Attempts         AttemptsTier `json:"attempts"`
	SlackUserID      string       `json:"slack_user_id,omitempty"`
	OperationContext string       `json:"operation_context,omitempty"`

	// TargetChannel is where the triage notification is posted: the channel
	// the slash command was invoked from, falling back to a DM with the
	// submitting user.
	TargetChannel string `json:"target_channel"`
}

// Normalize applies the intake defaults the original product guarantees:
// unset client, module and attempts get their sentinel values, and a missing
// target channel falls back to the submitting user.
func (s Submission) Normalize() Submission {
	s.Description = strings.TrimSpace(s.Description)
	if s.Client == "" {
		s.Client = "Não informado"
	}
	if s.Module == "" {
		s.Module = "outro"
	}
	if s.Attempts == "" {
		s.Attempts = AttemptsNone
	}
	if s.Channel == "" {
		s.Channel = ChannelSlack
	}
	if s.TargetChannel == "" {
		s.TargetChannel = s.SlackUserID
	}
	return s
}

// Validate rejects submissions that cannot enter the pipeline.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if s.SlackUserID == "" && s.TargetChannel == "" {
		return fmt.Errorf("no notification target: submission has neither user nor channel")
	}
	return nil
}
