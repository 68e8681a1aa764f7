package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Channel identifies where a support request originally came in.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelPhone    Channel = "telefone"
	ChannelChat     Channel = "chat"
	ChannelPortal   Channel = "portal"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSlack    Channel = "slack"
)

// AttemptsTier records how much first-level troubleshooting was already done.
type AttemptsTier string

const (
	AttemptsNone      AttemptsTier = "nenhuma"
	AttemptsBasic     AttemptsTier = "basicas"
	AttemptsAdvanced  AttemptsTier = "avancadas"
	AttemptsExhausted AttemptsTier = "exauridas"
)

// FinalVerdict is the human decision recorded on a ticket. It is write-once at
// the business level; the store itself applies last-write-wins (see the
// documented finalization race in DESIGN.md).
type FinalVerdict string

const (
	FinalVerdictTier2 FinalVerdict = "N2"
	FinalVerdictTier3 FinalVerdict = "N3"
)

// RowID is the storage-assigned primary key of a ticket row. PostgREST may
// return it as a JSON number or a string depending on the column type, so it
// accepts both.
type RowID string

func (id *RowID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = RowID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("row id is neither string nor number: %s", s)
	}
	*id = RowID(n.String())
	return nil
}

func (id RowID) String() string { return string(id) }

// TicketIDPrefix is the literal prefix of human-readable ticket identifiers.
const TicketIDPrefix = "TK-"

// FormatTicketID renders a sequence value as a fixed-width ticket identifier,
// e.g. FormatTicketID(7) == "TK-0007".
func FormatTicketID(seq int64) string {
	return TicketIDPrefix + fmt.Sprintf("%04d", seq)
}

// MinPostMortemChars is the minimum length accepted for a post-mortem text.
const MinPostMortemChars = 20

// Ticket is the canonical support-ticket row as stored in the `chamados`
// table. JSON tags are the storage column names; the dashboard reads the same
// schema, so they must not change.
type Ticket struct {
	ID       RowID  `json:"id,omitempty"`
	TicketID string `json:"ticket_id"`

	// Intake fields, immutable after creation.
	Description      string       `json:"texto_original"`
	Client           string       `json:"cliente"`
	Channel          Channel      `json:"canal"`
	Module           string       `json:"modulo"`
	Attempts         AttemptsTier `json:"tentativas"`
	SlackUserID      string       `json:"slack_user_id,omitempty"`
	OperationContext string       `json:"contexto_operacao,omitempty"`

	// Classification fields, written once when triage completes.
	Verdict Verdict `json:"-"`

	// Slack routing metadata, patched after the notification is confirmed
	// posted. Set together or not at all.
	SlackChannel string `json:"slack_channel,omitempty"`
	SlackTS      string `json:"slack_ts,omitempty"`

	// Resolution fields.
	VerdictFinal FinalVerdict `json:"verdict_final,omitempty"`
	ResolvedAt   *time.Time   `json:"resolvido_em,omitempty"`

	PostMortem       string     `json:"post_mortem,omitempty"`
	PostMortemAuthor string     `json:"post_mortem_autor,omitempty"`
	PostMortemAt     *time.Time `json:"post_mortem_em,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// NewTicket assembles a ticket row from an intake submission, an issued
// ticket identifier and the triage verdict.
func NewTicket(sub Submission, ticketID string, verdict Verdict) Ticket {
	return Ticket{
		TicketID:         ticketID,
		Description:      sub.Description,
		Client:           sub.Client,
		Channel:          sub.Channel,
		Module:           sub.Module,
		Attempts:         sub.Attempts,
		SlackUserID:      sub.SlackUserID,
		OperationContext: sub.OperationContext,
		Verdict:          verdict,
	}
}

// MarshalJSON flattens the classification fields into the row, matching the
// flat column layout of the `chamados` table.
func (t Ticket) MarshalJSON() ([]byte, error) {
	type plain Ticket
	base, err := json.Marshal(plain(t))
	if err != nil {
		return nil, err
	}
	verdict, err := json.Marshal(t.Verdict)
	if err != nil {
		return nil, err
	}
	return mergeObjects(base, verdict)
}

// UnmarshalJSON is the inverse of MarshalJSON: classification columns are
// read back into the embedded Verdict.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	type plain Ticket
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.Verdict); err != nil {
		return err
	}
	*t = Ticket(p)
	return nil
}

// mergeObjects joins two JSON objects into one. Keys from b win.
func mergeObjects(a, b []byte) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(a, &m); err != nil {
		return nil, err
	}
	var n map[string]json.RawMessage
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	for k, v := range n {
		m[k] = v
	}
	return json.Marshal(m)
}

// Finalized reports whether a human decision was already recorded.
func (t Ticket) Finalized() bool { return t.VerdictFinal != "" }

// ValidPostMortem checks the minimum-length rule for post-mortem texts.
func ValidPostMortem(text string) error {
	if len([]rune(strings.TrimSpace(text))) < MinPostMortemChars {
		return fmt.Errorf("post-mortem must have at least %d characters", MinPostMortemChars)
	}
	return nil
}

// ParseRowID validates that a row id received from a button payload is a
// plausible identifier (non-empty, no whitespace).
func ParseRowID(s string) (RowID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty row id")
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", fmt.Errorf("malformed row id %q", s)
	}
	return RowID(s), nil
}

// SequenceFromTicketID extracts the numeric part of a ticket identifier.
// Used by tooling and tests; returns an error for foreign formats.
func SequenceFromTicketID(ticketID string) (int64, error) {
	if !strings.HasPrefix(ticketID, TicketIDPrefix) {
		return 0, fmt.Errorf("ticket id %q lacks %q prefix", ticketID, TicketIDPrefix)
	}
	return strconv.ParseInt(strings.TrimPrefix(ticketID, TicketIDPrefix), 10, 64)
}
