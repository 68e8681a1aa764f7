package template

import (
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

// Action identifiers carried by the card's buttons. The button value is the
// ticket's storage identity, so a click routes without any lookup keyed by
// message identity.
const (
	ActionResolveTier2  = "resolver_n2"
	ActionEscalateTier3 = "escalar_n3"

	actionsBlockID = "actions_chamado"
)

// priorityEmoji maps a triage priority to its marker.
func priorityEmoji(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return "🔴"
	case model.PriorityHigh:
		return "🟠"
	case model.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

// FallbackText is the plain-text summary Slack shows in notifications.
func FallbackText(t model.Ticket) string {
	return fmt.Sprintf("[%s] Chamado para triagem", t.TicketID)
}

// BuildTicketCard renders the pending-ticket card: the triage summary plus
// the two mutually exclusive finalization buttons.
func BuildTicketCard(t model.Ticket) []slackapi.Block {
	section := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType, cardText(t), false, false),
		nil, nil,
	)

	resolve := slackapi.NewButtonBlockElement(ActionResolveTier2, t.ID.String(),
		slackapi.NewTextBlockObject(slackapi.PlainTextType, "✓ Resolver N2", false, false))
	resolve.Style = slackapi.StylePrimary
	escalate := slackapi.NewButtonBlockElement(ActionEscalateTier3, t.ID.String(),
		slackapi.NewTextBlockObject(slackapi.PlainTextType, "🔺 Escalar para N3", false, false))

	return []slackapi.Block{
		section,
		slackapi.NewActionBlock(actionsBlockID, resolve, escalate),
	}
}

// cardText renders the card body. Intelligence fields appear only when the
// classifier produced them and they are not the unknown sentinel.
func cardText(t model.Ticket) string {
	v := t.Verdict
	emoji := priorityEmoji(v.Priority)

	var intel []string
	if v.Category != "" {
		intel = append(intel, "• Categoria: "+v.Category)
	}
	if known(v.Environment) {
		intel = append(intel, "• Ambiente: "+v.Environment)
	}
	if known(v.Recurrence) {
		intel = append(intel, "• Recorrência: "+v.Recurrence)
	}
	if known(v.Responsibility) {
		intel = append(intel, "• Responsabilidade: "+v.Responsibility)
	}
	if v.AcquirerBrand != "" {
		intel = append(intel, "• Bandeira/Adquirente: "+v.AcquirerBrand)
	}
	if v.ErrorCode != "" {
		intel = append(intel, "• Código de erro: "+v.ErrorCode)
	}
	if v.FinancialImpact != "" {
		intel = append(intel, "• Impacto financeiro: "+v.FinancialImpact)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔺 *[%s] Chamado para Triagem*\n", t.TicketID)
	fmt.Fprintf(&b, "%s Prioridade: *%s*\n\n", emoji, strings.ToUpper(string(v.Priority)))
	fmt.Fprintf(&b, "*Cliente:* %s  |  *Módulo:* %s\n\n", t.Client, t.Module)
	fmt.Fprintf(&b, "*📋 Resumo*\n%s\n\n", orDash(v.Summary))
	fmt.Fprintf(&b, "*🔍 Diagnóstico*\n%s\n", orDash(v.Diagnosis))
	if len(intel) > 0 {
		fmt.Fprintf(&b, "\n*ℹ️ Detalhes*\n%s\n", strings.Join(intel, "\n"))
	}
	fmt.Fprintf(&b, "\n*✅ Próximos Passos*\n%s\n\n", numbered(v.Steps))
	fmt.Fprintf(&b, "*🏷️ Tags:* %s", orDash(strings.Join(v.Tags, " · ")))
	return b.String()
}

// ResolutionSection is the line appended when an operator finalizes a ticket.
func ResolutionSection(label string) slackapi.Block {
	return slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType, label, false, false),
		nil, nil,
	)
}

// StripActions removes action blocks, leaving the informational card intact.
// Used when editing a finalized ticket's message: the buttons are stale.
func StripActions(blocks []slackapi.Block) []slackapi.Block {
	kept := make([]slackapi.Block, 0, len(blocks))
	for _, block := range blocks {
		if block.BlockType() == slackapi.MBTAction {
			continue
		}
		kept = append(kept, block)
	}
	return kept
}

func known(s string) bool { return s != "" && s != model.UnknownSentinel }

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func numbered(steps []string) string {
	if len(steps) == 0 {
		return "—"
	}
	lines := make([]string, len(steps))
	for i, step := range steps {
		lines[i] = fmt.Sprintf("%d. %s", i+1, step)
	}
	return strings.Join(lines, "\n")
}
