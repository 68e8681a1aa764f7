package slackhook

import "github.com/slack-go/slack"

var moduleOptions = []string{
	"link-de-pagamento", "plugin", "estorno", "pix", "cartao", "boleto",
	"antifraude", "split", "relatorios", "conta", "outro",
}

var attemptOptions = []string{"nenhuma", "basicas", "avancadas", "exauridas"}

// BuildIntakeModal renders the new-ticket modal. The invoking channel rides
// along in private_metadata so the eventual notification lands where the
// slash command was typed.
func BuildIntakeModal(channelID string) slack.ModalViewRequest {
	plain := func(text string) *slack.TextBlockObject {
		return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
	}

	desc := slack.NewPlainTextInputBlockElement(plain("Descreva o problema..."), blockDescription)
	desc.Multiline = true

	client := slack.NewPlainTextInputBlockElement(plain("Nome do cliente"), blockClient)

	module := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic, plain("Selecione"), blockModule, selectOptions(moduleOptions)...,
	)
	attempts := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic, plain("Selecione"), blockAttempts, selectOptions(attemptOptions)...,
	)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      ModalCallbackID,
		PrivateMetadata: channelID,
		Title:           plain("Novo Chamado"),
		Submit:          plain("Enviar"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(blockDescription, plain("Descrição do problema"), nil, desc),
			slack.NewInputBlock(blockClient, plain("Cliente / Empresa"), nil, client),
			slack.NewInputBlock(blockModule, plain("Módulo"), nil, module),
			slack.NewInputBlock(blockAttempts, plain("Tentativas N1"), nil, attempts),
		}},
	}
}

func selectOptions(values []string) []*slack.OptionBlockObject {
	opts := make([]*slack.OptionBlockObject, 0, len(values))
	for _, v := range values {
		opts = append(opts, slack.NewOptionBlockObject(v,
			slack.NewTextBlockObject(slack.PlainTextType, v, false, false), nil))
	}
	return opts
}
