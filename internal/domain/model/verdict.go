package model

// Priority is the triage priority assigned by the classifier. Wire values are
// the Portuguese labels the classifier is instructed to emit.
type Priority string

const (
	PriorityCritical Priority = "crítica"
	PriorityHigh     Priority = "alta"
	PriorityMedium   Priority = "média"
	PriorityLow      Priority = "baixa"
)

// VerdictTier is the classifier's escalation recommendation.
type VerdictTier string

const (
	TierResolve  VerdictTier = "N2 - Resolver"
	TierEscalate VerdictTier = "N3 - Escalar"
)

// UnknownSentinel marks classifier fields it could not determine. Rendering
// skips fields holding this value.
const UnknownSentinel = "desconhecido"

// Verdict is the normalized output of automated classification. JSON tags
// match both the classifier's response schema and the storage columns.
type Verdict struct {
	Tier            VerdictTier `json:"verdict,omitempty"`
	Priority        Priority    `json:"prioridade,omitempty"`
	Summary         string      `json:"resumo,omitempty"`
	Diagnosis       string      `json:"diagnostico,omitempty"`
	Confidence      *float64    `json:"confianca,omitempty"`
	Category        string      `json:"categoria,omitempty"`
	Environment     string      `json:"ambiente,omitempty"`
	Recurrence      string      `json:"recorrencia,omitempty"`
	Responsibility  string      `json:"responsabilidade,omitempty"`
	AcquirerBrand   string      `json:"bandeira_adquirente,omitempty"`
	ErrorCode       string      `json:"codigo_erro,omitempty"`
	FinancialImpact string      `json:"impacto_financeiro,omitempty"`
	Steps           []string    `json:"passos"`
	Tags            []string    `json:"tags"`
	TierThreeNote   string      `json:"mensagem_n3,omitempty"`
}

// FallbackVerdict is returned when the classifier's response cannot be used:
// transport failure, non-success status, or an unparsable body. The raw text
// is preserved in the diagnosis so operators can still see what came back.
func FallbackVerdict(rawText string) Verdict {
	diagnosis := rawText
	if diagnosis == "" {
		diagnosis = "—"
	}
	return Verdict{
		Priority:  PriorityMedium,
		Summary:   "Erro ao parsear análise.",
		Diagnosis: diagnosis,
		Steps:     []string{},
		Tags:      []string{},
	}
}

// IsFallback reports whether a verdict came from FallbackVerdict rather than
// a successful classification. The classifier always fills the tier on
// success, so its absence is the marker.
func (v Verdict) IsFallback() bool { return v.Tier == "" }

// Escalated reports whether the classifier recommended tier-3 escalation.
func (v Verdict) Escalated() bool { return v.Tier == TierEscalate }
