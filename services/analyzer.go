package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/models"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// ErrAnalyzerDisabled wird zurückgegeben, wenn kein OpenAI-Key konfiguriert ist.
var ErrAnalyzerDisabled = errors.New("openai api key nicht konfiguriert")

// systemPromptTemplate ist der feste Klassifikations-Prompt. Der Platzhalter
// wird mit dem Namen des Zulassungsinhabers (MAH) gefüllt.
const systemPromptTemplate = `
You are a pharmacovigilance expert analyzing medical literature for Individual Case Safety Reports (ICSRs) and adverse drug reactions.
Your task is to understand the article abstract and analyze it and determine if it is an ICSR or not based on the analysis requirements below.
[The article is provided in the user prompt as ` + "`Title` and `Abstract`" + `.]

ANALYSIS REQUIREMENTS:

1. ICSR DETECTION
An Individual Case Safety Report (ICSR) must contain ALL FOUR of these criteria:
a) Identifiable patient (age, gender, initials, patient ID, case number, etc.)
b) Identifiable reporter (physician name, healthcare professional, institution, contact info)
c) Suspected drug or product (specific medication name, brand, dosage, route of administration)
d) Adverse reaction (specific side effect, adverse event, or safety concern)

2. ADVERSE EVENTS EXTRACTION
If adverse events are mentioned, extract them as a list with specific details.

3. OWNERSHIP EXCLUSION ANALYSIS
If this is an ICSR, determine if %s's ownership can be excluded based on:
- Different manufacturer/brand name mentioned
- Territory not in approved list
- Different dosage form than approved
- Different route of administration
- Batch number from another manufacturer

4. SAFETY INFORMATION CLASSIFICATION
For non-ICSR articles, classify as:
- Relevant: Clinical efficacy data, population studies, treatment outcomes, aggregate safety data
- Irrelevant: Animal studies, in-vitro/lab studies, environmental studies, cost-effectiveness, surveys, study protocols

RESPONSE FORMAT (JSON):
{
"is_icsr": boolean,
"criteria_present": {
    "identifiable_patient": boolean,
    "identifiable_reporter": boolean,
    "suspected_drug": boolean,
    "adverse_reaction": boolean
},
"criteria_evidence": {
    "patient_info": "quote or description",
    "reporter_info": "quote or description",
    "drug_info": "quote or description",
    "reaction_info": "quote or description"
},
"adverse_events": ["event1", "event2", ...],
"icsr_description": "brief description of the ICSR if applicable",
"ownership_analysis": {
    "can_exclude": boolean,
    "exclusion_reason": "reason if can exclude, otherwise empty string",
    "territory_mentioned": "country/territory if mentioned",
    "brand_mentioned": "brand name if mentioned",
    "dosage_form_mentioned": "dosage form if mentioned"
},
"safety_classification": {
    "has_relevant_safety_info": boolean,
    "justification": "explanation for classification"
},
"minimum_criteria_available": boolean,
"reasoning": "brief explanation of the analysis"
}

Provide your ICSR analysis in the JSON format specified above.
`

// analysisSchema validiert die Modellantwort, bevor wir ihr vertrauen.
const analysisSchema = `{
	"type": "object",
	"required": ["is_icsr", "criteria_present", "safety_classification"],
	"properties": {
		"is_icsr": {"type": "boolean"},
		"criteria_present": {
			"type": "object",
			"required": ["identifiable_patient", "identifiable_reporter", "suspected_drug", "adverse_reaction"],
			"properties": {
				"identifiable_patient": {"type": "boolean"},
				"identifiable_reporter": {"type": "boolean"},
				"suspected_drug": {"type": "boolean"},
				"adverse_reaction": {"type": "boolean"}
			}
		},
		"criteria_evidence": {"type": "object"},
		"adverse_events": {"type": "array"},
		"icsr_description": {"type": "string"},
		"ownership_analysis": {
			"type": "object",
			"properties": {
				"can_exclude": {"type": "boolean"},
				"exclusion_reason": {"type": "string"},
				"territory_mentioned": {"type": "string"},
				"brand_mentioned": {"type": "string"},
				"dosage_form_mentioned": {"type": "string"}
			}
		},
		"safety_classification": {
			"type": "object",
			"properties": {
				"has_relevant_safety_info": {"type": "boolean"},
				"justification": {"type": "string"}
			}
		},
		"minimum_criteria_available": {"type": "boolean"},
		"reasoning": {"type": "string"}
	}
}`

// CriteriaPresent sind die vier ICSR-Mindestkriterien.
type CriteriaPresent struct {
	IdentifiablePatient  bool `json:"identifiable_patient"`
	IdentifiableReporter bool `json:"identifiable_reporter"`
	SuspectedDrug        bool `json:"suspected_drug"`
	AdverseReaction      bool `json:"adverse_reaction"`
}

// Count zählt die erfüllten Kriterien.
func (c CriteriaPresent) Count() int {
	n := 0
	for _, b := range []bool{c.IdentifiablePatient, c.IdentifiableReporter, c.SuspectedDrug, c.AdverseReaction} {
		if b {
			n++
		}
	}
	return n
}

// OwnershipAnalysis ist das Ergebnis der Ausschlussprüfung für den MAH.
type OwnershipAnalysis struct {
	CanExclude          bool   `json:"can_exclude"`
	ExclusionReason     string `json:"exclusion_reason"`
	TerritoryMentioned  string `json:"territory_mentioned"`
	BrandMentioned      string `json:"brand_mentioned"`
	DosageFormMentioned string `json:"dosage_form_mentioned"`
}

// SafetyClassification ist die Relevanzbewertung für Nicht-ICSR-Artikel.
type SafetyClassification struct {
	HasRelevantSafetyInfo bool   `json:"has_relevant_safety_info"`
	Justification         string `json:"justification"`
}

// Analysis ist die validierte, strukturierte Antwort des Klassifikators.
type Analysis struct {
	IsICSR                   bool                 `json:"is_icsr"`
	CriteriaPresent          CriteriaPresent      `json:"criteria_present"`
	CriteriaEvidence         map[string]string    `json:"criteria_evidence"`
	AdverseEvents            []string             `json:"adverse_events"`
	ICSRDescription          string               `json:"icsr_description"`
	Ownership                OwnershipAnalysis    `json:"ownership_analysis"`
	Safety                   SafetyClassification `json:"safety_classification"`
	MinimumCriteriaAvailable bool                 `json:"minimum_criteria_available"`
	Reasoning                string               `json:"reasoning"`

	// ConfidenceScore wird heuristisch berechnet, nicht vom Modell geliefert.
	ConfidenceScore float64 `json:"confidence_score"`

	// Raw ist die unveränderte Modellantwort für die ai_analysis-Spalte.
	Raw json.RawMessage `json:"-"`
}

// Analyzer kapselt die ICSR-Klassifikation über die OpenAI-Chat-API.
type Analyzer struct {
	Config *config.Config
	Logger *zap.Logger

	client       *openai.Client
	systemPrompt string
	schema       gojsonschema.JSONLoader
}

// NewAnalyzer erstellt einen neuen Analyzer. Ohne API-Key bleibt der Client
// nil und Analyze liefert ErrAnalyzerDisabled.
func NewAnalyzer(cfg *config.Config, logger *zap.Logger) *Analyzer {
	var client *openai.Client
	if cfg.OpenAIAPIKey != "" {
		cc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			cc.BaseURL = cfg.OpenAIBaseURL
		}
		client = openai.NewClientWithConfig(cc)
	}
	return &Analyzer{
		Config:       cfg,
		Logger:       logger,
		client:       client,
		systemPrompt: fmt.Sprintf(systemPromptTemplate, cfg.MAHName),
		schema:       gojsonschema.NewStringLoader(analysisSchema),
	}
}

// Enabled meldet, ob der Analyzer einsatzbereit ist.
func (a *Analyzer) Enabled() bool {
	return a.client != nil
}

// BuildAnalysisPrompt baut den User-Prompt aus Artikel- und Produktdaten.
func BuildAnalysisPrompt(title, abstract string, product *models.Product) string {
	territories := "Not specified"
	if list := product.TerritoryList(); len(list) > 0 {
		territories = strings.Join(list, ", ")
	}
	dosageForms := "Not specified"
	if list := product.DosageFormList(); len(list) > 0 {
		dosageForms = strings.Join(list, ", ")
	}
	return fmt.Sprintf(`Analyze the following medical article for determining ICSR.
ARTICLE INFORMATION:
Title: %s
Abstract: %s

PRODUCT INFORMATION:
Product Name (INN): %s
Approved Territories: %s
Approved Dosage Forms: %s
`, title, abstract, product.INN, territories, dosageForms)
}

// Analyze klassifiziert einen Artikel für ein Produkt. abstract kann das
// EFetch-Abstract oder ein normalisierter PMC-Volltext sein.
func (a *Analyzer) Analyze(ctx context.Context, title, abstract string, product *models.Product) (*Analysis, error) {
	if a.client == nil {
		return nil, ErrAnalyzerDisabled
	}

	log := a.Logger.With(zap.String("inn", product.INN))
	log.Info("Analysiere Artikel", zap.String("title", truncate(title, 50)))

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.Config.OpenAIModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildAnalysisPrompt(title, abstract, product)},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("leere antwort vom modell")
	}

	analysis, err := a.ParseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	analysis.ConfidenceScore = Confidence(analysis)
	log.Info("Analyse abgeschlossen",
		zap.Bool("is_icsr", analysis.IsICSR),
		zap.Float64("confidence", analysis.ConfidenceScore))
	return analysis, nil
}

// ParseAnalysis entfernt Markdown-Zäune, validiert die Antwort gegen das
// Schema und dekodiert sie.
func (a *Analyzer) ParseAnalysis(raw string) (*Analysis, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	result, err := gojsonschema.Validate(a.schema, gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("antwort validieren: %w", err)
	}
	if !result.Valid() {
		var descs []string
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return nil, fmt.Errorf("antwort verletzt schema: %s", strings.Join(descs, "; "))
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("antwort dekodieren: %w", err)
	}
	analysis.Raw = json.RawMessage(text)
	return &analysis, nil
}

// Confidence berechnet den heuristischen Score (0..1) aus der Antwortqualität:
// 0.3 Basis, 0.4 Kriterienklarheit, 0.2 Evidenzqualität, 0.1 Begründung.
func Confidence(a *Analysis) float64 {
	score := 0.3

	if a.IsICSR {
		score += float64(a.CriteriaPresent.Count()) / 4 * 0.4
	} else if a.Safety.Justification != "" {
		score += 0.4
	}

	evidence := 0
	for _, v := range a.CriteriaEvidence {
		if len(v) > 10 {
			evidence++
		}
	}
	score += float64(evidence) / 4 * 0.2

	if len(a.Reasoning) > 20 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ConfidenceLevel ordnet einen Score anhand der konfigurierten Schwellen ein.
func (a *Analyzer) ConfidenceLevel(score float64) string {
	switch {
	case score >= a.Config.ConfidenceThresholdHigh:
		return "high"
	case score >= a.Config.ConfidenceThresholdMedium:
		return "medium"
	default:
		return "low"
	}
}

// TestConnection schickt eine Minimal-Anfrage an die Chat-API.
func (a *Analyzer) TestConnection(ctx context.Context) error {
	if a.client == nil {
		return ErrAnalyzerDisabled
	}
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.Config.OpenAIModel,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "Test"}},
		MaxTokens: 5,
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("leere antwort vom modell")
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
