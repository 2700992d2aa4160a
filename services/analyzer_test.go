package services

import (
	"context"
	"testing"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func newTestAnalyzer() *Analyzer {
	cfg := &config.Config{
		MAHName:                   "Hikma",
		ConfidenceThresholdHigh:   0.85,
		ConfidenceThresholdMedium: 0.60,
	}
	return NewAnalyzer(cfg, zap.NewNop())
}

const validAnalysisResponse = `{
	"is_icsr": true,
	"criteria_present": {
		"identifiable_patient": true,
		"identifiable_reporter": true,
		"suspected_drug": true,
		"adverse_reaction": true
	},
	"criteria_evidence": {
		"patient_info": "68-year-old woman with hypertension",
		"reporter_info": "treating cardiologist at a university hospital",
		"drug_info": "amlodipine 10 mg once daily, oral",
		"reaction_info": "progressive gingival overgrowth over six months"
	},
	"adverse_events": ["gingival hyperplasia"],
	"icsr_description": "Elderly patient developed gingival hyperplasia under amlodipine.",
	"ownership_analysis": {
		"can_exclude": false,
		"exclusion_reason": "",
		"territory_mentioned": "Germany",
		"brand_mentioned": "",
		"dosage_form_mentioned": "tablet"
	},
	"safety_classification": {
		"has_relevant_safety_info": false,
		"justification": ""
	},
	"minimum_criteria_available": true,
	"reasoning": "All four minimum criteria are reported in the abstract."
}`

func TestAnalyzerDisabledWithoutAPIKey(t *testing.T) {
	a := newTestAnalyzer()
	assert.False(t, a.Enabled())

	product := &models.Product{INN: "Amlodipine"}
	_, err := a.Analyze(context.Background(), "Titel", "Abstract", product)
	assert.ErrorIs(t, err, ErrAnalyzerDisabled)

	assert.ErrorIs(t, a.TestConnection(context.Background()), ErrAnalyzerDisabled)
}

func TestParseAnalysis(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("valid response", func(t *testing.T) {
		analysis, err := a.ParseAnalysis(validAnalysisResponse)
		require.NoError(t, err)

		assert.True(t, analysis.IsICSR)
		assert.Equal(t, 4, analysis.CriteriaPresent.Count())
		assert.Equal(t, []string{"gingival hyperplasia"}, analysis.AdverseEvents)
		assert.False(t, analysis.Ownership.CanExclude)
		assert.Equal(t, "Germany", analysis.Ownership.TerritoryMentioned)
		assert.True(t, analysis.MinimumCriteriaAvailable)
		assert.JSONEq(t, validAnalysisResponse, string(analysis.Raw))
	})

	t.Run("markdown fenced response", func(t *testing.T) {
		fenced := "```json\n" + validAnalysisResponse + "\n```"
		analysis, err := a.ParseAnalysis(fenced)
		require.NoError(t, err)
		assert.True(t, analysis.IsICSR)
	})

	t.Run("missing required field", func(t *testing.T) {
		_, err := a.ParseAnalysis(`{"is_icsr": true, "safety_classification": {}}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema")
	})

	t.Run("wrong type for is_icsr", func(t *testing.T) {
		_, err := a.ParseAnalysis(`{
			"is_icsr": "yes",
			"criteria_present": {
				"identifiable_patient": false,
				"identifiable_reporter": false,
				"suspected_drug": false,
				"adverse_reaction": false
			},
			"safety_classification": {}
		}`)
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := a.ParseAnalysis("I am sorry, I cannot help with that.")
		assert.Error(t, err)
	})
}

func TestConfidence(t *testing.T) {
	longReasoning := "All four minimum criteria are clearly reported."
	strongEvidence := map[string]string{
		"patient_info":  "68-year-old woman with hypertension",
		"reporter_info": "treating cardiologist at a university hospital",
		"drug_info":     "amlodipine 10 mg once daily, oral",
		"reaction_info": "progressive gingival overgrowth over six months",
	}

	tests := []struct {
		name     string
		analysis *Analysis
		want     float64
	}{
		{
			name:     "base score only",
			analysis: &Analysis{},
			want:     0.3,
		},
		{
			name: "non-icsr with justification",
			analysis: &Analysis{
				Safety: SafetyClassification{Justification: "population study without individual cases"},
			},
			want: 0.7,
		},
		{
			name: "icsr with all criteria",
			analysis: &Analysis{
				IsICSR: true,
				CriteriaPresent: CriteriaPresent{
					IdentifiablePatient:  true,
					IdentifiableReporter: true,
					SuspectedDrug:        true,
					AdverseReaction:      true,
				},
			},
			want: 0.7,
		},
		{
			name: "icsr with half the criteria",
			analysis: &Analysis{
				IsICSR: true,
				CriteriaPresent: CriteriaPresent{
					IdentifiablePatient: true,
					SuspectedDrug:       true,
				},
			},
			want: 0.5,
		},
		{
			name: "short evidence does not count",
			analysis: &Analysis{
				CriteriaEvidence: map[string]string{"patient_info": "short"},
			},
			want: 0.3,
		},
		{
			name: "full marks",
			analysis: &Analysis{
				IsICSR: true,
				CriteriaPresent: CriteriaPresent{
					IdentifiablePatient:  true,
					IdentifiableReporter: true,
					SuspectedDrug:        true,
					AdverseReaction:      true,
				},
				CriteriaEvidence: strongEvidence,
				Reasoning:        longReasoning,
			},
			want: 1.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Confidence(tc.analysis), 1e-9)
		})
	}
}

func TestConfidenceLevel(t *testing.T) {
	a := newTestAnalyzer()

	assert.Equal(t, "high", a.ConfidenceLevel(0.95))
	assert.Equal(t, "high", a.ConfidenceLevel(0.85))
	assert.Equal(t, "medium", a.ConfidenceLevel(0.70))
	assert.Equal(t, "medium", a.ConfidenceLevel(0.60))
	assert.Equal(t, "low", a.ConfidenceLevel(0.59))
	assert.Equal(t, "low", a.ConfidenceLevel(0))
}

func TestBuildAnalysisPrompt(t *testing.T) {
	product := &models.Product{
		INN:         "Amlodipine",
		Territories: datatypes.JSON(`["US","UK","Jordan"]`),
	}

	prompt := BuildAnalysisPrompt("Ein Titel", "Ein Abstract", product)

	assert.Contains(t, prompt, "Title: Ein Titel")
	assert.Contains(t, prompt, "Abstract: Ein Abstract")
	assert.Contains(t, prompt, "Product Name (INN): Amlodipine")
	assert.Contains(t, prompt, "Approved Territories: US, UK, Jordan")
	assert.Contains(t, prompt, "Approved Dosage Forms: Not specified")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "kurz", truncate("kurz", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "äöü...", truncate("äöüäöü", 3))
}
