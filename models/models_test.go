package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestSearchJobProgress(t *testing.T) {
	tests := []struct {
		name string
		job  SearchJob
		want float64
	}{
		{"no articles yet", SearchJob{Status: JobStatusRunning}, 0},
		{"completed without articles", SearchJob{Status: JobStatusCompleted}, 100},
		{"halfway", SearchJob{TotalArticles: 10, ProcessedArticles: 5}, 50},
		{"done", SearchJob{TotalArticles: 10, ProcessedArticles: 10}, 100},
		{"overshoot is capped", SearchJob{TotalArticles: 10, ProcessedArticles: 12}, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.job.Progress(), 1e-9)
		})
	}
}

func TestSearchJobIsTerminal(t *testing.T) {
	assert.False(t, (&SearchJob{Status: JobStatusPending}).IsTerminal())
	assert.False(t, (&SearchJob{Status: JobStatusRunning}).IsTerminal())
	assert.True(t, (&SearchJob{Status: JobStatusCompleted}).IsTerminal())
	assert.True(t, (&SearchJob{Status: JobStatusFailed}).IsTerminal())
}

func TestArticleFirstAuthor(t *testing.T) {
	assert.Equal(t, "Meyer K", (&Article{Authors: "Meyer K; Tanaka H; Smith J"}).FirstAuthor())
	assert.Equal(t, "Meyer K", (&Article{Authors: "Meyer K"}).FirstAuthor())
	assert.Equal(t, "", (&Article{}).FirstAuthor())
}

func TestSettingMaskedValue(t *testing.T) {
	assert.Equal(t, "plain", (&Setting{Value: "plain"}).MaskedValue())
	assert.Equal(t, "", (&Setting{Value: "", IsSecret: true}).MaskedValue())
	assert.Equal(t, "****", (&Setting{Value: "abcd", IsSecret: true}).MaskedValue())
	assert.Equal(t, "****6789", (&Setting{Value: "123456789", IsSecret: true}).MaskedValue())
}

func TestProductLists(t *testing.T) {
	p := &Product{
		Territories: datatypes.JSON(`["DE","FR","IT"]`),
		DosageForms: datatypes.JSON(`["Injection"]`),
	}
	assert.Equal(t, []string{"DE", "FR", "IT"}, p.TerritoryList())
	assert.Equal(t, []string{"Injection"}, p.DosageFormList())

	empty := &Product{}
	assert.Nil(t, empty.TerritoryList())
	assert.Nil(t, empty.DosageFormList())

	broken := &Product{Territories: datatypes.JSON(`{"not":"a list"}`)}
	assert.Nil(t, broken.TerritoryList())
}
