package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mrik-soulpage/pharmacovigilance/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(baseURL string) *Fetcher {
	cfg := &config.Config{
		PubMedBaseURL:   baseURL,
		PubMedTool:      "pv-literature-monitor",
		PubMedEmail:     "pv@example.com",
		PubMedAPIKey:    "topsecret",
		PubMedRateLimit: 1000,
	}
	return NewFetcher(cfg, zap.NewNop())
}

func TestDateRange(t *testing.T) {
	from := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		from *time.Time
		to   *time.Time
		want string
	}{
		{"both ends", &from, &to, " AND (2026/02/02[PDAT]:2026/02/09[PDAT])"},
		{"open end", &from, nil, " AND (2026/02/02[PDAT]:3000[PDAT])"},
		{"open start", nil, &to, " AND (1900[PDAT]:2026/02/09[PDAT])"},
		{"no window", nil, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DateRange(tc.from, tc.to))
		})
	}
}

func TestBuildCitation(t *testing.T) {
	tests := []struct {
		name                              string
		firstAuthor, journal, year, pages string
		want                              string
	}{
		{"complete", "Meyer K", "J Clin Pharmacol", "2024", "101-105", "Meyer K et al. J Clin Pharmacol. 2024. 101-105."},
		{"no pages", "Meyer K", "J Clin Pharmacol", "2024", "", "Meyer K et al. J Clin Pharmacol. 2024."},
		{"author only", "Meyer K", "", "", "", "Meyer K et al."},
		{"no author", "", "Lancet", "2023", "", "Lancet. 2023."},
		{"nothing", "", "", "", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildCitation(tc.firstAuthor, tc.journal, tc.year, tc.pages))
		})
	}
}

func TestParseEntrezDate(t *testing.T) {
	day := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		name string
		in   *EntrezDate
		want *time.Time
	}{
		{"numeric", &EntrezDate{Year: "2024", Month: "3", Day: "15"}, day(2024, time.March, 15)},
		{"named month", &EntrezDate{Year: "2023", Month: "Feb", Day: "1"}, day(2023, time.February, 1)},
		{"year only", &EntrezDate{Year: "2022"}, day(2022, time.January, 1)},
		{"day out of range", &EntrezDate{Year: "2022", Month: "6", Day: "40"}, day(2022, time.June, 1)},
		{"missing year", &EntrezDate{Month: "6", Day: "2"}, nil},
		{"garbage year", &EntrezDate{Year: "kein jahr"}, nil},
		{"nil", nil, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseEntrezDate(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "got %v", got)
		})
	}
}

func TestSearch(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"esearchresult":{"count":"2","idlist":["38012345","38099999"]}}`)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	from := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	ids, err := f.Search(context.Background(), "Amlodipine AND (case report)", &from, &to, 25)
	require.NoError(t, err)
	assert.Equal(t, []string{"38012345", "38099999"}, ids)

	assert.Equal(t, "/esearch.fcgi", gotPath)
	assert.Equal(t, "pubmed", gotQuery.Get("db"))
	assert.Equal(t, "json", gotQuery.Get("retmode"))
	assert.Equal(t, "25", gotQuery.Get("retmax"))
	assert.Equal(t, "relevance", gotQuery.Get("sort"))
	assert.Equal(t, "Amlodipine AND (case report) AND (2026/02/02[PDAT]:2026/02/09[PDAT])", gotQuery.Get("term"))
	assert.Equal(t, "pv-literature-monitor", gotQuery.Get("tool"))
	assert.Equal(t, "pv@example.com", gotQuery.Get("email"))
	assert.Equal(t, "topsecret", gotQuery.Get("api_key"))
}

func TestSearchRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"esearchresult":{"count":"1","idlist":["42"]}}`)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	ids, err := f.Search(context.Background(), "aspirin", nil, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSearchGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	_, err := f.Search(context.Background(), "aspirin", nil, nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

const efetchCaseReportXML = `<?xml version="1.0"?>
<PubmedArticleSet>
 <PubmedArticle>
  <MedlineCitation>
   <PMID>38012345</PMID>
   <Article>
    <ArticleTitle>Amlodipine-induced gingival hyperplasia in an elderly patient.</ArticleTitle>
    <Abstract>
     <AbstractText>BACKGROUND: First part.</AbstractText>
     <AbstractText>CASE: Second part.</AbstractText>
    </Abstract>
    <Pagination><MedlinePgn>101-105</MedlinePgn></Pagination>
    <AuthorList>
     <Author><LastName>Meyer</LastName><Initials>K</Initials></Author>
     <Author><LastName>Tanaka</LastName><Initials>H</Initials></Author>
     <Author><CollectiveName>ACME Study Group</CollectiveName></Author>
    </AuthorList>
    <Journal>
     <Title>Journal of Clinical Pharmacology</Title>
     <JournalIssue><PubDate><Year>2024</Year><Month>03</Month></PubDate></JournalIssue>
    </Journal>
   </Article>
  </MedlineCitation>
  <PubmedData>
   <History>
    <PubMedPubDate PubStatus="received"><Year>2023</Year><Month>11</Month><Day>2</Day></PubMedPubDate>
    <PubMedPubDate PubStatus="entrez"><Year>2024</Year><Month>3</Month><Day>15</Day></PubMedPubDate>
   </History>
   <ArticleIdList>
    <ArticleId IdType="pubmed">38012345</ArticleId>
    <ArticleId IdType="pmc">PMC10999888</ArticleId>
    <ArticleId IdType="doi">10.1000/jcp.2024.123</ArticleId>
    <ArticleId IdType="mid">NIHMS987654</ArticleId>
   </ArticleIdList>
  </PubmedData>
 </PubmedArticle>
</PubmedArticleSet>`

const efetchMedlineDateXML = `<?xml version="1.0"?>
<PubmedArticleSet>
 <PubmedArticle>
  <MedlineCitation>
   <PMID>36000001</PMID>
   <DateCreated><Year>2023</Year><Month>Feb</Month><Day>01</Day></DateCreated>
   <Article>
    <ArticleTitle>Short communication.</ArticleTitle>
    <Journal>
     <Title>Lancet</Title>
     <JournalIssue><PubDate><MedlineDate>2023 Jan-Feb</MedlineDate></PubDate></JournalIssue>
    </Journal>
   </Article>
  </MedlineCitation>
 </PubmedArticle>
</PubmedArticleSet>`

func newEfetchServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		switch r.URL.Query().Get("id") {
		case "38012345":
			fmt.Fprint(w, efetchCaseReportXML)
		case "36000001":
			fmt.Fprint(w, efetchMedlineDateXML)
		default:
			fmt.Fprint(w, `<?xml version="1.0"?><PubmedArticleSet></PubmedArticleSet>`)
		}
	}))
}

func TestFetchArticle(t *testing.T) {
	srv := newEfetchServer()
	defer srv.Close()
	f := newTestFetcher(srv.URL)

	article, err := f.FetchArticle(context.Background(), "38012345")
	require.NoError(t, err)

	assert.Equal(t, "38012345", article.PMID)
	assert.Equal(t, "Amlodipine-induced gingival hyperplasia in an elderly patient.", article.Title)
	assert.Equal(t, "BACKGROUND: First part. CASE: Second part.", article.Abstract)
	assert.Equal(t, "101-105", article.Pages)
	// Kollektiv-Autoren ohne LastName fallen aus der Liste.
	assert.Equal(t, "Meyer K; Tanaka H", article.Authors)
	assert.Equal(t, "Journal of Clinical Pharmacology", article.Journal)
	assert.Equal(t, "2024", article.PublicationYear)
	assert.Equal(t, "PMC10999888", article.PMCID)
	assert.Equal(t, "10.1000/jcp.2024.123", article.DOI)
	assert.Equal(t, "NIHMS987654", article.NIHMSID)
	assert.True(t, article.FullTextAvailable)

	require.NotNil(t, article.EntrezDate)
	assert.True(t, article.EntrezDate.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, "Meyer K et al. Journal of Clinical Pharmacology. 2024. 101-105.", article.Citation)
}

func TestFetchArticleMedlineDate(t *testing.T) {
	srv := newEfetchServer()
	defer srv.Close()
	f := newTestFetcher(srv.URL)

	article, err := f.FetchArticle(context.Background(), "36000001")
	require.NoError(t, err)

	assert.Equal(t, "2023", article.PublicationYear)
	assert.False(t, article.FullTextAvailable)
	assert.Equal(t, "Lancet. 2023.", article.Citation)

	require.NotNil(t, article.EntrezDate)
	assert.True(t, article.EntrezDate.Equal(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFetchArticleEmptyResponse(t *testing.T) {
	srv := newEfetchServer()
	defer srv.Close()
	f := newTestFetcher(srv.URL)

	_, err := f.FetchArticle(context.Background(), "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "999")
}

func TestConnectionProbe(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"esearchresult":{"count":"1","idlist":["1"]}}`)
		}))
		defer srv.Close()
		assert.NoError(t, newTestFetcher(srv.URL).TestConnection(context.Background()))
	})

	t.Run("no hits", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
		}))
		defer srv.Close()
		assert.Error(t, newTestFetcher(srv.URL).TestConnection(context.Background()))
	})
}
