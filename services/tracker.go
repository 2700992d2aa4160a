package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/models"
)

const (
	headerFillColor = "366092"
	maxColumnWidth  = 50
	legendsSheet    = "Legends"
)

// TrackerService erzeugt den wöchentlichen Excel-Tracker aus den
// Suchergebnissen eines Jobs. Das Spaltenlayout folgt dem Tracker-Template
// der PV-Abteilung, Pflichtfelder aus PubMed tragen einen Stern.
type TrackerService struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewTrackerService erstellt eine neue Instanz des TrackerService.
func NewTrackerService(cfg *config.Config, logger *zap.Logger) *TrackerService {
	return &TrackerService{Config: cfg, Logger: logger}
}

func (t *TrackerService) trackerHeaders() []string {
	return []string{
		"INN",
		"Date of search",
		"Search period (From)",
		"Search period (To)",
		"Search strategy",
		"Number of results",
		"PMID*",
		"Title*",
		"Authors*",
		"Citation*",
		"First Author*",
		"Journal/ Book*",
		"Publication Year*",
		"Create Date*",
		"PMCID*",
		"NIHMS ID*",
		"DOI*",
		"ICSR (Y/N/NA)",
		"ICSR description (if applicable)",
		fmt.Sprintf("%s ownership can be excluded (Y/N/NA)", t.Config.MAHName),
		"Reason for exclusion (if applicable)",
		"ICSR is a duplicate (Y/N/NA)",
		"Minimum criteria for reporting available? (Y/N/NA)",
		"Full article available (Y/N/NA)",
		"Date reference sent to PV Operations (if applicable)",
		"Date article ordered (if applicable)",
		"Date article sent to PV Operations (if applicable)",
		"ICSR code (if applicable)",
		"Other safety information (Y/N/NA)",
		"Justification for answer in column AC",
		"Conducted by",
		"Qc'd by",
		"Comments",
	}
}

// GenerateTracker schreibt den Tracker für einen Suchlauf in das
// Exportverzeichnis und gibt den Dateipfad zurück. Die Ergebnisse müssen
// Article und Product vorgeladen haben.
func (t *TrackerService) GenerateTracker(job *models.SearchJob, results []models.SearchResult, weekNumber string) (string, error) {
	log := t.Logger.With(zap.Uint("job_id", job.ID), zap.String("week", weekNumber))
	log.Info("Erzeuge Excel-Tracker", zap.Int("results", len(results)))

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := fmt.Sprintf("Week %s", weekNumber)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("tracker-sheet anlegen: %w", err)
	}

	headers := t.trackerHeaders()
	widths := make([]int, len(headers))
	for i, h := range headers {
		if err := setCell(f, sheet, i+1, 1, h); err != nil {
			return "", err
		}
		widths[i] = utf8.RuneCountInString(h)
	}

	for rowIdx := range results {
		row := t.buildRow(job, &results[rowIdx])
		for colIdx, value := range row {
			if err := setCell(f, sheet, colIdx+1, rowIdx+2, value); err != nil {
				return "", err
			}
			if n := utf8.RuneCountInString(fmt.Sprint(value)); n > widths[colIdx] {
				widths[colIdx] = n
			}
		}
	}

	if err := t.writeLegends(f); err != nil {
		return "", err
	}
	if err := t.applyFormatting(f, sheet, len(headers), widths); err != nil {
		return "", err
	}

	if err := os.MkdirAll(t.Config.ExportsDir, 0o755); err != nil {
		return "", fmt.Errorf("exportverzeichnis anlegen: %w", err)
	}
	filename := fmt.Sprintf("Literature_Tracker_Week%s_%s.xlsx", weekNumber, time.Now().Format("20060102_150405"))
	path := filepath.Join(t.Config.ExportsDir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("tracker speichern: %w", err)
	}

	log.Info("Excel-Tracker erzeugt", zap.String("file", filename))
	return path, nil
}

// buildRow überträgt ein Ergebnis in die Tracker-Spalten. Die Dreiwertigkeit
// Y/N/NA entsteht hier: nil-Bewertungen werden zu NA, abhängige Spalten
// bleiben leer, solange kein ICSR bestätigt ist.
func (t *TrackerService) buildRow(job *models.SearchJob, result *models.SearchResult) []interface{} {
	article := result.Article
	product := result.Product

	icsrStatus := triState(result.IsICSR)

	ownership := ""
	switch {
	case result.OwnershipExcluded != nil && *result.OwnershipExcluded:
		ownership = "Y"
	case result.OwnershipExcluded != nil:
		ownership = "N"
	case icsrStatus == "Y":
		ownership = "NA"
	}

	conductedBy := result.ReviewedBy
	if conductedBy == "" {
		conductedBy = "AI System"
	}

	return []interface{}{
		product.INN,
		job.CreatedAt.Format("2006-01-02"),
		formatDatePtr(job.DateFrom),
		formatDatePtr(job.DateTo),
		product.SearchStrategy,
		1,
		article.PMID,
		article.Title,
		article.Authors,
		article.Citation,
		article.FirstAuthor(),
		article.Journal,
		article.PublicationYear,
		formatDatePtr(article.EntrezDate),
		article.PMCID,
		article.NIHMSID,
		article.DOI,
		icsrStatus,
		result.ICSRDescription,
		ownership,
		result.ExclusionReason,
		markWhenRelevant(result.IsDuplicate, icsrStatus),
		markWhenRelevant(result.MinimumCriteriaAvailable != nil && *result.MinimumCriteriaAvailable, icsrStatus),
		markWhenRelevant(article.FullTextAvailable, icsrStatus),
		formatDatePtr(result.DateSentToProvider),
		"",
		"",
		result.ICSRCode,
		triState(result.OtherSafetyInfo),
		result.SafetyInfoJustification,
		conductedBy,
		result.QCBy,
		result.Comments,
	}
}

func (t *TrackerService) writeLegends(f *excelize.File) error {
	if _, err := f.NewSheet(legendsSheet); err != nil {
		return fmt.Errorf("legends-sheet anlegen: %w", err)
	}

	mah := t.Config.MAHName
	legends := [][2]string{
		{"INN", "International Nonproprietary Name - Generic drug name"},
		{"Date of search", "Date when the search was conducted"},
		{"Search period (From/To)", "Date range for the literature search"},
		{"Search strategy", "Boolean search query used in PubMed"},
		{"Number of results", "Number of articles found in the search"},
		{"PMID*", "PubMed Identifier - Unique article ID"},
		{"Title*", "Article title"},
		{"Authors*", "List of article authors"},
		{"Citation*", "Full citation for the article"},
		{"First Author*", "First author name"},
		{"Journal/ Book*", "Journal or book name where article was published"},
		{"Publication Year*", "Year of publication"},
		{"Create Date*", "Date when article was added to PubMed database"},
		{"PMCID*", "PubMed Central Identifier"},
		{"NIHMS ID*", "National Institute of Health Manuscript Submission Identifier"},
		{"DOI*", "Digital Object Identifier"},
		{"ICSR (Y/N/NA)", "Whether article contains an Individual Case Safety Report (Y=Yes, N=No, NA=No results)"},
		{"ICSR description", "Description of the identified ICSR and adverse events"},
		{fmt.Sprintf("%s ownership can be excluded", mah), fmt.Sprintf("Whether %s's ownership can be excluded for this ICSR (Y/N/NA)", mah)},
		{"Reason for exclusion", fmt.Sprintf("Reasons for excluding %s's ownership (territory, brand, dosage form, etc.)", mah)},
		{"ICSR is a duplicate", "Whether this ICSR was previously identified (Y/N/NA)"},
		{"Minimum criteria for reporting available?", "Whether the four minimum criteria for reporting are available (Y/N/NA)"},
		{"Full article available", "Whether full article text is available without additional fees (Y/N/NA)"},
		{"Date reference sent to PV Operations", "Date when reference was sent to PV Operations"},
		{"Date article ordered", "Date when article was ordered for full-text review"},
		{"Date article sent to PV Operations", "Date when full article was sent to PV Operations"},
		{"ICSR code", "Code received from third-party service provider for validated ICSR"},
		{"Other safety information", "Whether article contains valuable safety information for other activities (Y/N/NA)"},
		{"Justification", "Explanation for safety information classification"},
		{"Conducted by", "Name of team member who conducted the search and evaluation"},
		{"Qc'd by", "Name of team member who performed quality check"},
		{"Comments", "Any additional comments or notes"},
	}

	if err := setCell(f, legendsSheet, 1, 1, "Column"); err != nil {
		return err
	}
	if err := setCell(f, legendsSheet, 2, 1, "Description"); err != nil {
		return err
	}
	for i, entry := range legends {
		if err := setCell(f, legendsSheet, 1, i+2, entry[0]); err != nil {
			return err
		}
		if err := setCell(f, legendsSheet, 2, i+2, entry[1]); err != nil {
			return err
		}
	}
	return nil
}

func (t *TrackerService) applyFormatting(f *excelize.File, sheet string, columns int, widths []int) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return fmt.Errorf("header-stil anlegen: %w", err)
	}

	lastHeaderCell, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeaderCell, styleID); err != nil {
		return fmt.Errorf("header formatieren: %w", err)
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		adjusted := float64(width + 2)
		if adjusted > maxColumnWidth {
			adjusted = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, col, col, adjusted); err != nil {
			return fmt.Errorf("spaltenbreite setzen: %w", err)
		}
	}

	// Kopfzeile fixieren, damit sie beim Scrollen sichtbar bleibt.
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("kopfzeile fixieren: %w", err)
	}
	return nil
}

// WeekNumber liefert die Kalenderwoche für Standard-Dateinamen.
func WeekNumber(now time.Time) string {
	_, week := now.ISOWeek()
	return fmt.Sprintf("%02d", week)
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("zelle %s schreiben: %w", cell, err)
	}
	return nil
}

func triState(v *bool) string {
	switch {
	case v == nil:
		return "NA"
	case *v:
		return "Y"
	default:
		return "N"
	}
}

// markWhenRelevant liefert Y für gesetzte Flags. Ungesetzte Flags werden nur
// bei bestätigten ICSRs als N ausgewiesen, sonst bleibt die Zelle leer.
func markWhenRelevant(flag bool, icsrStatus string) string {
	if flag {
		return "Y"
	}
	if icsrStatus == "Y" {
		return "N"
	}
	return ""
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
