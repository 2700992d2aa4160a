package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrik-soulpage/pharmacovigilance/models"
)

// Ansichten des Dashboards.
type view int

const (
	viewProducts view = iota
	viewSearchForm
	viewJobs
	viewJob
	viewResults
	viewDetail
)

const pollInterval = 2 * time.Second

// Nachrichten der asynchronen Kommandos.
type (
	productsMsg    []models.Product
	jobsMsg        []models.SearchJob
	jobStartedMsg  struct{ id uint }
	jobMsg         struct{ job *models.SearchJob }
	resultsMsg     []models.SearchResult
	resultSavedMsg struct{ result *models.SearchResult }
	exportDoneMsg  struct{ filename string }
	pollTickMsg    struct{ gen int }
	errMsg         struct{ err error }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	icsrStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// dashboardModel hält den Zustand des Review-Dashboards. Alle API-Aufrufe
// laufen als tea.Cmd im Hintergrund und melden sich über Messages zurück.
type dashboardModel struct {
	client   *apiClient
	reviewer string

	view   view
	status string

	products []models.Product
	cursor   int

	// Suchformular: [0] = von, [1] = bis
	inputs     []textinput.Model
	focusIndex int

	jobs      []models.SearchJob
	jobCursor int

	jobID uint
	job   *models.SearchJob

	// Entwertet alte Tick-Ketten, sobald eine neue Ansicht zu pollen beginnt.
	pollGen int

	results      []models.SearchResult
	resultCursor int

	commentInput   textinput.Model
	editingComment bool

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

func newDashboard(client *apiClient, reviewer string) dashboardModel {
	from := textinput.New()
	from.Placeholder = "YYYY-MM-DD"
	from.CharLimit = 10
	from.Width = 14
	from.Focus()

	to := textinput.New()
	to.Placeholder = "YYYY-MM-DD"
	to.CharLimit = 10
	to.Width = 14

	comment := textinput.New()
	comment.Placeholder = "Kommentar"
	comment.CharLimit = 500
	comment.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warnStyle

	return dashboardModel{
		client:       client,
		reviewer:     reviewer,
		inputs:       []textinput.Model{from, to},
		commentInput: comment,
		spinner:      sp,
		status:       "Lade Produkte...",
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(fetchProducts(m.client), m.spinner.Tick)
}

func fetchProducts(client *apiClient) tea.Cmd {
	return func() tea.Msg {
		products, err := client.Products()
		if err != nil {
			return errMsg{err}
		}
		return productsMsg(products)
	}
}

func fetchJobs(client *apiClient) tea.Cmd {
	return func() tea.Msg {
		jobs, err := client.Jobs(20)
		if err != nil {
			return errMsg{err}
		}
		return jobsMsg(jobs)
	}
}

func startSearch(client *apiClient, productID uint, from, to string) tea.Cmd {
	return func() tea.Msg {
		id, err := client.StartSearch(productID, from, to)
		if err != nil {
			return errMsg{err}
		}
		return jobStartedMsg{id: id}
	}
}

func fetchJob(client *apiClient, id uint) tea.Cmd {
	return func() tea.Msg {
		job, err := client.Job(id)
		if err != nil {
			return errMsg{err}
		}
		return jobMsg{job: job}
	}
}

func fetchResults(client *apiClient, id uint) tea.Cmd {
	return func() tea.Msg {
		results, err := client.JobResults(id)
		if err != nil {
			return errMsg{err}
		}
		return resultsMsg(results)
	}
}

func saveResult(client *apiClient, id uint, fields map[string]interface{}) tea.Cmd {
	return func() tea.Msg {
		result, err := client.UpdateResult(id, fields)
		if err != nil {
			return errMsg{err}
		}
		return resultSavedMsg{result: result}
	}
}

func exportTracker(client *apiClient, jobID uint) tea.Cmd {
	return func() tea.Msg {
		filename, err := client.ExportTracker(jobID)
		if err != nil {
			return errMsg{err}
		}
		return exportDoneMsg{filename: filename}
	}
}

func pollTick(gen int) tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollTickMsg{gen: gen} })
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 8
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		if m.view == viewDetail {
			m.viewport.SetContent(m.renderDetailContent())
		}
		return m, nil

	case errMsg:
		m.status = errorStyle.Render(msg.err.Error())
		return m, nil

	case productsMsg:
		m.products = msg
		if m.cursor >= len(m.products) {
			m.cursor = 0
		}
		m.status = fmt.Sprintf("%d Produkte geladen", len(m.products))
		return m, nil

	case jobsMsg:
		m.jobs = msg
		if m.jobCursor >= len(m.jobs) {
			m.jobCursor = 0
		}
		m.status = fmt.Sprintf("%d Suchläufe", len(m.jobs))
		return m, nil

	case jobStartedMsg:
		m.jobID = msg.id
		m.job = nil
		m.view = viewJob
		m.pollGen++
		m.status = fmt.Sprintf("Suchlauf %d gestartet", msg.id)
		return m, tea.Batch(fetchJob(m.client, msg.id), pollTick(m.pollGen))

	case jobMsg:
		m.job = msg.job
		if m.view != viewJob {
			return m, nil
		}
		if msg.job.IsTerminal() {
			if msg.job.Status == models.JobStatusFailed {
				m.status = errorStyle.Render("Suchlauf fehlgeschlagen: " + msg.job.ErrorMessage)
				return m, nil
			}
			m.status = okStyle.Render("Suchlauf abgeschlossen")
			return m, fetchResults(m.client, m.jobID)
		}
		return m, nil

	case pollTickMsg:
		if msg.gen != m.pollGen {
			return m, nil
		}
		switch {
		case m.view == viewJob && (m.job == nil || !m.job.IsTerminal()):
			return m, tea.Batch(fetchJob(m.client, m.jobID), pollTick(m.pollGen))
		case m.view == viewJobs:
			return m, tea.Batch(fetchJobs(m.client), pollTick(m.pollGen))
		}
		return m, nil

	case resultsMsg:
		m.results = msg
		m.resultCursor = 0
		m.view = viewResults
		m.status = fmt.Sprintf("%d Ergebnisse", len(m.results))
		return m, nil

	case resultSavedMsg:
		for i := range m.results {
			if m.results[i].ID == msg.result.ID {
				m.results[i] = *msg.result
			}
		}
		m.status = okStyle.Render("Ergebnis gespeichert")
		if m.view == viewDetail {
			m.viewport.SetContent(m.renderDetailContent())
		}
		return m, nil

	case exportDoneMsg:
		m.status = okStyle.Render("Tracker exportiert: " + msg.filename)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.view == viewDetail {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.view {
	case viewProducts:
		return m.handleProductsKey(msg)
	case viewSearchForm:
		return m.handleFormKey(msg)
	case viewJobs:
		return m.handleJobsKey(msg)
	case viewJob:
		return m.handleJobKey(msg)
	case viewResults:
		return m.handleResultsKey(msg)
	case viewDetail:
		return m.handleDetailKey(msg)
	}
	return m, nil
}

func (m dashboardModel) handleProductsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.products)-1 {
			m.cursor++
		}
	case "r":
		m.status = "Lade Produkte..."
		return m, fetchProducts(m.client)
	case "s":
		m.view = viewJobs
		m.pollGen++
		m.status = "Lade Suchläufe..."
		return m, tea.Batch(fetchJobs(m.client), pollTick(m.pollGen))
	case "enter":
		if len(m.products) == 0 {
			return m, nil
		}
		// Formular zurücksetzen, Fokus auf das erste Feld.
		m.inputs[0].SetValue("")
		m.inputs[1].SetValue("")
		m.focusIndex = 0
		m.inputs[0].Focus()
		m.inputs[1].Blur()
		m.view = viewSearchForm
		m.status = ""
		return m, textinput.Blink
	}
	return m, nil
}

func (m dashboardModel) handleJobsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.view = viewProducts
		return m, nil
	case "up", "k":
		if m.jobCursor > 0 {
			m.jobCursor--
		}
	case "down", "j":
		if m.jobCursor < len(m.jobs)-1 {
			m.jobCursor++
		}
	case "r":
		return m, fetchJobs(m.client)
	case "enter":
		if m.jobCursor < 0 || m.jobCursor >= len(m.jobs) {
			return m, nil
		}
		job := m.jobs[m.jobCursor]
		m.jobID = job.ID
		m.job = &job
		if job.Status == models.JobStatusCompleted {
			m.status = "Lade Ergebnisse..."
			return m, fetchResults(m.client, job.ID)
		}
		m.view = viewJob
		m.pollGen++
		m.status = ""
		return m, tea.Batch(fetchJob(m.client, job.ID), pollTick(m.pollGen))
	}
	return m, nil
}

func (m dashboardModel) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewProducts
		return m, nil
	case "enter":
		if m.focusIndex == len(m.inputs)-1 {
			return m.submitSearch()
		}
		return m.cycleFocus(1), textinput.Blink
	case "tab", "down":
		return m.cycleFocus(1), textinput.Blink
	case "shift+tab", "up":
		return m.cycleFocus(-1), textinput.Blink
	}

	var cmd tea.Cmd
	m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
	return m, cmd
}

func (m dashboardModel) cycleFocus(delta int) dashboardModel {
	m.inputs[m.focusIndex].Blur()
	m.focusIndex = (m.focusIndex + delta + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focusIndex].Focus()
	return m
}

func (m dashboardModel) submitSearch() (tea.Model, tea.Cmd) {
	product := m.selectedProduct()
	if product == nil {
		m.view = viewProducts
		return m, nil
	}

	from := strings.TrimSpace(m.inputs[0].Value())
	to := strings.TrimSpace(m.inputs[1].Value())
	for _, value := range []string{from, to} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			m.status = errorStyle.Render("Ungültiges Datum: " + value)
			return m, nil
		}
	}

	m.status = "Starte Suchlauf für " + product.INN + "..."
	return m, startSearch(m.client, product.ID, from, to)
}

func (m dashboardModel) handleJobKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		// Der Suchlauf läuft serverseitig weiter.
		m.view = viewProducts
		return m, nil
	case "r":
		return m, fetchJob(m.client, m.jobID)
	case "enter":
		if m.job != nil && m.job.Status == models.JobStatusCompleted {
			return m, fetchResults(m.client, m.jobID)
		}
	}
	return m, nil
}

func (m dashboardModel) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.view = viewProducts
		return m, nil
	case "up", "k":
		if m.resultCursor > 0 {
			m.resultCursor--
		}
	case "down", "j":
		if m.resultCursor < len(m.results)-1 {
			m.resultCursor++
		}
	case "r":
		return m, fetchResults(m.client, m.jobID)
	case "x":
		m.status = "Exportiere Tracker..."
		return m, exportTracker(m.client, m.jobID)
	case "enter":
		if len(m.results) == 0 {
			return m, nil
		}
		m.view = viewDetail
		m.viewport.SetContent(m.renderDetailContent())
		m.viewport.GotoTop()
		return m, nil
	}
	return m, nil
}

func (m dashboardModel) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editingComment {
		switch msg.String() {
		case "esc":
			m.editingComment = false
			m.commentInput.Blur()
			return m, nil
		case "enter":
			m.editingComment = false
			m.commentInput.Blur()
			return m.annotate(map[string]interface{}{"comments": strings.TrimSpace(m.commentInput.Value())})
		}
		var cmd tea.Cmd
		m.commentInput, cmd = m.commentInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.view = viewResults
		return m, nil
	case "y":
		return m.annotate(map[string]interface{}{"is_icsr": true})
	case "n":
		return m.annotate(map[string]interface{}{"is_icsr": false})
	case "d":
		if len(m.results) > 0 {
			return m.annotate(map[string]interface{}{"is_duplicate": !m.results[m.resultCursor].IsDuplicate})
		}
		return m, nil
	case "o":
		if len(m.results) > 0 {
			current := m.results[m.resultCursor].OwnershipExcluded
			next := current == nil || !*current
			return m.annotate(map[string]interface{}{"ownership_excluded": next})
		}
		return m, nil
	case "c":
		if len(m.results) > 0 {
			m.commentInput.SetValue(m.results[m.resultCursor].Comments)
			m.commentInput.CursorEnd()
			m.commentInput.Focus()
			m.editingComment = true
			return m, textinput.Blink
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// annotate schreibt Review-Felder über die API und trägt den Reviewer ein.
func (m dashboardModel) annotate(fields map[string]interface{}) (tea.Model, tea.Cmd) {
	if len(m.results) == 0 {
		return m, nil
	}
	if m.reviewer != "" {
		fields["reviewed_by"] = m.reviewer
	}
	result := m.results[m.resultCursor]
	m.status = "Speichere..."
	return m, saveResult(m.client, result.ID, fields)
}

func (m dashboardModel) selectedProduct() *models.Product {
	if m.cursor < 0 || m.cursor >= len(m.products) {
		return nil
	}
	return &m.products[m.cursor]
}

func (m dashboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Literaturüberwachung"))
	b.WriteString("\n\n")

	switch m.view {
	case viewProducts:
		b.WriteString(m.renderProducts())
	case viewSearchForm:
		b.WriteString(m.renderForm())
	case viewJobs:
		b.WriteString(m.renderJobs())
	case viewJob:
		b.WriteString(m.renderJob())
	case viewResults:
		b.WriteString(m.renderResults())
	case viewDetail:
		b.WriteString(m.viewport.View())
		if m.editingComment {
			b.WriteString("\n\n  Kommentar  " + m.commentInput.View())
		}
	}

	b.WriteString("\n\n")
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m dashboardModel) helpLine() string {
	switch m.view {
	case viewProducts:
		return "↑/↓ wählen · enter Suchlauf · s Suchläufe · r neu laden · q beenden"
	case viewSearchForm:
		return "tab Feld wechseln · enter starten · esc zurück"
	case viewJobs:
		return "↑/↓ wählen · enter öffnen · r neu laden · esc zurück"
	case viewJob:
		return "r aktualisieren · esc zurück · q beenden"
	case viewResults:
		return "↑/↓ wählen · enter Details · x Tracker exportieren · r neu laden · esc zurück"
	case viewDetail:
		if m.editingComment {
			return "enter speichern · esc abbrechen"
		}
		return "y/n ICSR setzen · d Duplikat · o Ownership-Ausschluss · c Kommentar · ↑/↓ scrollen · esc zurück"
	}
	return ""
}

func (m dashboardModel) renderProducts() string {
	if len(m.products) == 0 {
		return dimStyle.Render("Keine Produkte im Register.")
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-24s %-3s %-10s %s", "INN", "EU", "Status", "Suchstrategie")))
	b.WriteString("\n")

	start, end := listWindow(len(m.products), m.cursor, m.visibleRows())
	for i := start; i < end; i++ {
		p := m.products[i]
		eu := ""
		if p.IsEUProduct {
			eu = "EU"
		}
		line := fmt.Sprintf("%-24s %-3s %-10s %s",
			truncate(p.INN, 24), eu, truncate(p.MarketingStatus, 10), truncate(p.SearchStrategy, 60))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m dashboardModel) renderForm() string {
	var b strings.Builder
	if product := m.selectedProduct(); product != nil {
		b.WriteString("Suchlauf für ")
		b.WriteString(selectedStyle.Render(product.INN))
		b.WriteString("\n\n")
	}
	b.WriteString("  Von  " + m.inputs[0].View() + "\n")
	b.WriteString("  Bis  " + m.inputs[1].View() + "\n\n")
	b.WriteString(dimStyle.Render("  Leere Felder lassen das Suchfenster offen."))
	return b.String()
}

func (m dashboardModel) renderJobs() string {
	if len(m.jobs) == 0 {
		return dimStyle.Render("Keine Suchläufe vorhanden.")
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-5s %-10s %-7s %9s %6s  %s", "ID", "Status", "Typ", "Artikel", "", "Angelegt")))
	b.WriteString("\n")

	start, end := listWindow(len(m.jobs), m.jobCursor, m.visibleRows())
	for i := start; i < end; i++ {
		j := m.jobs[i]
		line := fmt.Sprintf("%-5d %-10s %-7s %4d/%-4d %5.0f%%  %s",
			j.ID, j.Status, j.JobType, j.ProcessedArticles, j.TotalArticles,
			j.Progress(), j.CreatedAt.Format("2006-01-02 15:04"))
		if i == m.jobCursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m dashboardModel) renderJob() string {
	if m.job == nil {
		return m.spinner.View() + dimStyle.Render(" Warte auf Jobstatus...")
	}

	j := m.job
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Suchlauf %d (%s)\n\n", j.ID, j.JobType))
	status := renderJobStatus(j.Status)
	if j.Status == models.JobStatusRunning {
		status = m.spinner.View() + " " + status
	}
	b.WriteString("  Status       " + status + "\n")
	b.WriteString(fmt.Sprintf("  Produkte     %d/%d\n", j.ProcessedProducts, j.TotalProducts))
	b.WriteString(fmt.Sprintf("  Artikel      %d/%d\n", j.ProcessedArticles, j.TotalArticles))
	b.WriteString(fmt.Sprintf("  Fortschritt  %s %.0f%%\n", progressBar(j.Progress(), 30), j.Progress()))
	if j.ErrorMessage != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("  " + j.ErrorMessage))
		b.WriteString("\n")
	}
	return b.String()
}

func (m dashboardModel) renderResults() string {
	if len(m.results) == 0 {
		return dimStyle.Render("Keine Ergebnisse für diesen Suchlauf.")
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-10s %-4s %5s  %s", "PMID", "ICSR", "Konf", "Titel")))
	b.WriteString("\n")

	start, end := listWindow(len(m.results), m.resultCursor, m.visibleRows())
	for i := start; i < end; i++ {
		r := m.results[i]
		icsr := triStateLabel(r.IsICSR)
		if icsr == "Y" {
			icsr = icsrStyle.Render(icsr)
		}
		line := fmt.Sprintf("%-10s %-4s %4.0f%%  %s",
			r.Article.PMID, icsr, r.ConfidenceScore*100, truncate(r.Article.Title, 70))
		if i == m.resultCursor {
			b.WriteString(selectedStyle.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m dashboardModel) renderDetailContent() string {
	if m.resultCursor < 0 || m.resultCursor >= len(m.results) {
		return ""
	}
	r := m.results[m.resultCursor]
	a := r.Article

	var b strings.Builder
	b.WriteString(selectedStyle.Render(a.Title))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("PMID     ") + a.PMID + "\n")
	if a.DOI != "" {
		b.WriteString(dimStyle.Render("DOI      ") + a.DOI + "\n")
	}
	if a.Journal != "" {
		b.WriteString(dimStyle.Render("Journal  ") + a.Journal + " (" + a.PublicationYear + ")\n")
	}
	if a.Authors != "" {
		b.WriteString(dimStyle.Render("Autoren  ") + a.Authors + "\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Klassifikation"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  ICSR                  %s\n", triStateLabel(r.IsICSR)))
	b.WriteString(fmt.Sprintf("  Ownership-Ausschluss  %s\n", triStateLabel(r.OwnershipExcluded)))
	b.WriteString(fmt.Sprintf("  Duplikat              %s\n", yesNo(r.IsDuplicate)))
	b.WriteString(fmt.Sprintf("  Mindestkriterien      %s\n", triStateLabel(r.MinimumCriteriaAvailable)))
	b.WriteString(fmt.Sprintf("  Sonstige Sicherheit   %s\n", triStateLabel(r.OtherSafetyInfo)))
	b.WriteString(fmt.Sprintf("  Konfidenz             %.2f\n", r.ConfidenceScore))
	if r.ICSRDescription != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Beschreibung") + "\n" + r.ICSRDescription + "\n")
	}
	if r.ExclusionReason != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Ausschlussgrund") + "\n" + r.ExclusionReason + "\n")
	}
	if r.Comments != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Kommentar") + "\n" + r.Comments + "\n")
	}
	if r.ReviewedBy != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Geprüft von ") + r.ReviewedBy + "\n")
	}

	if a.Abstract != "" {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Abstract"))
		b.WriteString("\n")
		b.WriteString(a.Abstract)
		b.WriteString("\n")
	}
	return b.String()
}

// visibleRows liefert die Zeilenzahl für Listen, abzüglich Kopf und Fußzeile.
func (m dashboardModel) visibleRows() int {
	rows := m.height - 9
	if rows < 5 {
		rows = 5
	}
	return rows
}

// listWindow schiebt ein Fenster fester Höhe über die Liste, sodass der
// Cursor sichtbar bleibt.
func listWindow(total, cursor, visible int) (int, int) {
	if total <= visible {
		return 0, total
	}
	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	end := start + visible
	if end > total {
		end = total
	}
	return start, end
}

func renderJobStatus(status string) string {
	switch status {
	case models.JobStatusCompleted:
		return okStyle.Render(status)
	case models.JobStatusFailed:
		return errorStyle.Render(status)
	case models.JobStatusRunning:
		return warnStyle.Render(status)
	default:
		return dimStyle.Render(status)
	}
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func triStateLabel(value *bool) string {
	switch {
	case value == nil:
		return "NA"
	case *value:
		return "Y"
	default:
		return "N"
	}
}

func yesNo(value bool) string {
	if value {
		return "Y"
	}
	return "N"
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
