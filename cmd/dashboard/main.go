package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kelseyhightower/envconfig"
)

// dashboardConfig kommt komplett aus der Umgebung, analog zum Backup-Tool.
type dashboardConfig struct {
	APIURL   string `envconfig:"DASHBOARD_API_URL" default:"http://localhost:5000"`
	Reviewer string `envconfig:"DASHBOARD_REVIEWER"`
}

func main() {
	var cfg dashboardConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Konfiguration ungültig: %v\n", err)
		os.Exit(1)
	}
	if cfg.Reviewer == "" {
		// Fallback auf den Systembenutzer für reviewed_by.
		cfg.Reviewer = os.Getenv("USER")
	}

	program := tea.NewProgram(newDashboard(newAPIClient(cfg.APIURL), cfg.Reviewer), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Dashboard-Fehler: %v\n", err)
		os.Exit(1)
	}
}
