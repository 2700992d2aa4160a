package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/mrik-soulpage/pharmacovigilance/models"
)

// apiClient spricht die REST-API des Monitors an.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Fehlermeldung aus dem Response-Envelope ziehen.
		var envelope struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
			return fmt.Errorf("api: %s", envelope.Error)
		}
		return fmt.Errorf("api: unerwarteter Status %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Products lädt das Produktregister, sortiert nach INN.
func (c *apiClient) Products() ([]models.Product, error) {
	var resp struct {
		Data []models.Product `json:"data"`
	}
	if err := c.do(http.MethodGet, "/api/products", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// StartSearch stößt einen asynchronen Suchlauf an und liefert die Job-ID.
func (c *apiClient) StartSearch(productID uint, dateFrom, dateTo string) (uint, error) {
	payload := map[string]interface{}{"product_id": productID}
	if dateFrom != "" {
		payload["date_from"] = dateFrom
	}
	if dateTo != "" {
		payload["date_to"] = dateTo
	}
	var resp struct {
		JobID uint `json:"job_id"`
	}
	if err := c.do(http.MethodPost, "/api/search/execute", payload, &resp); err != nil {
		return 0, err
	}
	return resp.JobID, nil
}

// Jobs lädt die jüngsten Suchläufe, neueste zuerst.
func (c *apiClient) Jobs(limit int) ([]models.SearchJob, error) {
	var resp struct {
		Data []models.SearchJob `json:"data"`
	}
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/search/jobs?page=1&limit=%d", limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Job lädt den aktuellen Stand eines Suchlaufs.
func (c *apiClient) Job(id uint) (*models.SearchJob, error) {
	var resp struct {
		Data models.SearchJob `json:"data"`
	}
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/search/jobs/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// JobResults lädt alle Klassifikationsergebnisse eines Suchlaufs.
func (c *apiClient) JobResults(id uint) ([]models.SearchResult, error) {
	var resp struct {
		Results []models.SearchResult `json:"results"`
	}
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/search/jobs/%d/results", id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// UpdateResult überschreibt einzelne Review-Felder eines Ergebnisses.
func (c *apiClient) UpdateResult(id uint, fields map[string]interface{}) (*models.SearchResult, error) {
	var resp struct {
		Data models.SearchResult `json:"data"`
	}
	if err := c.do(http.MethodPut, fmt.Sprintf("/api/search/results/%d", id), fields, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ExportTracker erzeugt den Excel-Tracker serverseitig und liefert den
// Dateinamen aus dem Content-Disposition-Header. Der Dateiinhalt bleibt
// auf dem Server im Export-Verzeichnis liegen.
func (c *apiClient) ExportTracker(jobID uint) (string, error) {
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/export/excel/%d", c.baseURL, jobID), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
			return "", fmt.Errorf("api: %s", envelope.Error)
		}
		return "", fmt.Errorf("api: unerwarteter Status %d", resp.StatusCode)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return "", fmt.Errorf("content-disposition fehlt: %w", err)
	}
	return params["filename"], nil
}
