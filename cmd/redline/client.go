package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/redline/internal/cli"
	"github.com/hyperjump/redline/internal/models"
)

// Revisions can wait on the proposal service for a while.
var httpClient = &http.Client{Timeout: 5 * time.Minute}

// revisionsPage is the shape of GET /api/v1/revisions.
type revisionsPage struct {
	Revisions []*models.Revision `json:"revisions"`
	Total     int64              `json:"total"`
}

func endpoint(serverURL, path string) string {
	return strings.TrimRight(serverURL, "/") + path
}

// checkResponse turns a non-200 response into an error carrying the server's message.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func previewViaHTTP(serverURL, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := httpClient.Post(endpoint(serverURL, "/api/v1/preview"), mw.FormDataContentType(), &body)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return "", err
	}
	var out models.PreviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ContractText, nil
}

func processViaHTTP(serverURL string, req *models.ProcessRequest) (*models.ProcessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Post(endpoint(serverURL, "/api/v1/process"), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var out models.ProcessResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func downloadViaHTTP(serverURL, name, dest string) error {
	resp, err := httpClient.Get(endpoint(serverURL, "/api/v1/downloads/"+url.PathEscape(name)))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func getJSON(u string, v interface{}) error {
	resp, err := httpClient.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func revisionsViaHTTP(serverURL string, offset, limit int) (*revisionsPage, error) {
	q := url.Values{}
	q.Set("offset", fmt.Sprint(offset))
	q.Set("limit", fmt.Sprint(limit))
	var page revisionsPage
	if err := getJSON(endpoint(serverURL, "/api/v1/revisions?"+q.Encode()), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	var status cli.Status
	if err := getJSON(endpoint(serverURL, "/api/v1/status"), &status); err != nil {
		return nil, err
	}
	return &status, nil
}
