// Package uploader implements attachment uploads against a Dropbox-style
// file-sharing API: content is uploaded first, then a shared link is created
// (or looked up when one already exists) and rewritten into a direct-download
// URL.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dkotenko/finance-tracker/internal/logger"
)

// Error describes a failed upload with a human-readable cause. A single
// failure aborts the enclosing add operation; there are no retries.
type Error struct {
	Cause string
}

func (e *Error) Error() string {
	return fmt.Sprintf("attachment upload failed: %s", e.Cause)
}

// DropboxUploader uploads a file and resolves a publicly fetchable
// direct-download URL via a two-phase HTTP exchange.
type DropboxUploader struct {
	client      *http.Client
	accessToken string
	contentURL  string
	apiURL      string
	folder      string
}

// Opt configures a DropboxUploader.
type Opt func(*DropboxUploader)

// WithAccessToken sets the bearer credential used on both phases.
func WithAccessToken(token string) Opt {
	return func(u *DropboxUploader) { u.accessToken = token }
}

// WithFolder sets the destination folder for uploaded files.
func WithFolder(folder string) Opt {
	return func(u *DropboxUploader) { u.folder = folder }
}

// WithContentURL overrides the content upload endpoint. Used in tests.
func WithContentURL(url string) Opt {
	return func(u *DropboxUploader) { u.contentURL = url }
}

// WithAPIURL overrides the link-management endpoint. Used in tests.
func WithAPIURL(url string) Opt {
	return func(u *DropboxUploader) { u.apiURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Opt {
	return func(u *DropboxUploader) { u.client = client }
}

// New creates a new DropboxUploader.
func New(opts ...Opt) *DropboxUploader {
	u := &DropboxUploader{
		client:     &http.Client{Timeout: 30 * time.Second},
		contentURL: "https://content.dropboxapi.com/2/files/upload",
		apiURL:     "https://api.dropboxapi.com/2/sharing",
		folder:     "/attachments",
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type uploadArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
}

type uploadResult struct {
	PathLower string `json:"path_lower"`
}

type linkRequest struct {
	Path string `json:"path"`
}

type linkResult struct {
	URL string `json:"url"`
}

type linkListResult struct {
	Links []linkResult `json:"links"`
}

type apiError struct {
	ErrorSummary string `json:"error_summary"`
}

// Upload transfers the file content and returns a direct-download URL.
// Any failure is reported as *Error and nothing is retried.
func (u *DropboxUploader) Upload(ctx context.Context, file io.Reader, filename string) (string, error) {
	uploadedPath, err := u.uploadContent(ctx, file, filename)
	if err != nil {
		logger.Log.Errorw("attachment upload failed", "filename", filename, "error", err)
		return "", err
	}

	link, err := u.resolveLink(ctx, uploadedPath)
	if err != nil {
		logger.Log.Errorw("shared link resolution failed", "path", uploadedPath, "error", err)
		return "", err
	}

	direct := forceDirectDownload(link)
	logger.Log.Infow("attachment uploaded", "filename", filename, "path", uploadedPath, "url", direct)
	return direct, nil
}

// uploadContent POSTs the raw file bytes with the JSON-encoded argument
// block in a header: destination path, collision mode "add", autorename on.
func (u *DropboxUploader) uploadContent(ctx context.Context, file io.Reader, filename string) (string, error) {
	arg, err := json.Marshal(uploadArg{
		Path:       path.Join(u.folder, filename),
		Mode:       "add",
		Autorename: true,
	})
	if err != nil {
		return "", &Error{Cause: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.contentURL, file)
	if err != nil {
		return "", &Error{Cause: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+u.accessToken)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &Error{Cause: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Cause: readAPIError(resp.Body, resp.StatusCode)}
	}

	var result uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &Error{Cause: "malformed upload response: " + err.Error()}
	}
	return result.PathLower, nil
}

// resolveLink creates a shared link for the uploaded path, falling back to
// listing existing links when creation reports one already exists.
func (u *DropboxUploader) resolveLink(ctx context.Context, uploadedPath string) (string, error) {
	body, code, err := u.postJSON(ctx, u.apiURL+"/create_shared_link_with_settings", linkRequest{Path: uploadedPath})
	if err != nil {
		return "", err
	}

	if code == http.StatusOK {
		var result linkResult
		if err := json.Unmarshal(body, &result); err != nil {
			return "", &Error{Cause: "malformed link response: " + err.Error()}
		}
		return result.URL, nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	if !strings.Contains(apiErr.ErrorSummary, "shared_link_already_exists") {
		return "", &Error{Cause: summaryOrStatus(apiErr.ErrorSummary, code)}
	}

	body, code, err = u.postJSON(ctx, u.apiURL+"/list_shared_links", linkRequest{Path: uploadedPath})
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		_ = json.Unmarshal(body, &apiErr)
		return "", &Error{Cause: summaryOrStatus(apiErr.ErrorSummary, code)}
	}

	var list linkListResult
	if err := json.Unmarshal(body, &list); err != nil {
		return "", &Error{Cause: "malformed link list response: " + err.Error()}
	}
	if len(list.Links) == 0 {
		return "", &Error{Cause: "no shareable link obtainable for " + uploadedPath}
	}
	return list.Links[0].URL, nil
}

func (u *DropboxUploader) postJSON(ctx context.Context, url string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, &Error{Cause: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, 0, &Error{Cause: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+u.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, 0, &Error{Cause: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &Error{Cause: err.Error()}
	}
	return body, resp.StatusCode, nil
}

// forceDirectDownload rewrites a preview link (dl=0) into one that forces
// binary transfer (dl=1).
func forceDirectDownload(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := parsed.Query()
	q.Set("dl", "1")
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func readAPIError(r io.Reader, code int) string {
	body, _ := io.ReadAll(r)
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	return summaryOrStatus(apiErr.ErrorSummary, code)
}

func summaryOrStatus(summary string, code int) string {
	if summary != "" {
		return summary
	}
	return fmt.Sprintf("unexpected status %d", code)
}
