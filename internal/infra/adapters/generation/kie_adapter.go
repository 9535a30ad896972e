package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"telegram-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.GenerationProvider = (*KieProvider)(nil)

// KieProvider implements adapter.GenerationProvider against the KIE jobs API:
// uploads go to the file-stream-upload service, tasks are created under a
// fixed model name and polled via recordInfo.
type KieProvider struct {
	apiKey     string
	apiBase    string
	uploadBase string
	model      string
	client     *http.Client
}

func NewKieProvider(apiKey, apiBase, uploadBase, model string) (*KieProvider, error) {
	if apiKey == "" {
		return nil, errors.New("kie api key empty")
	}
	if _, err := url.Parse(apiBase); err != nil {
		return nil, fmt.Errorf("invalid api base: %w", err)
	}
	return &KieProvider{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		uploadBase: strings.TrimRight(uploadBase, "/"),
		model:      model,
		client:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (k *KieProvider) Name() string { return "kie" }

// Upload posts the bytes as multipart form data and returns the public
// download URL. The upload path gets a per-request unique suffix so repeated
// uploads of the same filename never collide in the provider's CDN cache.
func (k *KieProvider) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	tag := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	base := path.Base(filename)
	if base == "" || base == "." {
		base = "image.png"
	}
	ext := path.Ext(base)
	uniqueName := strings.TrimSuffix(base, ext) + "_" + tag + ext
	uploadPath := "images/user-uploads/" + tag

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", uniqueName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	_ = w.WriteField("uploadPath", uploadPath)
	_ = w.WriteField("fileName", uniqueName)
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.uploadBase+"/api/file-stream-upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+k.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := k.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kie upload http %d", resp.StatusCode)
	}
	var out struct {
		Code    int  `json:"code"`
		Success bool `json:"success"`
		Data    struct {
			DownloadURL string `json:"downloadUrl"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Code != 200 || !out.Success || out.Data.DownloadURL == "" {
		return "", fmt.Errorf("kie upload rejected (code=%d)", out.Code)
	}
	return out.Data.DownloadURL, nil
}

func (k *KieProvider) CreateTask(ctx context.Context, r adapter.GenerationRequest) (string, error) {
	payload := map[string]any{
		"model": k.model,
		"input": map[string]any{
			"prompt":        r.Prompt,
			"image_input":   r.InputURLs,
			"aspect_ratio":  r.AspectRatio,
			"resolution":    r.Resolution,
			"output_format": r.OutputFormat,
		},
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.apiBase+"/api/v1/jobs/createTask", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+k.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kie createTask http %d", resp.StatusCode)
	}
	var out struct {
		Code int `json:"code"`
		Data struct {
			TaskID string `json:"taskId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Code != 200 || out.Data.TaskID == "" {
		return "", fmt.Errorf("kie createTask rejected (code=%d)", out.Code)
	}
	return out.Data.TaskID, nil
}

// PollTask decodes one recordInfo response. "success" carries the artifact
// URLs inside a JSON string field; "fail" carries a message and code;
// anything else is still running.
func (k *KieProvider) PollTask(ctx context.Context, taskID string) (adapter.TaskStatus, error) {
	u := fmt.Sprintf("%s/api/v1/jobs/recordInfo?taskId=%s", k.apiBase, url.QueryEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return adapter.TaskStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+k.apiKey)

	resp, err := k.client.Do(req)
	if err != nil {
		return adapter.TaskStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return adapter.TaskStatus{}, fmt.Errorf("kie recordInfo http %d", resp.StatusCode)
	}
	var out struct {
		Code int `json:"code"`
		Data struct {
			State      string `json:"state"`
			ResultJSON string `json:"resultJson"`
			FailMsg    string `json:"failMsg"`
			FailCode   string `json:"failCode"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.TaskStatus{}, err
	}
	if out.Code != 200 {
		return adapter.TaskStatus{}, fmt.Errorf("kie recordInfo rejected (code=%d)", out.Code)
	}

	switch strings.ToLower(strings.TrimSpace(out.Data.State)) {
	case "success":
		urls, err := parseResultURLs(out.Data.ResultJSON)
		if err != nil {
			return adapter.TaskStatus{}, err
		}
		return adapter.TaskStatus{State: adapter.TaskStateSucceeded, ResultURLs: urls}, nil
	case "fail":
		reason := out.Data.FailMsg
		if reason == "" {
			reason = "task failed"
		}
		if out.Data.FailCode != "" {
			reason = fmt.Sprintf("%s (code=%s)", reason, out.Data.FailCode)
		}
		return adapter.TaskStatus{State: adapter.TaskStateFailed, FailReason: reason}, nil
	default:
		return adapter.TaskStatus{State: adapter.TaskStateRunning}, nil
	}
}

func parseResultURLs(resultJSON string) ([]string, error) {
	if resultJSON == "" {
		return nil, errors.New("kie result empty")
	}
	var obj struct {
		ResultURLs    []string `json:"resultUrls"`
		ResultURLsAlt []string `json:"result_urls"`
	}
	if err := json.Unmarshal([]byte(resultJSON), &obj); err != nil {
		return nil, fmt.Errorf("kie bad resultJson: %w", err)
	}
	urls := obj.ResultURLs
	if len(urls) == 0 {
		urls = obj.ResultURLsAlt
	}
	if len(urls) == 0 {
		return nil, errors.New("kie result has no urls")
	}
	return urls, nil
}

func (k *KieProvider) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kie download http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
