package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telegram-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PlategaGateway)(nil)

// PlategaGateway implements adapter.PaymentGateway against the Platega REST
// API. Transactions are created via /transaction/process and their status is
// polled via /transaction/{id}; there is no webhook dependency.
type PlategaGateway struct {
	baseURL    string
	merchantID string
	secret     string
	returnURL  string
	failedURL  string
	client     *http.Client
}

// paymentMethodSBP is Platega's method code for SBP transfers.
const paymentMethodSBP = 2

func NewPlategaGateway(baseURL, merchantID, secret, returnURL, failedURL string) (*PlategaGateway, error) {
	if merchantID == "" || secret == "" {
		return nil, errors.New("platega merchant id or secret empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return &PlategaGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		secret:     secret,
		returnURL:  returnURL,
		failedURL:  failedURL,
		client:     &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (g *PlategaGateway) Name() string { return "platega" }

func (g *PlategaGateway) setAuth(req *http.Request) {
	req.Header.Set("X-MerchantId", g.merchantID)
	req.Header.Set("X-Secret", g.secret)
}

func (g *PlategaGateway) CreateTransaction(ctx context.Context, amountRUB int64, description string) (string, string, error) {
	payload := map[string]any{
		"paymentMethod": paymentMethodSBP,
		"paymentDetails": map[string]any{
			"amount":   amountRUB,
			"currency": "RUB",
		},
		"description": description,
		"return":      g.returnURL,
		"failedUrl":   g.failedURL,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transaction/process", bytes.NewReader(b))
	if err != nil {
		return "", "", err
	}
	g.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("platega process http %d", resp.StatusCode)
	}
	var out struct {
		TransactionID string `json:"transactionId"`
		Redirect      string `json:"redirect"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	if out.TransactionID == "" || out.Redirect == "" {
		return "", "", errors.New("platega process returned no transaction")
	}
	return out.TransactionID, out.Redirect, nil
}

func (g *PlategaGateway) TransactionStatus(ctx context.Context, txID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/transaction/"+url.PathEscape(txID), nil)
	if err != nil {
		return "", err
	}
	g.setAuth(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("platega status http %d", resp.StatusCode)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Status == "" {
		return "", errors.New("platega status missing")
	}
	return out.Status, nil
}
