package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeClient talks to the Stripe REST API (form-encoded requests, Bearer
// auth). Only the three calls the checkout flow needs are implemented.
type StripeClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewStripeClient(baseURL, apiKey string) *StripeClient {
	return &StripeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *StripeClient) CreateIntent(ctx context.Context, p CreateParams) (Authorization, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountMinor, 10))
	form.Set("currency", p.Currency)
	form.Add("payment_method_types[]", p.MethodType)
	if p.Description != "" {
		form.Set("description", p.Description)
	}
	if p.Mandate != nil {
		form.Set("payment_method_options[acss_debit][mandate_options][payment_schedule]", p.Mandate.PaymentSchedule)
		form.Set("payment_method_options[acss_debit][mandate_options][transaction_type]", p.Mandate.TransactionType)
	}
	if p.AutoConfirm {
		form.Set("payment_method_data[type]", p.MethodType)
		form.Set("confirm", "true")
	}
	if p.Customer != "" {
		form.Set("customer", p.Customer)
	}

	var out struct {
		ID           string          `json:"id"`
		ClientSecret string          `json:"client_secret"`
		NextAction   json.RawMessage `json:"next_action"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &out); err != nil {
		return Authorization{}, err
	}
	return Authorization{ID: out.ID, ClientSecret: out.ClientSecret, NextAction: out.NextAction}, nil
}

func (c *StripeClient) RetrievePaymentMethod(ctx context.Context, id string) (PaymentMethod, error) {
	var out struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Card *struct {
			Brand string `json:"brand"`
		} `json:"card"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/payment_methods/"+url.PathEscape(id), nil, &out); err != nil {
		return PaymentMethod{}, err
	}
	pm := PaymentMethod{ID: out.ID, Type: out.Type}
	if out.Card != nil {
		pm.Brand = out.Card.Brand
	}
	return pm, nil
}

func (c *StripeClient) CreateCustomer(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/customers", url.Values{}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("stripe: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(b, &e)
		if e.Error.Message != "" {
			return fmt.Errorf("stripe: %s %s: %s", method, path, e.Error.Message)
		}
		return fmt.Errorf("stripe: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}
