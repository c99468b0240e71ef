package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// resendMailer sends through a Resend-compatible HTTP API.
type resendMailer struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

func NewResendMailer(baseURL, apiKey, from string) Mailer {
	return &resendMailer{
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *resendMailer) SendSetupLink(ctx context.Context, email SetupLinkEmail) error {
	body := sendEmailRequest{
		From:    m.from,
		To:      []string{email.To},
		Subject: "Finish setting up your Checklane account",
		HTML: fmt.Sprintf(
			`<p>Your %s plan is ready.</p><p><a href="%s">Complete your account setup</a>. The link expires in 48 hours.</p>`,
			email.TierLabel, email.RedemptionURL,
		),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send setup link email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send setup link email: unexpected status %d", resp.StatusCode)
	}
	return nil
}
