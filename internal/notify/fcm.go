package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultFCMEndpoint = "https://fcm.googleapis.com/fcm/send"

var (
	ErrNoDeviceToken = errors.New("notify: empty device token")
	ErrPushRejected  = errors.New("notify: push rejected")
)

// FCMSender posts data notifications to the FCM HTTP endpoint using a
// server key.
type FCMSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

func NewFCMSender(endpoint, serverKey string, client *http.Client) *FCMSender {
	if endpoint == "" {
		endpoint = DefaultFCMEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &FCMSender{endpoint: endpoint, serverKey: serverKey, client: client}
}

type fcmNotification struct {
	Title string `json:"title"`
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (s *FCMSender) SendPush(ctx context.Context, p Push) error {
	if p.Token == "" {
		return ErrNoDeviceToken
	}

	body, err := json.Marshal(fcmRequest{
		To:           p.Token,
		Notification: fcmNotification{Title: p.Title},
		Data:         p.Data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: fcm request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrPushRejected, resp.StatusCode)
	}

	var out fcmResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("notify: fcm response: %w", err)
	}
	if out.Failure > 0 {
		reason := "unknown"
		if len(out.Results) > 0 && out.Results[0].Error != "" {
			reason = out.Results[0].Error
		}
		return fmt.Errorf("%w: %s", ErrPushRejected, reason)
	}
	return nil
}
