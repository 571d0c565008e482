package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/config"
)

type webhookService struct {
	CfgSvc config.IService
	client *http.Client
}

func NewHTTP(cfgsvc config.IService) IService {
	return &webhookService{
		CfgSvc: cfgsvc,
		client: &http.Client{Timeout: cfgsvc.GetWebhookTimeout()},
	}
}

func (svc *webhookService) Notify(ctx context.Context, event model.DetectionEvent) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":       "waste.detected",
		"runId":      event.RunID,
		"user":       event.User,
		"category":   event.Category,
		"confidence": event.Confidence,
		"timestamp":  event.Timestamp,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.CfgSvc.GetWebhookURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := svc.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
