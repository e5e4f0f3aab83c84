package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFallbackRate     AlertType = "fallback_rate"
	AlertErrorRate        AlertType = "error_rate"
	AlertTaskFallbackRate AlertType = "task_fallback_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Nothing fires until at least MinTasks tasks have settled in the window.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	if snap.TasksSettled == 0 || snap.TasksSettled < a.cfg.MinTasks {
		return nil
	}

	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.ErrorRateThreshold > 0 && snap.ErrorRate > a.cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Task error rate %.1f%% exceeds threshold %.1f%% (%d errors / %d tasks in last %dh)",
				snap.ErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.TaskErrors, snap.TasksSettled, snap.LookbackHours,
			),
			Details: map[string]any{
				"error_rate": snap.ErrorRate,
				"threshold":  a.cfg.ErrorRateThreshold,
				"errors":     snap.TaskErrors,
				"tasks":      snap.TasksSettled,
			},
			Timestamp: now,
		})
	}

	if a.cfg.FallbackRateThreshold > 0 && snap.FallbackRate > a.cfg.FallbackRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFallbackRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Fallback rate %.1f%% exceeds threshold %.1f%% (%d fallbacks / %d tasks in last %dh)",
				snap.FallbackRate*100, a.cfg.FallbackRateThreshold*100,
				snap.TaskFallbacks, snap.TasksSettled, snap.LookbackHours,
			),
			Details: map[string]any{
				"fallback_rate": snap.FallbackRate,
				"threshold":     a.cfg.FallbackRateThreshold,
				"fallbacks":     snap.TaskFallbacks,
				"tasks":         snap.TasksSettled,
			},
			Timestamp: now,
		})
		return alerts
	}

	// Below the overall threshold a single task can still be failing.
	if a.cfg.FallbackRateThreshold <= 0 {
		return alerts
	}
	ids := make([]string, 0, len(snap.ByTask))
	for id := range snap.ByTask {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	// Per-task floor: MinTasks spread across the nine tasks.
	perTaskMin := a.cfg.MinTasks / 9
	for _, id := range ids {
		tm := snap.ByTask[id]
		if tm.Total < perTaskMin || tm.FallbackRate <= a.cfg.FallbackRateThreshold {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertTaskFallbackRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Task %s fallback rate %.1f%% exceeds threshold %.1f%% (%d / %d in last %dh)",
				id, tm.FallbackRate*100, a.cfg.FallbackRateThreshold*100,
				tm.Fallbacks, tm.Total, snap.LookbackHours,
			),
			Details: map[string]any{
				"task_id":       id,
				"fallback_rate": tm.FallbackRate,
				"threshold":     a.cfg.FallbackRateThreshold,
			},
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
