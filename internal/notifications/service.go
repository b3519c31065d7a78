package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelgate/internal/config"
)

const userAgent = "reelgate/0.1.0"

// Event names a notification-worthy daemon milestone.
type Event string

const (
	EventDrainCompleted  Event = "drain_completed"
	EventOperationFailed Event = "operation_failed"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event specific values. Keys are documented per event in
// render.
type Payload map[string]any

// Service defines the notification surface exposed to daemon components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		suppressed: map[Event]bool{
			EventDrainCompleted:  !cfg.Notifications.DrainSummary,
			EventOperationFailed: !cfg.Notifications.Failures,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	suppressed map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil || n.suppressed[event] {
		return nil
	}
	rendered, ok := render(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, rendered)
}

func render(event Event, data Payload) (payload, bool) {
	switch event {
	case EventDrainCompleted:
		// processed, failed int; duration time.Duration; outcome string
		processed := intValue(data["processed"])
		failed := intValue(data["failed"])
		durationText := formatDuration(durationValue(data["duration"]))
		outcome := stringValue(data["outcome"])
		title := "reelgate - Drain Complete"
		message := fmt.Sprintf("Processed %d files in %s", processed, durationText)
		if failed > 0 {
			title = "reelgate - Drain Complete (with errors)"
			message = fmt.Sprintf("Processed %d files, %d failed, in %s", processed, failed, durationText)
		}
		if outcome == "cutoff" {
			message += "\nStopped at the daily cutoff; remaining files wait for the next window"
		}
		return payload{title: title, message: message, tags: []string{"reelgate", "drain", "completed"}}, true
	case EventOperationFailed:
		// name, track string; error error
		name := strings.TrimSpace(stringValue(data["name"]))
		track := strings.TrimSpace(stringValue(data["track"]))
		if track == "" {
			track = "operation"
		}
		return payload{
			title:    "reelgate - " + titleCase(track) + " Failed",
			message:  fmt.Sprintf("%s failed for %s: %s", track, name, errorText(data["error"])),
			tags:     []string{"reelgate", track, "failed"},
			priority: "high",
		}, true
	case EventError:
		// error error; context string
		var builder strings.Builder
		builder.WriteString("Error")
		if label := strings.TrimSpace(stringValue(data["context"])); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(errorText(data["error"]))
		return payload{
			title:    "reelgate - Error",
			message:  builder.String(),
			tags:     []string{"reelgate", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "reelgate - Test",
			message:  "Notification system test",
			tags:     []string{"reelgate", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func durationValue(v any) time.Duration {
	if d, ok := v.(time.Duration); ok {
		return d
	}
	return 0
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

func errorText(v any) string {
	if err, ok := v.(error); ok && err != nil {
		return strings.TrimSpace(err.Error())
	}
	if s := strings.TrimSpace(stringValue(v)); s != "" {
		return s
	}
	return "unknown"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
