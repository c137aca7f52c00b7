package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/bambulink/internal/printer"
	"go.uber.org/zap"
)

// tasksPath lists the account's recent print tasks, newest first.
const tasksPath = "/v1/user-service/my/tasks"

// Compile-time interface guard.
var _ printer.TaskHistory = (*Client)(nil)

// Client wraps the cloud REST API with a bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// NewClient creates a cloud client. An empty base URL selects the regional
// default.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	base := cfg.APIBase
	if base == "" {
		base = APIBase(cfg.Region)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(base, "/"),
		token:      cfg.Token,
		logger:     logger.Named("cloud"),
	}
}

// Authenticated reports whether a token is configured.
func (c *Client) Authenticated() bool { return c.token != "" }

// LatestTask returns the most recent task for a device serial, or nil when
// the device has no tasks.
func (c *Client) LatestTask(ctx context.Context, serial string) (*printer.Task, error) {
	var list taskList
	if err := c.doJSON(ctx, http.MethodGet, tasksPath, &list); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, fmt.Errorf("list tasks: %w", errors.Join(err, printer.ErrHistoryUnauthorized))
		}
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for i := range list.Hits {
		if list.Hits[i].DeviceID == serial {
			return mapTask(&list.Hits[i], c.logger), nil
		}
	}
	c.logger.Debug("no cloud tasks for device", zap.String("serial", serial))
	return nil, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(string(respBody)), "cloudflare"):
		return ErrCloudflareBlocked
	case resp.StatusCode >= 400:
		return fmt.Errorf("cloud API %s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// mapTask converts a task hit. Lengths arrive in centimetres; each slot's
// length is the job length split by that slot's share of the weight.
func mapTask(h *taskHit, logger *zap.Logger) *printer.Task {
	t := &printer.Task{
		ID:        h.ID,
		Title:     h.Title,
		CoverURL:  h.Cover,
		Status:    h.Status,
		StartTime: parseTime(h.StartTime),
		EndTime:   parseTime(h.EndTime),
		Weight:    h.Weight,
		Length:    h.Length / 100,
		BedType:   h.BedType,
	}
	if t.Weight == 0 {
		return t
	}
	for _, m := range h.AMSDetailMapping {
		if m.Ams < 0 || m.Ams >= printer.Slots {
			logger.Debug("task slot outside tracked range", zap.Int("slot", m.Ams))
			continue
		}
		t.SlotWeights[m.Ams] = m.Weight
		t.SlotLengths[m.Ams] = t.Length * m.Weight / t.Weight
	}
	return t
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
