package reservations

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Settings resolves credential strings.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
}

// Client talks to the reservation source API.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	settings Settings
	validate *validator.Validate
	log      *zap.Logger
}

// NewClient creates a reservation API client.
func NewClient(cfg Config, settings Settings, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		settings: settings,
		validate: newValidator(),
		log:      log,
	}
}

func (c *Client) send(ctx context.Context, op, method, endpoint string, body io.Reader) ([]byte, error) {
	token, err := c.settings.Get(ctx, SettingAPIToken)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return raw, &APIError{Op: op, Status: resp.StatusCode, Message: msg, Raw: string(raw)}
	}
	return raw, nil
}

// FetchPage returns reservations checking in on or after cutoff. Pages start at 1.
func (c *Client) FetchPage(ctx context.Context, page int, cutoff time.Time) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))
	q.Set("checkin_from", cutoff.UTC().Format(dateLayout))

	raw, err := c.send(ctx, "fetch page", http.MethodGet, c.baseURL+"/reservations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp wirePage
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &APIError{Op: "fetch page", Status: http.StatusOK, Message: "malformed response: " + err.Error(), Raw: string(raw)}
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, &APIError{Op: "fetch page", Status: http.StatusOK, Message: "invalid pagination: " + err.Error(), Raw: string(raw)}
	}

	out := &Page{Pagination: Pagination{
		Page:    resp.Pagination.Page,
		PerPage: resp.Pagination.PerPage,
		Total:   resp.Pagination.Total,
		HasMore: resp.Pagination.HasMore,
	}}
	for _, w := range resp.Data {
		if err := c.validate.Struct(w); err != nil {
			c.log.Warn("Dropping invalid reservation", zap.String("reservation_id", w.ID), zap.Error(err))
			continue
		}
		r, err := w.typed()
		if err != nil {
			c.log.Warn("Dropping invalid reservation", zap.String("reservation_id", w.ID), zap.Error(err))
			continue
		}
		out.Reservations = append(out.Reservations, r)
	}
	return out, nil
}

// PatchReservation writes the new door code onto a reservation.
func (c *Client) PatchReservation(ctx context.Context, id string, patch Patch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, "patch reservation", http.MethodPatch,
		c.baseURL+"/reservations/"+url.PathEscape(id), bytes.NewReader(body))
	return err
}
