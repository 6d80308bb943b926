package devices

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

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Settings resolves credential strings.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
}

// Client talks to the smart-lock cloud API.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	settings Settings
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

// NewClient creates a vendor API client. Credentials are read from settings
// on every call so rotated tokens take effect once the cache expires.
func NewClient(cfg Config, settings Settings, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		settings: settings,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

func (c *Client) credentials(ctx context.Context) (url.Values, error) {
	clientID, err := c.settings.Get(ctx, SettingClientID)
	if err != nil {
		return nil, err
	}
	token, err := c.settings.Get(ctx, SettingAccessToken)
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("clientId", clientID)
	v.Set("accessToken", token)
	v.Set("date", strconv.FormatInt(c.now().UnixMilli(), 10))
	return v, nil
}

// do sends the request and returns status and body. Only failures to obtain
// a response become TransportError.
func (c *Client) do(req *http.Request, op string) (int, []byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: op, Err: err}
	}
	return resp.StatusCode, body, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	status, body, err := c.do(req, op)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Op: op, Status: status, Message: http.StatusText(status), Raw: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: op, Status: status, Message: "malformed response: " + err.Error(), Raw: string(body)}
	}
	return nil
}

func (c *Client) checkEnvelope(op string, env envelope, raw []byte) error {
	if env.ErrCode != nil && *env.ErrCode != 0 {
		return &APIError{Op: op, Status: http.StatusOK, Code: *env.ErrCode, Message: env.ErrMsg, Raw: string(raw)}
	}
	if err := c.validate.Struct(env); err != nil {
		return &APIError{Op: op, Status: http.StatusOK, Message: err.Error(), Raw: string(raw)}
	}
	return nil
}

// ListLocks returns one page of locks. Pages start at 1.
func (c *Client) ListLocks(ctx context.Context, page int) (*LockPage, error) {
	params, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	params.Set("pageNo", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	var raw json.RawMessage
	if err := c.get(ctx, "list locks", "/v3/lock/list", params, &raw); err != nil {
		return nil, err
	}
	var resp lockList
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &APIError{Op: "list locks", Status: http.StatusOK, Message: err.Error(), Raw: string(raw)}
	}
	if err := c.checkEnvelope("list locks", resp.envelope, raw); err != nil {
		return nil, err
	}

	out := &LockPage{Page: page, Pages: resp.Pages}
	for _, l := range resp.List {
		if err := c.validate.Struct(l); err != nil {
			c.log.Warn("Dropping invalid lock entry", zap.Int64("lock_id", l.LockID), zap.Error(err))
			continue
		}
		out.Locks = append(out.Locks, l.typed())
	}
	return out, nil
}

// ListPasscodeSlots returns one page of passcode slots for a lock.
func (c *Client) ListPasscodeSlots(ctx context.Context, lockID int64, page int) (*SlotPage, error) {
	params, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	params.Set("lockId", strconv.FormatInt(lockID, 10))
	params.Set("pageNo", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	var raw json.RawMessage
	if err := c.get(ctx, "list passcodes", "/v3/lock/listKeyboardPwd", params, &raw); err != nil {
		return nil, err
	}
	var resp slotList
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &APIError{Op: "list passcodes", Status: http.StatusOK, Message: err.Error(), Raw: string(raw)}
	}
	if err := c.checkEnvelope("list passcodes", resp.envelope, raw); err != nil {
		return nil, err
	}

	out := &SlotPage{Page: page, Pages: resp.Pages}
	for _, s := range resp.List {
		if err := c.validate.Struct(s); err != nil {
			c.log.Warn("Dropping invalid passcode entry",
				zap.Int64("lock_id", lockID), zap.Int64("passcode_id", s.KeyboardPwdID), zap.Error(err))
			continue
		}
		out.Slots = append(out.Slots, s.typed(lockID))
	}
	return out, nil
}

// ChangePasscode rewrites a slot's code and validity window. A vendor answer
// of any kind is returned as a ChangeResponse; only transport failures are
// returned as errors.
func (c *Client) ChangePasscode(ctx context.Context, r ChangeRequest) (*ChangeResponse, error) {
	form, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	form.Set("lockId", strconv.FormatInt(r.LockID, 10))
	form.Set("keyboardPwdId", strconv.FormatInt(r.SlotID, 10))
	form.Set("newKeyboardPwd", r.Code)
	form.Set("startDate", strconv.FormatInt(r.StartsAt.UnixMilli(), 10))
	form.Set("endDate", strconv.FormatInt(r.EndsAt.UnixMilli(), 10))
	// 2 = change through the gateway rather than bluetooth.
	form.Set("changeType", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/keyboardPwd/change", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req, "change passcode")
	if err != nil {
		return nil, err
	}

	out := &ChangeResponse{TopLevelStatus: status, Raw: string(body)}
	var env envelope
	if jsonErr := json.Unmarshal(body, &env); jsonErr != nil {
		if out.OK() {
			// A 2xx with an unreadable body cannot be trusted as success.
			code := -1
			out.NestedStatus = &code
		}
		out.Message = fmt.Sprintf("malformed response: %v", jsonErr)
		return out, nil
	}
	out.NestedStatus = env.ErrCode
	out.Message = env.ErrMsg
	if out.Message == "" && !out.OK() {
		out.Message = http.StatusText(status)
	}
	return out, nil
}
