package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/repository"
	"github.com/fastygo/taskcache/usecase"
)

// Config describes how to reach the remote task store over HTTP.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	JWTSecret string
	ClientID  string
	TokenTTL  time.Duration

	// Dial overrides the connection dialer; nil uses the fasthttp default.
	Dial fasthttp.DialFunc
}

// StatusError is returned when the remote store answers with a non-2xx code.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Gateway talks to the remote task store's REST API.
type Gateway struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	tokens  *tokenSource
	logger  *zap.Logger
}

var (
	_ repository.RemoteGateway = (*Gateway)(nil)
	_ usecase.Notifier         = (*Gateway)(nil)
)

// New builds an HTTP gateway.
func New(cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &fasthttp.Client{
		Name:                "taskcached",
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxIdleConnDuration: 30 * time.Second,
		Dial:                cfg.Dial,
	}
	return &Gateway{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		tokens:  newTokenSource(cfg.JWTSecret, cfg.ClientID, cfg.TokenTTL),
		logger:  logger,
	}
}

func (g *Gateway) List(ctx context.Context) ([]domain.Task, error) {
	var wire []wireTask
	if err := g.do(ctx, fasthttp.MethodGet, "/sync", nil, &wire); err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(wire))
	for _, w := range wire {
		tasks = append(tasks, w.toDomain())
	}
	return tasks, nil
}

func (g *Gateway) Create(ctx context.Context, draft domain.TaskDraft) (*domain.Task, error) {
	var wire wireTask
	if err := g.do(ctx, fasthttp.MethodPost, "/save-task", draftToWire(draft), &wire); err != nil {
		return nil, err
	}
	created := wire.toDomain()
	if created.ID.IsZero() {
		return nil, fmt.Errorf("POST /save-task: response carries no id")
	}
	return &created, nil
}

func (g *Gateway) Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	var wire wireTask
	path := "/update-task/" + url.PathEscape(id)
	if err := g.do(ctx, fasthttp.MethodPut, path, patchToWire(patch), &wire); err != nil {
		return nil, err
	}
	updated := wire.toDomain()
	if updated.ID.IsZero() {
		updated.ID = domain.AuthoritativeID(id)
	}
	return &updated, nil
}

// Delete treats a 404 as success: the record is already gone remotely.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	err := g.do(ctx, fasthttp.MethodDelete, "/"+url.PathEscape(id), nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == fasthttp.StatusNotFound {
		g.logger.Debug("remote delete of unknown task", zap.String("task_id", id))
		return nil
	}
	return err
}

func (g *Gateway) ListUsers(ctx context.Context) ([]domain.User, error) {
	var wire []wireUser
	if err := g.do(ctx, fasthttp.MethodGet, "/users", nil, &wire); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(wire))
	for _, w := range wire {
		users = append(users, w.toDomain())
	}
	return users, nil
}

// Notify asks the remote store to e-mail a user.
func (g *Gateway) Notify(ctx context.Context, n domain.Notification) error {
	body := map[string]string{
		"email":   n.Email,
		"subject": n.Subject,
		"message": n.Message,
	}
	return g.do(ctx, fasthttp.MethodPost, "/notify", body, nil)
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.do(ctx, fasthttp.MethodGet, "/simple", nil, nil)
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(g.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(payload)
	}

	if g.tokens != nil {
		token, err := g.tokens.Token()
		if err != nil {
			return fmt.Errorf("%s %s: sign token: %w", method, path, err)
		}
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}

	start := time.Now()
	if err := g.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	code := resp.StatusCode()
	g.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", code),
		zap.Duration("took", time.Since(start)),
	)

	if code < 200 || code >= 300 {
		return &StatusError{Method: method, Path: path, Code: code, Body: snippet(resp.Body())}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
