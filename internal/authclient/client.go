// AngelaMos | 2026
// client.go

package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx answer from the clinic API. It unwraps to the
// matching core sentinel so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("clinic api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("clinic api: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return core.ErrTokenInvalid
	case e.StatusCode == http.StatusForbidden:
		return core.ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return core.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return core.ErrDuplicateKey
	case e.StatusCode >= http.StatusInternalServerError:
		return core.ErrUnavailable
	default:
		return nil
	}
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	tracer     trace.Tracer
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With("component", "authclient"),
		tracer:     otel.Tracer("github.com/carterperez-dev/clinic-session/internal/authclient"),
	}
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", creds, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("login: %w: %w", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if out.Token == "" || out.User == nil {
		return nil, fmt.Errorf("login: incomplete response: %w", core.ErrUnavailable)
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, fmt.Errorf("register: %w: %w", ErrEmailExists, err)
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	if out.Token == "" || out.User == nil {
		return nil, fmt.Errorf("register: incomplete response: %w", core.ErrUnavailable)
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) WhoAmI(ctx context.Context, token string) (*Identity, error) {
	var out Identity
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}

	if out.User == nil {
		return nil, fmt.Errorf("whoami: missing user: %w", core.ErrTokenInvalid)
	}
	return &out, nil
}

func (c *Client) CreateTenant(
	ctx context.Context,
	token string,
	req tenant.CreateRequest,
) (*tenant.Tenant, error) {
	var out tenant.Tenant
	if err := c.do(ctx, http.MethodPost, "/tenants", token, req, &out); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return &out, nil
}

// Badge fetches a single navigation counter from path, which must answer
// {"count": n}.
func (c *Client) Badge(ctx context.Context, token, path string) (int, error) {
	var out badgeResponse
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return 0, fmt.Errorf("badge %s: %w", path, err)
	}
	return out.Count, nil
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build ping: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping clinic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ping clinic api: %w", &APIError{StatusCode: resp.StatusCode})
	}
	return nil
}

func (c *Client) do(
	ctx context.Context,
	method, path, token string,
	body, out any,
) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() {
		if err != nil {
			core.SetSpanError(ctx, err)
		}
		span.End()
	}()

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("encode request: %w", marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, core.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("clinic api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body errorResponse
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
