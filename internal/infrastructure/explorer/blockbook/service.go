package blockbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/circuitbreaker"
	"github.com/pollum-io/sysweb3-sub000/pkg/httputil"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	// DefaultRateLimit is the max number of requests per second.
	DefaultRateLimit = 5
	// DefaultCooldown is how long the service refuses requests after the
	// explorer returned a server error.
	DefaultCooldown = 30 * time.Second
)

// ServiceOpts is the struct given to NewService.
type ServiceOpts struct {
	URL       string
	RateLimit int
	Cooldown  time.Duration
}

func (o ServiceOpts) validate() error {
	if len(o.URL) <= 0 {
		return fmt.Errorf("missing blockbook url")
	}
	if !strings.HasPrefix(o.URL, "http://") && !strings.HasPrefix(o.URL, "https://") {
		return fmt.Errorf("blockbook url must be http(s): %s", o.URL)
	}
	return nil
}

type service struct {
	apiURL  string
	limiter ratelimit.Limiter
	cb      *gobreaker.CircuitBreaker
}

// NewService returns a new blockbook service as a ports.UTXOExplorer
// interface.
func NewService(opts ServiceOpts) (ports.UTXOExplorer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}

	apiURL := strings.TrimSuffix(opts.URL, "/")
	return &service{
		apiURL:  fmt.Sprintf("%s/api/v2", apiURL),
		limiter: ratelimit.New(opts.RateLimit),
		cb: circuitbreaker.NewCircuitBreaker(
			"blockbook", 1, opts.Cooldown, nil,
		),
	}, nil
}

// NewFactory returns a factory opening a service for the url of a network.
func NewFactory(rateLimit int, cooldown time.Duration) ports.UTXOExplorerFactory {
	return func(network domain.Network) (ports.UTXOExplorer, error) {
		return NewService(ServiceOpts{
			URL:       network.URL,
			RateLimit: rateLimit,
			Cooldown:  cooldown,
		})
	}
}

func (s *service) GetInfo(ctx context.Context) (*ports.ExplorerInfo, error) {
	var resp infoResponse
	if err := s.get(ctx, "", &resp); err != nil {
		return nil, err
	}
	return resp.toInfo(), nil
}

func (s *service) get(ctx context.Context, path string, v interface{}) error {
	return s.do(ctx, http.MethodGet, path, "", v)
}

// do sends a request through the rate limiter and the circuit breaker.
// Only server errors are counted as breaker failures, any other error is
// returned to the caller as is.
func (s *service) do(
	ctx context.Context, method, path, body string, v interface{},
) error {
	var reqErr error
	_, err := s.cb.Execute(func() (interface{}, error) {
		s.limiter.Take()

		headers := map[string]string{"Accept": "application/json"}
		if method == http.MethodPost {
			headers["Content-Type"] = "text/plain"
		}
		status, resp, err := httputil.NewHTTPRequest(
			ctx, method, s.apiURL+path, body, headers,
		)
		if err != nil {
			reqErr = err
			if ctx.Err() != nil {
				return nil, nil
			}
			return nil, err
		}
		if status != http.StatusOK {
			reqErr = &circuitbreaker.StatusError{
				StatusCode: status, Body: parseErrorBody(resp),
			}
			if circuitbreaker.IsServerError(reqErr) {
				return nil, reqErr
			}
			return nil, nil
		}
		if v != nil {
			if err := json.Unmarshal([]byte(resp), v); err != nil {
				reqErr = fmt.Errorf("invalid blockbook response: %w", err)
			}
		}
		return nil, nil
	})
	if err == nil {
		err = reqErr
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NetworkError(err)
}

func parseErrorBody(body string) string {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return body
}

func isNotFound(err error) bool {
	var statusErr *circuitbreaker.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound ||
		(statusErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(statusErr.Body), "not found"))
}
