// Package lookup holds the clients for the external collaborators the
// letter service consults during validation: the application registry and
// the letter template service. Both are plain HTTP services; the clients
// wrap their calls in a circuit breaker so a flapping collaborator fails
// fast instead of tying up request workers.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/busybox42/lettera/internal/letter"
	"github.com/sony/gobreaker"
)

// ErrUnavailable wraps transport or breaker failures talking to a
// collaborator. Validators turn it into a field error on the relevant field.
var ErrUnavailable = errors.New("lookup service unavailable")

// ApplicationInfo is the registry's record for one application id.
type ApplicationInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ApplicationRegistry resolves application ids. A nil result with a nil
// error means the id is unknown.
type ApplicationRegistry interface {
	GetApplicationInfo(ctx context.Context, applicationID string) (*ApplicationInfo, error)
}

// TemplateService resolves template ids. The returned field errors are the
// template service's own validation output and are merged into the caller's
// error list as-is.
type TemplateService interface {
	GetLetterTemplate(ctx context.Context, templateID string) ([]letter.FieldError, error)
}

// Config configures an HTTP lookup client.
type Config struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	})
}

func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ApplicationClient is the HTTP ApplicationRegistry implementation.
type ApplicationClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewApplicationClient creates a registry client for the given endpoint.
func NewApplicationClient(cfg Config) *ApplicationClient {
	return &ApplicationClient{
		baseURL: cfg.BaseURL,
		client:  newHTTPClient(cfg),
		breaker: newBreaker("application-registry"),
	}
}

// GetApplicationInfo resolves an application id against the registry.
func (c *ApplicationClient) GetApplicationInfo(ctx context.Context, applicationID string) (*ApplicationInfo, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/applications/"+applicationID, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			var info ApplicationInfo
			if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
				return nil, err
			}
			return &info, nil
		case http.StatusNotFound:
			return (*ApplicationInfo)(nil), nil
		default:
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: application registry: %v", ErrUnavailable, err)
	}
	info, _ := result.(*ApplicationInfo)
	return info, nil
}

// TemplateClient is the HTTP TemplateService implementation.
type TemplateClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewTemplateClient creates a template service client for the given endpoint.
func NewTemplateClient(cfg Config) *TemplateClient {
	return &TemplateClient{
		baseURL: cfg.BaseURL,
		client:  newHTTPClient(cfg),
		breaker: newBreaker("template-service"),
	}
}

// GetLetterTemplate fetches the template service's validation verdict for a
// template id.
func (c *TemplateClient) GetLetterTemplate(ctx context.Context, templateID string) ([]letter.FieldError, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/templates/"+templateID, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var wrapper struct {
			Errors []letter.FieldError `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
			return nil, err
		}
		return wrapper.Errors, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: template service: %v", ErrUnavailable, err)
	}
	errsOut, _ := result.([]letter.FieldError)
	return errsOut, nil
}
