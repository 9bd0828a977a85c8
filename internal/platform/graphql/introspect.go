package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

const introspectionQuery = `query IntrospectInsertInputs {
  __schema {
    types {
      name
      kind
      inputFields {
        name
        type {
          name
          kind
          ofType {
            name
            kind
            ofType {
              name
              kind
              ofType {
                name
                kind
                ofType {
                  name
                  kind
                }
              }
            }
          }
        }
      }
    }
  }
}`

// TypeRef is the wire form of an introspected type reference.
type TypeRef struct {
	Name   *string  `json:"name"`
	Kind   string   `json:"kind"`
	OfType *TypeRef `json:"ofType"`
}

type InputValue struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
}

type IntrospectedType struct {
	Name        string       `json:"name"`
	Kind        string       `json:"kind"`
	InputFields []InputValue `json:"inputFields"`
}

type introspectionData struct {
	Schema struct {
		Types []IntrospectedType `json:"types"`
	} `json:"__schema"`
}

type introspectionResponse struct {
	Data   *introspectionData `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Introspector fetches the remote type catalogue.
type Introspector interface {
	Introspect(ctx context.Context) ([]IntrospectedType, error)
}

type Config struct {
	Endpoint    string
	AdminSecret string
	Timeout     time.Duration
}

type client struct {
	log         *logger.Logger
	endpoint    string
	adminSecret string
	timeout     time.Duration
	httpClient  *http.Client
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("graphql http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// NewClient returns an introspection client. A positive Timeout is required.
func NewClient(log *logger.Logger, cfg Config) (Introspector, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("missing schema endpoint")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("introspection timeout must be set")
	}
	return &client{
		log:         log.With("service", "SchemaIntrospector"),
		endpoint:    endpoint,
		adminSecret: strings.TrimSpace(cfg.AdminSecret),
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *client) Introspect(ctx context.Context) ([]IntrospectedType, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{"query": introspectionQuery})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.adminSecret != "" {
		req.Header.Set("x-hasura-admin-secret", c.adminSecret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection request: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("introspection read: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	types, err := decodeIntrospection(raw)
	if err != nil {
		return nil, err
	}
	c.log.Info("Schema introspected", "types", len(types), "duration_ms", time.Since(start).Milliseconds())
	return types, nil
}

type fileSource struct {
	path string
}

// NewFileSource reads a saved introspection response instead of calling the
// remote service.
func NewFileSource(path string) Introspector {
	return &fileSource{path: strings.TrimSpace(path)}
}

func (f *fileSource) Introspect(ctx context.Context) ([]IntrospectedType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read introspection file: %w", err)
	}
	return decodeIntrospection(raw)
}

// decodeIntrospection accepts a full GraphQL response or a bare data object.
func decodeIntrospection(raw []byte) ([]IntrospectedType, error) {
	var resp introspectionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode introspection: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("introspection errors: %s", strings.Join(msgs, "; "))
	}
	if resp.Data != nil && resp.Data.Schema.Types != nil {
		return resp.Data.Schema.Types, nil
	}

	var bare introspectionData
	if err := json.Unmarshal(raw, &bare); err == nil && bare.Schema.Types != nil {
		return bare.Schema.Types, nil
	}
	return nil, errors.New("introspection response has no __schema.types")
}
