package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	clientName     = "meetnote"
	clientVersion  = "1.0.0"
	connectTimeout = 15 * time.Second
)

// ErrToolFailed wraps a tool-level error result from a provider.
var ErrToolFailed = errors.New("tool execution failed")

// Conn is one open connection to a remote tool provider. Conns are owned by
// the generation transport, which closes them when the turn ends; the
// registry holds only the wrapped executors.
type Conn struct {
	name    string
	session *mcp.ClientSession
}

// headerTransport injects a static header credential into every request.
type headerTransport struct {
	key, value string
	base       http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(t.key, t.value)
	return t.base.RoundTrip(clone)
}

// Dial opens a Streamable HTTP connection to a tool provider. headerKey may
// be empty for unauthenticated providers.
func Dial(ctx context.Context, name, url, headerKey, headerValue string) (*Conn, error) {
	httpClient := http.DefaultClient
	if headerKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				key:   headerKey,
				value: headerValue,
				base:  http.DefaultTransport,
			},
		}
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	session, err := client.Connect(dialCtx, &mcp.StreamableClientTransport{
		Endpoint:   url,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to tool provider %s: %w", name, err)
	}

	return &Conn{name: name, session: session}, nil
}

// Name returns the provider name this connection was dialed with.
func (c *Conn) Name() string { return c.name }

// Tools lists the provider's tools as descriptors whose executors call back
// through this connection.
func (c *Conn) Tools(ctx context.Context) ([]Descriptor, error) {
	res, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing tools from %s: %w", c.name, err)
	}

	descriptors := make([]Descriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		tool := t
		descriptors = append(descriptors, Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
			Execute: func(ctx context.Context, input map[string]any) (string, error) {
				return c.call(ctx, tool.Name, input)
			},
		})
	}
	return descriptors, nil
}

// call invokes one remote tool and flattens its text content.
func (c *Conn) call(ctx context.Context, name string, input map[string]any) (string, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: input,
	})
	if err != nil {
		return "", fmt.Errorf("calling tool %s on %s: %w", name, c.name, err)
	}

	var sb strings.Builder
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, name, sb.String())
	}
	return sb.String(), nil
}

// Close tears down the provider connection.
func (c *Conn) Close() error {
	return c.session.Close()
}
