package tools

import (
	"context"
	"log/slog"

	"github.com/meetnote/meetnote/internal/config"
	"github.com/meetnote/meetnote/internal/notes"
	"github.com/meetnote/meetnote/internal/prompt"
)

// LicenseSource is the license subsystem consumed for the premium provider.
type LicenseSource interface {
	// Valid reports whether the user currently holds a valid license.
	Valid(ctx context.Context) bool
	// AccessToken returns a bearer token derived from the license.
	AccessToken(ctx context.Context) (string, error)
}

// AssembleParams configures one registry assembly.
type AssembleParams struct {
	// Enabled is the tool gate result (prompt.ToolsEnabled). When false no
	// provider is contacted and the registry is empty.
	Enabled bool
	// LicenseValid gates the premium provider connection.
	LicenseValid bool
	// Selection, when present, enables the edit_note built-in.
	Selection *prompt.Selection
}

// Assembler discovers and merges tools from remote providers and built-ins.
type Assembler struct {
	providers  []config.ToolProvider
	premiumURL string
	license    LicenseSource
	directory  notes.Directory
	logger     *slog.Logger
}

// NewAssembler creates a tool assembler. license may be nil when no license
// subsystem is wired; the premium provider is then never contacted.
func NewAssembler(providers []config.ToolProvider, premiumURL string, license LicenseSource, directory notes.Directory, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		providers:  providers,
		premiumURL: premiumURL,
		license:    license,
		directory:  directory,
		logger:     logger,
	}
}

// Assemble builds the tool registry for one generation turn and returns every
// opened provider connection. The caller (the generation transport) owns the
// connections and must close them when the turn ends, whether it completes,
// errors, or is aborted.
//
// Registration order: premium provider tools, then general providers in
// enablement order, then built-ins. A provider that fails to connect or list
// is skipped with a logged error; assembly never aborts.
func (a *Assembler) Assemble(ctx context.Context, p AssembleParams) (*Registry, []*Conn) {
	registry := NewRegistry(a.logger)
	if !p.Enabled {
		return registry, nil
	}

	type dialResult struct {
		conn  *Conn
		tools []Descriptor
	}

	discover := func(conn *Conn, err error, name string) *dialResult {
		if err != nil {
			a.logger.Error("tool provider unavailable", "provider", name, "error", err)
			return nil
		}
		descriptors, err := conn.Tools(ctx)
		if err != nil {
			a.logger.Error("tool provider listing failed", "provider", name, "error", err)
			if closeErr := conn.Close(); closeErr != nil {
				a.logger.Debug("closing failed provider", "provider", name, "error", closeErr)
			}
			return nil
		}
		return &dialResult{conn: conn, tools: descriptors}
	}

	// Premium and general providers are independent round trips; fan out and
	// collect, ignoring per-provider failures.
	premiumCh := make(chan *dialResult, 1)
	go func() {
		if a.premiumURL == "" || a.license == nil || !p.LicenseValid {
			premiumCh <- nil
			return
		}
		token, err := a.license.AccessToken(ctx)
		if err != nil {
			a.logger.Error("fetching license token for premium provider", "error", err)
			premiumCh <- nil
			return
		}
		conn, err := Dial(ctx, "premium", a.premiumURL, "Authorization", "Bearer "+token)
		premiumCh <- discover(conn, err, "premium")
	}()

	providerCh := make([]chan *dialResult, len(a.providers))
	for i, provider := range a.providers {
		providerCh[i] = make(chan *dialResult, 1)
		go func(ch chan *dialResult, provider config.ToolProvider) {
			conn, err := Dial(ctx, provider.Name, provider.URL, provider.HeaderKey, provider.HeaderValue)
			ch <- discover(conn, err, provider.Name)
		}(providerCh[i], provider)
	}

	var conns []*Conn
	if res := <-premiumCh; res != nil {
		conns = append(conns, res.conn)
		for _, d := range res.tools {
			registry.Register(d)
		}
	}
	for _, ch := range providerCh {
		res := <-ch
		if res == nil {
			continue
		}
		conns = append(conns, res.conn)
		for _, d := range res.tools {
			registry.Register(d)
		}
	}

	a.registerBuiltins(registry, p.Selection)

	a.logger.Debug("assembled tool registry",
		"tools", registry.Len(), "connections", len(conns))
	return registry, conns
}
