// Package credentials resolves the service-account key used to reach the
// ledger spreadsheet.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested for the spreadsheet client.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

var (
	ErrNoCredentials      = errors.New("no credentials configured")
	ErrInvalidCredentials = errors.New("invalid credentials JSON")
)

// Origin tells where a credential document was found.
type Origin string

const (
	OriginInline Origin = "inline"
	OriginFile   Origin = "file"
)

// Source lists the places a service-account key may come from, in precedence order.
type Source struct {
	JSON string // raw JSON from the environment
	File string // path to a JSON key file
}

// Credentials is a resolved service-account key.
type Credentials struct {
	Origin Origin
	Path   string
	Raw    []byte
}

// Summary is the non-secret part of a service-account key.
type Summary struct {
	Origin      Origin
	Path        string
	Type        string
	ClientEmail string
	ProjectID   string
	Keys        []string
}

// Resolve returns the first available credential document.
func (s Source) Resolve() (*Credentials, error) {
	const op = "credentials.Resolve"

	if raw := strings.TrimSpace(s.JSON); raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("%s: inline credentials: %w", op, ErrInvalidCredentials)
		}
		return &Credentials{Origin: OriginInline, Raw: []byte(raw)}, nil
	}

	if s.File == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoCredentials)
	}

	raw, err := os.ReadFile(s.File)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %s not found: %w", op, s.File, ErrNoCredentials)
		}
		return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s: %s: %w", op, s.File, ErrInvalidCredentials)
	}

	return &Credentials{Origin: OriginFile, Path: s.File, Raw: raw}, nil
}

// Summarize extracts identity fields without exposing the private key.
func (c *Credentials) Summarize() (*Summary, error) {
	const op = "credentials.Summarize"

	var doc map[string]any
	if err := json.Unmarshal(c.Raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidCredentials, err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	str := func(k string) string {
		v, _ := doc[k].(string)
		return v
	}

	return &Summary{
		Origin:      c.Origin,
		Path:        c.Path,
		Type:        str("type"),
		ClientEmail: str("client_email"),
		ProjectID:   str("project_id"),
		Keys:        keys,
	}, nil
}

// HTTPClient builds an authorized client for the configured scopes.
func (c *Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	const op = "credentials.HTTPClient"

	config, err := google.JWTConfigFromJSON(c.Raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}
	return config.Client(ctx), nil
}
