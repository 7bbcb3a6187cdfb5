// Package google verifies Google Sign-In ID tokens through the tokeninfo endpoint.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/satrioramadhan/scansek-api/pkg/httpclient"
)

// DefaultName is used when the token carries no display name.
const DefaultName = "Google User"

var (
	// ErrTokenRejected means Google answered that the token is not valid.
	ErrTokenRejected = errors.New("google rejected the id token")
	// ErrNoEmail means the token is valid but carries no email claim.
	ErrNoEmail = errors.New("google id token has no email")
	// ErrAudienceMismatch means the token was issued for another client.
	ErrAudienceMismatch = errors.New("google id token audience mismatch")
)

// Identity is the verified content of an ID token.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Config configures the verifier.
type Config struct {
	TokenInfoURL string
	// ClientID, when set, must equal the token's aud claim.
	ClientID string
	Timeout  time.Duration
}

type doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Verifier checks ID tokens against Google's tokeninfo endpoint.
type Verifier struct {
	client doer
	cfg    Config
}

// NewVerifier returns a verifier calling through client.
func NewVerifier(cfg Config, client *httpclient.CircuitBreakerClient) *Verifier {
	return &Verifier{client: client, cfg: cfg}
}

type tokenInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Aud   string `json:"aud"`
}

// Verify introspects idToken. Errors other than the exported sentinels mean
// Google could not be reached or answered unexpectedly.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	u := v.cfg.TokenInfoURL + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call google tokeninfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		upErr := httpclient.ParseResponseError(resp, "google")
		if upErr.ClientError() {
			return nil, fmt.Errorf("%w: %w", ErrTokenRejected, upErr)
		}
		return nil, fmt.Errorf("call google tokeninfo: %w", upErr)
	}
	defer func() { _ = resp.Body.Close() }()

	var info tokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode tokeninfo response: %w", err)
	}

	if info.Email == "" {
		return nil, ErrNoEmail
	}
	if v.cfg.ClientID != "" && info.Aud != v.cfg.ClientID {
		return nil, ErrAudienceMismatch
	}

	name := info.Name
	if name == "" {
		name = DefaultName
	}
	return &Identity{Subject: info.Sub, Email: info.Email, Name: name}, nil
}
