// Package executor makes authenticated calls to external provider APIs
// using credentials from the store, mapping failures onto a typed error
// taxonomy the orchestrator can act on.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bronhq/bron/internal/store"
)

// refreshWindow: a token this close to expiry is refreshed before use.
const refreshWindow = 5 * time.Minute

const userAgent = "Bron/1.0"

// Call describes one outbound API request.
type Call struct {
	UserID   string
	Provider string
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
}

// Result is a successful (2xx) response.
type Result struct {
	Status int
	Body   []byte
}

// Options configures an Executor.
type Options struct {
	Store      *store.Store
	HTTPClient *http.Client
	// RefreshEndpoints maps provider keys to OAuth token refresh URLs.
	// Providers without an entry skip the refresh step.
	RefreshEndpoints map[string]string
	Logger           *slog.Logger
}

// Executor resolves credentials and performs calls.
type Executor struct {
	store            *store.Store
	httpClient       *http.Client
	refreshEndpoints map[string]string
	log              *slog.Logger
}

// New creates an executor.
func New(opts Options) *Executor {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{
		store:            opts.Store,
		httpClient:       opts.HTTPClient,
		refreshEndpoints: opts.RefreshEndpoints,
		log:              opts.Logger,
	}
}

// Execute performs one authenticated call.
func (e *Executor) Execute(ctx context.Context, call *Call) (*Result, error) {
	cred, err := e.store.ResolveCredential(call.UserID, call.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	if cred == nil {
		return nil, &AuthenticationError{Provider: call.Provider, Reason: "no valid credential"}
	}

	if needsRefresh(cred) {
		if err := e.refreshToken(ctx, cred); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, bytes.NewReader(call.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	switch cred.Type {
	case store.CredOAuthToken, store.CredAPIKey, store.CredBearerToken:
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	case store.CredCookie:
		req.Header.Set("Cookie", cred.AccessToken)
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Provider: call.Provider}
		}
		return nil, &ExecutionError{Provider: call.Provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExecutionError{Provider: call.Provider, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// The provider rejected the token; stop trusting it.
		if err := e.store.InvalidateCredential(cred.ID); err != nil {
			e.log.Error("failed to invalidate credential", "credential_id", cred.ID, "error", err)
		}
		return nil, &AuthenticationError{Provider: call.Provider, Reason: "token rejected"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Provider: call.Provider, RetryAfter: retryAfter(resp)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &APIResponseError{Provider: call.Provider, Status: resp.StatusCode, Body: string(body)}
	}

	// Record the successful use; failing to do so must not fail the call.
	if err := e.store.MarkCredentialUsed(cred.ID); err != nil {
		e.log.Error("failed to mark credential used", "credential_id", cred.ID, "error", err)
	}

	return &Result{Status: resp.StatusCode, Body: body}, nil
}

func needsRefresh(cred *store.Credential) bool {
	if cred.Type != store.CredOAuthToken || cred.ExpiresAt == nil {
		return false
	}
	return time.Until(*cred.ExpiresAt) < refreshWindow
}

// refreshToken exchanges the refresh token at the provider's endpoint and
// updates the stored row. A credential without a refresh token is dead.
func (e *Executor) refreshToken(ctx context.Context, cred *store.Credential) error {
	if cred.RefreshToken == "" {
		if err := e.store.InvalidateCredential(cred.ID); err != nil {
			e.log.Error("failed to invalidate credential", "credential_id", cred.ID, "error", err)
		}
		return &AuthenticationError{Provider: cred.Provider, Reason: "token expired and no refresh token"}
	}
	endpoint, ok := e.refreshEndpoints[cred.Provider]
	if !ok {
		e.log.Warn("no refresh endpoint for provider, using stale token", "provider", cred.Provider)
		return nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return &ExecutionError{Provider: cred.Provider, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if err := e.store.InvalidateCredential(cred.ID); err != nil {
			e.log.Error("failed to invalidate credential", "credential_id", cred.ID, "error", err)
		}
		return &AuthenticationError{Provider: cred.Provider, Reason: fmt.Sprintf("refresh rejected (status %d)", resp.StatusCode)}
	}

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("parse refresh response: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.RefreshToken
	}
	var expires *time.Time
	if tok.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)
		expires = &t
	}
	if err := e.store.UpdateCredentialToken(cred.ID, tok.AccessToken, tok.RefreshToken, expires); err != nil {
		return err
	}
	cred.AccessToken = tok.AccessToken
	e.log.Info("refreshed credential", "provider", cred.Provider, "credential_id", cred.ID)
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// Credential lifecycle
// ---------------------------------------------------------------------------

// HasCredential reports whether a valid credential exists.
func (e *Executor) HasCredential(userID, provider string) (bool, error) {
	cred, err := e.store.ResolveCredential(userID, provider)
	if err != nil {
		return false, err
	}
	return cred != nil, nil
}

// StoreOAuthCredential saves a fresh OAuth token set. expiresIn is the
// provider's lifetime in seconds; zero means no expiry. scopes is the
// space-separated scope grant the provider confirmed.
func (e *Executor) StoreOAuthCredential(userID, provider, accessToken, refreshToken, scopes string, expiresIn int) (*store.Credential, error) {
	var expires *time.Time
	if expiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(expiresIn) * time.Second)
		expires = &t
	}
	return e.store.UpsertCredential(&store.Credential{
		UserID:       userID,
		Provider:     provider,
		Type:         store.CredOAuthToken,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Scopes:       scopes,
		ExpiresAt:    expires,
	})
}

// StoreAPIKeyCredential saves an API key. Keys do not expire.
func (e *Executor) StoreAPIKeyCredential(userID, provider, key string) (*store.Credential, error) {
	return e.store.UpsertCredential(&store.Credential{
		UserID:      userID,
		Provider:    provider,
		Type:        store.CredAPIKey,
		AccessToken: key,
	})
}

// RevokeCredential invalidates every stored credential for the provider.
func (e *Executor) RevokeCredential(userID, provider string) (int, error) {
	return e.store.RevokeCredentials(userID, provider)
}

// ListCredentials returns the user's credentials without secrets.
func (e *Executor) ListCredentials(userID string) ([]*store.CredentialInfo, error) {
	return e.store.ListCredentials(userID)
}
