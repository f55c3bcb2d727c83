// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package api talks to a NervesHub user endpoint over HTTPS. It covers the
// account lifecycle: register, login, peer auth, CSR signing and identity
// lookup. Responses arrive wrapped in a data envelope; failures are mapped
// to ServiceError so callers can show the server's own wording.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mike-mehl/nerves-hub-cli/buildvars"
	"github.com/mike-mehl/nerves-hub-cli/internal/model"
	"github.com/mike-mehl/nerves-hub-cli/internal/security"
)

// DefaultBaseURL is the public NervesHub API endpoint.
const DefaultBaseURL = "https://api.nerves-hub.org"

const (
	defaultTimeout  = 60 * time.Second
	maxResponseSize = 1 << 20
)

// Client is an account-service client bound to one hub endpoint. The zero
// value is not usable; construct it with New.
type Client struct {
	baseURL    string
	httpClient *http.Client
	caPool     *x509.CertPool
	timeout    time.Duration
}

// New builds a client for baseURL. caCertsPath may name a PEM file or a
// directory of PEM files to trust instead of the system roots; empty means
// system roots. A non-positive timeout falls back to the default.
func New(baseURL, caCertsPath string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var caPool *x509.CertPool
	if caCertsPath != "" {
		pool, err := loadCAPool(caCertsPath)
		if err != nil {
			return nil, fmt.Errorf("loading CA certificates from %s: %w", caCertsPath, err)
		}
		caPool = pool
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		caPool:  caPool,
		timeout: timeout,
	}
	c.httpClient = c.newHTTPClient(nil)
	return c, nil
}

// newHTTPClient builds an HTTP client trusting the configured roots. When a
// client certificate is given the connection authenticates with it.
func (c *Client) newHTTPClient(clientCert *tls.Certificate) *http.Client {
	tlsConfig := &tls.Config{RootCAs: c.caPool}
	if clientCert != nil {
		tlsConfig.Certificates = []tls.Certificate{*clientCert}
	}
	return &http.Client{
		Timeout:   c.timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}
}

// loadCAPool reads one PEM file, or every .pem/.crt file in a directory,
// into a fresh cert pool.
func loadCAPool(path string) (*x509.CertPool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	appended := false

	addFile := func(name string) error {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if pool.AppendCertsFromPEM(data) {
			appended = true
		}
		return nil
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".pem" && ext != ".crt" {
				continue
			}
			if err := addFile(filepath.Join(path, entry.Name())); err != nil {
				return nil, err
			}
		}
	} else {
		if err := addFile(path); err != nil {
			return nil, err
		}
	}

	if !appended {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
	Note            string `json:"note,omitempty"`
}

type peerAuthRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
}

type signRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
	CSR             string `json:"csr"`
	Description     string `json:"description"`
}

type accountPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Register creates a new hub account and returns it.
func (c *Client) Register(ctx context.Context, username, email string, password security.Secret) (*model.Account, error) {
	// Secret redacts through json.Marshal; the wire needs the real value.
	req := registerRequest{
		Username: username,
		Email:    email,
		Password: string(password.Bytes()),
	}
	data, err := c.doJSON(ctx, c.httpClient, http.MethodPost, "/users/register", req, nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(data)
}

// Login authenticates with account credentials. The hub answers with either
// a token or a bare account, so both LoginResult branches can come back
// empty; the caller decides what an unrecognized shape means.
func (c *Client) Login(ctx context.Context, identifier string, password security.Secret, note string) (*model.LoginResult, error) {
	req := loginRequest{
		EmailOrUsername: identifier,
		Password:        string(password.Bytes()),
		Note:            note,
	}
	data, err := c.doJSON(ctx, c.httpClient, http.MethodPost, "/users/login", req, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Token string `json:"token"`
		accountPayload
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}

	result := &model.LoginResult{}
	if payload.Token != "" {
		result.Token = security.FromString(payload.Token)
	} else if payload.Username != "" || payload.Email != "" {
		result.Account = &model.Account{Username: payload.Username, Email: payload.Email}
	}
	return result, nil
}

// PeerAuth validates account credentials without minting a token, for hubs
// that authenticate users by client certificate instead.
func (c *Client) PeerAuth(ctx context.Context, identifier string, password security.Secret) (*model.Account, error) {
	req := peerAuthRequest{
		EmailOrUsername: identifier,
		Password:        string(password.Bytes()),
	}
	data, err := c.doJSON(ctx, c.httpClient, http.MethodPost, "/users/auth", req, nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(data)
}

// SignUserCSR submits a DER certificate request for signing and returns the
// issued certificate in PEM form. The CSR travels base64 encoded.
func (c *Client) SignUserCSR(ctx context.Context, identifier string, password security.Secret, csrDER []byte, description string) ([]byte, error) {
	req := signRequest{
		EmailOrUsername: identifier,
		Password:        string(password.Bytes()),
		CSR:             base64.StdEncoding.EncodeToString(csrDER),
		Description:     description,
	}
	data, err := c.doJSON(ctx, c.httpClient, http.MethodPost, "/users/certificates/sign", req, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Cert string `json:"cert"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding signing response: %w", err)
	}
	if payload.Cert == "" {
		return nil, fmt.Errorf("signing response carried no certificate")
	}
	return []byte(payload.Cert), nil
}

// Me resolves the account behind a stored credential. Tokens go in the
// Authorization header; a certificate credential authenticates the TLS
// connection itself.
func (c *Client) Me(ctx context.Context, cred model.Credential) (*model.Account, error) {
	httpClient := c.httpClient
	var header http.Header

	switch cred.Kind {
	case model.CredentialToken:
		header = http.Header{}
		header.Set("Authorization", "token "+string(cred.Token.Bytes()))
	case model.CredentialCertificate:
		tlsCert, err := tls.X509KeyPair(cred.CertPEM, cred.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		httpClient = c.newHTTPClient(&tlsCert)
	default:
		return nil, fmt.Errorf("no credential to authenticate with")
	}

	data, err := c.doJSON(ctx, httpClient, http.MethodGet, "/users/me", nil, header)
	if err != nil {
		return nil, err
	}
	return decodeAccount(data)
}

func decodeAccount(data json.RawMessage) (*model.Account, error) {
	var payload accountPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding account response: %w", err)
	}
	return &model.Account{Username: payload.Username, Email: payload.Email}, nil
}

// doJSON sends one request and unwraps the data envelope. Non-2xx answers
// come back as *ServiceError.
func (c *Client) doJSON(ctx context.Context, httpClient *http.Client, method, path string, body any, header http.Header) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "nerves-hub-cli/"+buildvars.VersionOrDefault("dev"))
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newServiceError(resp.StatusCode, raw)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	return envelope.Data, nil
}
