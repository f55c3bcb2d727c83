// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package api_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mike-mehl/nerves-hub-cli/internal/api"
	"github.com/mike-mehl/nerves-hub-cli/internal/model"
	"github.com/mike-mehl/nerves-hub-cli/internal/pki"
	"github.com/mike-mehl/nerves-hub-cli/internal/security"
	"github.com/mike-mehl/nerves-hub-cli/internal/testutil"
)

func newClient(t *testing.T, url string) *api.Client {
	t.Helper()
	client, err := api.New(url, "", 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestRegister(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Write([]byte(`{"data":{"username":"alice","email":"alice@example.com"}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	account, err := client.Register(context.Background(), "alice", "alice@example.com", security.FromString("s3cret"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/users/register" {
		t.Errorf("request went to %s %s", gotMethod, gotPath)
	}
	if gotBody["username"] != "alice" || gotBody["email"] != "alice@example.com" {
		t.Errorf("unexpected body: %v", gotBody)
	}
	if gotBody["password"] != "s3cret" {
		t.Errorf("password did not reach the wire: %q", gotBody["password"])
	}
	if account.Username != "alice" || account.Email != "alice@example.com" {
		t.Errorf("unexpected account: %+v", account)
	}
}

func TestLoginTokenShape(t *testing.T) {
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/login" {
			t.Errorf("request went to %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Write([]byte(`{"data":{"token":"nhu_abc123"}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	result, err := client.Login(context.Background(), "alice", security.FromString("pw"), "workstation")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if gotBody["email_or_username"] != "alice" || gotBody["note"] != "workstation" {
		t.Errorf("unexpected body: %v", gotBody)
	}
	if result.Token.IsZero() {
		t.Fatal("expected a token")
	}
	if string(result.Token.Bytes()) != "nhu_abc123" {
		t.Errorf("unexpected token value")
	}
	if result.Account != nil {
		t.Errorf("account should be empty in token shape, got %+v", result.Account)
	}
}

func TestLoginAccountShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"username":"alice","email":"alice@example.com"}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	result, err := client.Login(context.Background(), "alice", security.FromString("pw"), "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if !result.Token.IsZero() {
		t.Error("no token should be set in account shape")
	}
	if result.Account == nil || result.Account.Username != "alice" {
		t.Errorf("unexpected account: %+v", result.Account)
	}
}

func TestLoginUnrecognizedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	result, err := client.Login(context.Background(), "alice", security.FromString("pw"), "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !result.Token.IsZero() || result.Account != nil {
		t.Errorf("both branches should be empty, got %+v", result)
	}
}

func TestValidationErrorRendering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":{"email":["has already been taken"],"username":["is too short"]}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	_, err := client.Register(context.Background(), "a", "alice@example.com", security.FromString("pw"))
	if err == nil {
		t.Fatal("expected an error")
	}

	var serviceErr *api.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *api.ServiceError, got %T", err)
	}
	if serviceErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", serviceErr.StatusCode)
	}
	want := "email has already been taken; username is too short"
	if serviceErr.Error() != want {
		t.Errorf("rendered %q, want %q", serviceErr.Error(), want)
	}
}

func TestOpaqueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	_, err := client.PeerAuth(context.Background(), "alice", security.FromString("pw"))

	var serviceErr *api.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *api.ServiceError, got %v", err)
	}
	if serviceErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", serviceErr.StatusCode)
	}
	if serviceErr.Error() != "Internal Server Error" {
		t.Errorf("rendered %q", serviceErr.Error())
	}
}

func TestSignUserCSR(t *testing.T) {
	ca, err := testutil.NewCA()
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	key, err := pki.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	csrDER, err := pki.CreateCSR(key, "alice")
	if err != nil {
		t.Fatalf("CreateCSR: %v", err)
	}

	var signedPEM []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/certificates/sign" {
			t.Errorf("request went to %s", r.URL.Path)
		}
		var body struct {
			CSR         string `json:"csr"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if body.Description != "home-laptop" {
			t.Errorf("description = %q", body.Description)
		}

		der, err := base64.StdEncoding.DecodeString(body.CSR)
		if err != nil {
			t.Errorf("csr is not base64: %v", err)
		}
		csr, err := x509.ParseCertificateRequest(der)
		if err != nil {
			t.Errorf("csr does not parse: %v", err)
		}
		if len(csr.Subject.Organization) != 1 || csr.Subject.Organization[0] != "alice" {
			t.Errorf("csr subject = %v", csr.Subject)
		}

		signedPEM, err = ca.SignCSR(der)
		if err != nil {
			t.Errorf("SignCSR: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"cert": string(signedPEM)}})
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	certPEM, err := client.SignUserCSR(context.Background(), "alice", security.FromString("pw"), csrDER, "home-laptop")
	if err != nil {
		t.Fatalf("SignUserCSR: %v", err)
	}
	if string(certPEM) != string(signedPEM) {
		t.Error("returned certificate differs from what the server issued")
	}
	keyPEM, err := pki.EncodeKeyPEM(key)
	if err != nil {
		t.Fatalf("EncodeKeyPEM: %v", err)
	}
	if err := pki.VerifyCertificate(certPEM, keyPEM); err != nil {
		t.Errorf("issued certificate does not match the key: %v", err)
	}
}

func TestMeWithToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/users/me" {
			t.Errorf("request went to %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "token nhu_abc123" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"data":{"username":"alice","email":"alice@example.com"}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	account, err := client.Me(context.Background(), model.TokenCredential(security.FromString("nhu_abc123")))
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if account.Username != "alice" {
		t.Errorf("unexpected account: %+v", account)
	}
}

func TestMeWithCertificate(t *testing.T) {
	ca, err := testutil.NewCA()
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	certPEM, keyPEM, err := ca.IssueIdentity("alice")
	if err != nil {
		t.Fatalf("IssueIdentity: %v", err)
	}

	clientCAs := x509.NewCertPool()
	if !clientCAs.AppendCertsFromPEM(ca.CertPEM()) {
		t.Fatal("could not load CA into pool")
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, `{"errors":"no client certificate"}`, http.StatusUnauthorized)
			return
		}
		org := r.TLS.PeerCertificates[0].Subject.Organization
		if len(org) != 1 || org[0] != "alice" {
			http.Error(w, `{"errors":"wrong identity"}`, http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"data":{"username":"alice","email":"alice@example.com"}}`))
	}))
	srv.TLS = &tls.Config{
		ClientAuth: tls.RequireAndVerifyClientCert,
		ClientCAs:  clientCAs,
	}
	srv.StartTLS()
	defer srv.Close()

	// The client has to trust the test server's own certificate.
	serverCA := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	caFile := filepath.Join(t.TempDir(), "server-ca.pem")
	if err := os.WriteFile(caFile, serverCA, 0o600); err != nil {
		t.Fatalf("writing CA file: %v", err)
	}

	client, err := api.New(srv.URL, caFile, 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	account, err := client.Me(context.Background(), model.CertificateCredential(certPEM, keyPEM))
	if err != nil {
		t.Fatalf("Me over mTLS: %v", err)
	}
	if account.Username != "alice" {
		t.Errorf("unexpected account: %+v", account)
	}
}

func TestMeWithoutCredential(t *testing.T) {
	client := newClient(t, "https://example.invalid")
	_, err := client.Me(context.Background(), model.Credential{})
	if err == nil {
		t.Fatal("expected an error for the empty credential")
	}
}

func TestNewLoadsCADirectory(t *testing.T) {
	ca, err := testutil.NewCA()
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hub-ca.pem"), ca.CertPEM(), 0o600); err != nil {
		t.Fatalf("writing CA file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o600); err != nil {
		t.Fatalf("writing stray file: %v", err)
	}

	if _, err := api.New("https://example.invalid", dir, time.Second); err != nil {
		t.Fatalf("New with CA directory: %v", err)
	}

	if _, err := api.New("https://example.invalid", filepath.Join(dir, "missing"), time.Second); err == nil {
		t.Fatal("expected an error for a missing CA path")
	}
}
