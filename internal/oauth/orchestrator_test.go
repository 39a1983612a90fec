package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fanoutlabs/graph-broker/internal/graph"
	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/repository"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

// fakeUpstream serves the handful of endpoints an authorization run
// touches: token exchanges, page enumeration and linked-account
// probes.
func fakeUpstream(t *testing.T, pages []graph.Page, linked map[string]graph.LinkedAccount) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("code") != "":
			_ = json.NewEncoder(w).Encode(graph.Token{AccessToken: "short-" + q.Get("code"), ExpiresIn: 3600})
		case q.Get("fb_exchange_token") != "":
			require.Equal(t, "fb_exchange_token", q.Get("grant_type"))
			_ = json.NewEncoder(w).Encode(graph.Token{AccessToken: "long-lived-token", ExpiresIn: 5184000})
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"missing code"}}`)
		}
	})

	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "long-lived-token", r.URL.Query().Get("access_token"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": pages})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pageID := strings.TrimPrefix(r.URL.Path, "/")
		if la, ok := linked[pageID]; ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"instagram_business_account": la})
			return
		}
		fmt.Fprint(w, `{}`)
	})

	return httptest.NewServer(mux)
}

func newFlowHarness(t *testing.T, upstream *httptest.Server) (*Orchestrator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	client := graph.NewClient(upstream.URL, "app-id", "app-secret", "https://broker.test/oauth/callback")
	registry := repository.NewTenantRegistryRepo(mem)
	flow := New(client,
		repository.NewTokenVault(mem),
		registry,
		repository.NewAccountIndexRepo(mem, registry),
		mem, nil)
	return flow, mem
}

func TestAuthorizeURLPersistsPendingState(t *testing.T) {
	ctx := context.Background()
	srv := fakeUpstream(t, nil, nil)
	defer srv.Close()
	flow, mem := newFlowHarness(t, srv)

	rawURL, err := flow.AuthorizeURL(ctx, "fmb")
	require.NoError(t, err)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	require.Equal(t, "app-id", u.Query().Get("client_id"))

	state := u.Query().Get("state")
	require.True(t, strings.HasSuffix(state, ":fmb"))

	keys, err := mem.List(ctx, store.KeyOAuthStatePrefix)
	require.NoError(t, err)
	require.Equal(t, []string{store.OAuthStateKey(state)}, keys)
}

func TestCallbackFullRun(t *testing.T) {
	ctx := context.Background()
	pages := []graph.Page{
		{ID: "p-1", Name: "First Page", AccessToken: "page-tok-1", Category: "Retail"},
		{ID: "p-2", Name: "Second Page", AccessToken: "page-tok-2", Category: "Food"},
	}
	linked := map[string]graph.LinkedAccount{
		"p-2": {ID: "ig-42", Username: "second_ig"},
	}
	srv := fakeUpstream(t, pages, linked)
	defer srv.Close()
	flow, mem := newFlowHarness(t, srv)

	authURL, err := flow.AuthorizeURL(ctx, "fmb")
	require.NoError(t, err)
	u, _ := url.Parse(authURL)
	state := u.Query().Get("state")

	res := flow.HandleCallback(ctx, "auth-code", state, "", "")
	require.True(t, res.OK, res.Message)
	require.Equal(t, "fmb", res.TenantAlias)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, 1, res.LinkedAccounts)

	// User token stored tenant-scoped with the long-lived value.
	vault := flow.Vault
	tok, err := vault.GetUserToken(ctx, "fmb")
	require.NoError(t, err)
	require.Equal(t, "long-lived-token", tok)

	// Page tokens stored globally; the linked account reuses its
	// page's token.
	pt, err := vault.GetPageToken(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, "page-tok-1", pt)
	lt, err := vault.GetLinkedToken(ctx, "ig-42")
	require.NoError(t, err)
	require.Equal(t, "page-tok-2", lt)

	// Index: 3 accounts, first page and the one linked account as
	// defaults.
	idx, err := flow.Accounts.Get(ctx, "fmb")
	require.NoError(t, err)
	require.Len(t, idx.Accounts, 3)
	require.Equal(t, "p-1", idx.DefaultPageID)
	require.Equal(t, "ig-42", idx.DefaultLinkedAccount)
	require.Equal(t, model.AccountTypeLinked, idx.Accounts[2].Type)
	require.Equal(t, "p-2", idx.Accounts[2].LinkedPageID)

	// Registry touched: one tenant, default fmb.
	reg, err := flow.Registry.Get(ctx)
	require.NoError(t, err)
	require.Len(t, reg.Tenants, 1)
	require.Equal(t, "fmb", reg.DefaultAlias)

	// Pending state consumed.
	keys, err := mem.List(ctx, store.KeyOAuthStatePrefix)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestCallbackSoftValidationWithoutPendingState(t *testing.T) {
	ctx := context.Background()
	srv := fakeUpstream(t, nil, nil)
	defer srv.Close()
	flow, _ := newFlowHarness(t, srv)

	// No stored record: the alias embedded after the first colon is
	// the fallback channel, even when it contains colons itself.
	res := flow.HandleCallback(ctx, "auth-code", "opaque-id:acme:eu", "", "")
	require.True(t, res.OK, res.Message)
	require.Equal(t, "acme:eu", res.TenantAlias)
}

func TestCallbackUpstreamDecline(t *testing.T) {
	ctx := context.Background()
	srv := fakeUpstream(t, nil, nil)
	defer srv.Close()
	flow, _ := newFlowHarness(t, srv)

	res := flow.HandleCallback(ctx, "", "s:fmb", "access_denied", "user said no")
	require.False(t, res.OK)
	require.Contains(t, res.Message, "access_denied")
	require.Contains(t, res.Message, "user said no")
}

func TestCallbackMissingCode(t *testing.T) {
	ctx := context.Background()
	srv := fakeUpstream(t, nil, nil)
	defer srv.Close()
	flow, _ := newFlowHarness(t, srv)

	res := flow.HandleCallback(ctx, "", "s:fmb", "", "")
	require.False(t, res.OK)
	require.Contains(t, res.Message, "authorization code")
}

func TestCallbackUpstreamErrorBecomesStructuredFailure(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"code expired"}}`)
	}))
	defer srv.Close()
	flow, _ := newFlowHarness(t, srv)

	res := flow.HandleCallback(ctx, "stale-code", "s:fmb", "", "")
	require.False(t, res.OK)
	require.Contains(t, res.Message, "code expired")
}

func TestCallbackProbeFailureDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	pages := []graph.Page{
		{ID: "p-err", Name: "Broken Probe", AccessToken: "tok-a"},
		{ID: "p-ok", Name: "Fine Page", AccessToken: "tok-b"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(graph.Token{AccessToken: "long-lived-token", ExpiresIn: 5184000})
	})
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": pages})
	})
	mux.HandleFunc("/p-err", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	})
	mux.HandleFunc("/p-ok", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"instagram_business_account": graph.LinkedAccount{ID: "ig-1", Username: "fine_ig"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	flow, _ := newFlowHarness(t, srv)

	res := flow.HandleCallback(ctx, "code", "s:fmb", "", "")
	require.True(t, res.OK, res.Message)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, 1, res.LinkedAccounts)

	// The page whose probe failed is still recorded, without a linked
	// account.
	idx, err := flow.Accounts.Get(ctx, "fmb")
	require.NoError(t, err)
	require.Len(t, idx.Accounts, 3)
	require.Equal(t, "p-err", idx.DefaultPageID)
	require.Equal(t, "ig-1", idx.DefaultLinkedAccount)
}
