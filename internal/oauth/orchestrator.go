// Package oauth drives the multi-step authorization flow: issue the
// consent URL, take the redirect back, exchange the code through the
// short- and long-lived token steps, enumerate downstream accounts
// and persist everything for the tenant. Progress lives entirely in
// the durable store; the orchestrator itself is stateless between
// requests.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fanoutlabs/graph-broker/internal/graph"
	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/repository"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

// pendingStateTTL bounds how long a consent redirect may take before
// the CSRF record expires. An abandoned flow just leaves a record
// that ages out on its own.
const pendingStateTTL = 10 * time.Minute

// defaultScopes are the upstream permissions requested on every
// authorization run.
var defaultScopes = []string{
	"pages_show_list",
	"pages_read_engagement",
	"pages_manage_metadata",
	"pages_messaging",
	"instagram_basic",
	"business_management",
}

// pendingState is the record persisted while a consent redirect is in
// flight. It is the authoritative channel for the tenant alias; the
// alias embedded in the state token is only the fallback.
type pendingState struct {
	Alias     string    `json:"alias"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the structured outcome of a callback. The orchestrator
// never lets a failure escape as a panic or a bare error; handlers
// render Message directly.
type Result struct {
	OK             bool
	TenantAlias    string
	Pages          int
	LinkedAccounts int
	Message        string
}

// Orchestrator composes the vault, registry, accounts index and
// upstream client into the authorization state machine.
type Orchestrator struct {
	Graph    *graph.Client
	Vault    *repository.TokenVault
	Registry *repository.TenantRegistryRepo
	Accounts *repository.AccountIndexRepo
	Store    store.Store
	Archive  *repository.ArchiveRepo // optional, may be nil
	Now      func() time.Time
}

// New wires an orchestrator. archive may be nil.
func New(g *graph.Client, v *repository.TokenVault, reg *repository.TenantRegistryRepo,
	acc *repository.AccountIndexRepo, s store.Store, archive *repository.ArchiveRepo) *Orchestrator {
	return &Orchestrator{
		Graph: g, Vault: v, Registry: reg, Accounts: acc,
		Store: s, Archive: archive, Now: time.Now,
	}
}

// AuthorizeURL starts a run for the given tenant alias (empty resolves
// through the registry). It persists the pending-state record and
// returns the upstream consent URL. The state token is
// "<opaque>:<alias>"; the alias rides along because some redirect
// paths strip query parameters, but the stored record stays the
// authoritative channel.
func (o *Orchestrator) AuthorizeURL(ctx context.Context, alias string) (string, error) {
	alias, err := o.Registry.ResolveAlias(ctx, alias)
	if err != nil {
		return "", fmt.Errorf("resolve tenant: %w", err)
	}
	state := uuid.NewString() + ":" + alias
	rec, err := json.Marshal(pendingState{Alias: alias, CreatedAt: o.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := o.Store.Put(ctx, store.OAuthStateKey(state), rec, pendingStateTTL); err != nil {
		return "", fmt.Errorf("persist pending state: %w", err)
	}
	return o.Graph.AuthorizeURL(state, defaultScopes), nil
}

// HandleCallback runs the post-redirect half of the flow. Every
// failure becomes a Result with OK=false; nothing is rolled back
// because all writes are overwrites and retrying the whole flow is
// safe.
func (o *Orchestrator) HandleCallback(ctx context.Context, code, state, errCode, errDesc string) Result {
	if errCode != "" {
		return failure("", "authorization was declined upstream: %s (%s)", errCode, errDesc)
	}
	if code == "" {
		return failure("", "callback is missing the authorization code")
	}

	alias := o.resolveCallbackAlias(ctx, state)

	short, err := o.Graph.ExchangeCode(ctx, code)
	if err != nil {
		return failure(alias, "code exchange failed: %v", err)
	}
	long, err := o.Graph.ExchangeLongLived(ctx, short.AccessToken)
	if err != nil {
		return failure(alias, "long-lived token exchange failed: %v", err)
	}
	if err := o.Vault.StoreUserToken(ctx, alias, long.AccessToken, long.ExpiresIn); err != nil {
		return failure(alias, "storing the user token failed: %v", err)
	}

	pages, err := o.Graph.ListPages(ctx, long.AccessToken)
	if err != nil {
		return failure(alias, "page enumeration failed: %v", err)
	}

	index, linked := o.enumerateAccounts(ctx, pages)
	if err := o.Accounts.Put(ctx, alias, index); err != nil {
		return failure(alias, "storing the accounts index failed: %v", err)
	}
	if err := o.Registry.AddOrTouch(ctx, alias); err != nil {
		return failure(alias, "updating the tenant registry failed: %v", err)
	}

	if o.Archive != nil {
		if err := o.Archive.InsertConnection(ctx, alias, len(pages), linked, o.Now().UTC()); err != nil {
			log.Warn().Err(err).Str("tenant", alias).Msg("archiving the connection failed")
		}
	}

	log.Info().Str("tenant", alias).Int("pages", len(pages)).Int("linked", linked).
		Msg("authorization run completed")
	return Result{OK: true, TenantAlias: alias, Pages: len(pages), LinkedAccounts: linked}
}

// resolveCallbackAlias recovers the tenant alias for a returning
// redirect. The stored pending-state record wins; when it is missing
// or expired the flow continues on the alias embedded in the state
// token alone, skipping CSRF confirmation.
func (o *Orchestrator) resolveCallbackAlias(ctx context.Context, state string) string {
	embedded := ""
	if i := strings.Index(state, ":"); i >= 0 {
		// The alias may itself contain colons; everything after the
		// first one belongs to it.
		embedded = state[i+1:]
	}

	raw, err := o.Store.Get(ctx, store.OAuthStateKey(state))
	if err != nil {
		log.Warn().Str("embedded_alias", embedded).
			Msg("pending authorization state missing or expired, proceeding without CSRF confirmation")
		if embedded != "" {
			return embedded
		}
		return repository.LegacyAlias
	}
	_ = o.Store.Delete(ctx, store.OAuthStateKey(state))

	var rec pendingState
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Alias == "" {
		if embedded != "" {
			return embedded
		}
		return repository.LegacyAlias
	}
	return rec.Alias
}

// enumerateAccounts walks the pages strictly in order, storing each
// page token and probing for a linked account. A single probe failure
// records the page and moves on; it never aborts the batch. The first
// page and first linked account found become the index defaults.
func (o *Orchestrator) enumerateAccounts(ctx context.Context, pages []graph.Page) (model.AccountsIndex, int) {
	now := o.Now().UTC()
	var index model.AccountsIndex
	linked := 0
	for _, p := range pages {
		if err := o.Vault.StorePageToken(ctx, p.ID, p.AccessToken); err != nil {
			log.Error().Err(err).Str("page", p.ID).Msg("storing page token failed")
		}
		index.Accounts = append(index.Accounts, model.ConnectedAccount{
			ID:          p.ID,
			Name:        p.Name,
			Type:        model.AccountTypePage,
			Category:    p.Category,
			ConnectedAt: now,
		})
		if index.DefaultPageID == "" {
			index.DefaultPageID = p.ID
		}

		la, found, err := o.Graph.ProbeLinkedAccount(ctx, p.ID, p.AccessToken)
		if err != nil {
			log.Warn().Err(err).Str("page", p.ID).Msg("linked-account probe failed, page recorded without one")
			continue
		}
		if !found {
			continue
		}
		// The platform reuses the page's token for its linked account.
		if err := o.Vault.StoreLinkedToken(ctx, la.ID, p.AccessToken); err != nil {
			log.Error().Err(err).Str("account", la.ID).Msg("storing linked-account token failed")
		}
		index.Accounts = append(index.Accounts, model.ConnectedAccount{
			ID:           la.ID,
			Name:         la.Username,
			Type:         model.AccountTypeLinked,
			LinkedPageID: p.ID,
			ConnectedAt:  now,
		})
		if index.DefaultLinkedAccount == "" {
			index.DefaultLinkedAccount = la.ID
		}
		linked++
	}
	return index, linked
}

func failure(alias, format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	log.Error().Str("tenant", alias).Msg("authorization run failed: " + msg)
	return Result{OK: false, TenantAlias: alias, Message: msg}
}
