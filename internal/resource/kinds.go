package resource

import (
	"log/slog"
	"time"

	"github.com/mmynk/lifeboard/internal/querycache"
	"github.com/mmynk/lifeboard/internal/telemetry"
)

// Cached resource kinds.
const (
	KindWallets          querycache.Kind = "wallets"
	KindCategories       querycache.Kind = "categories"
	KindTransactions     querycache.Kind = "transactions"
	KindBudgets          querycache.Kind = "budgets"
	KindLoans            querycache.Kind = "loans"
	KindUniverses        querycache.Kind = "universes"
	KindShows            querycache.Kind = "shows"
	KindEpisodes         querycache.Kind = "episodes"
	KindEpisodeStatus    querycache.Kind = "episode-status"
	KindUniverseEpisodes querycache.Kind = "universe-episodes"
	KindOrganizations    querycache.Kind = "organizations"
	KindRoles            querycache.Kind = "roles"
)

// Graph is the invalidation graph of every resource kind. Wallet balances
// are derived from transactions, so transaction writes also invalidate
// wallets. The universe-episodes aggregate is built from shows, episodes
// and the user's watch status.
var Graph = querycache.MustGraph(
	[]querycache.Kind{
		KindWallets, KindCategories, KindTransactions, KindBudgets, KindLoans,
		KindUniverses, KindShows, KindEpisodes, KindEpisodeStatus,
		KindUniverseEpisodes, KindOrganizations, KindRoles,
	},
	map[querycache.Kind][]querycache.Kind{
		KindTransactions:     {KindTransactions, KindWallets},
		KindWallets:          {KindWallets},
		KindCategories:       {KindCategories},
		KindBudgets:          {KindBudgets},
		KindLoans:            {KindLoans},
		KindUniverses:        {KindUniverses},
		KindOrganizations:    {KindOrganizations},
		KindShows:            {KindShows, KindUniverseEpisodes},
		KindEpisodes:         {KindEpisodes, KindUniverseEpisodes},
		KindEpisodeStatus:    {KindEpisodeStatus, KindUniverseEpisodes},
		KindUniverseEpisodes: {KindUniverseEpisodes},
		KindRoles:            {KindRoles},
	},
)

// Policies are the per-kind cache policies. Roles are security sensitive
// and always refetched.
var Policies = map[querycache.Kind]querycache.Policy{
	KindRoles: {NoCache: true},
}

// DefaultStaleTime is how long collections are served from cache before a
// read refetches them.
const DefaultStaleTime = 5 * time.Minute

// NewCache returns a query cache over Graph and Policies.
func NewCache(metrics *telemetry.CacheMetrics, logger *slog.Logger) (*querycache.Cache, error) {
	return querycache.New(querycache.Options{
		Graph:            Graph,
		DefaultStaleTime: DefaultStaleTime,
		Policies:         Policies,
		Metrics:          metrics,
		Logger:           logger,
	})
}
