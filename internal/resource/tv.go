package resource

import (
	"context"
	"sort"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/querycache"
	"github.com/mmynk/lifeboard/internal/storage"
)

// EpisodeStatusConflict is the composite key watch status upserts on.
var EpisodeStatusConflict = []string{storage.ColUserID, "episode_id"}

// Universes is the universe hook.
type Universes struct {
	*Collection[models.Universe, models.UniverseDraft]
}

// Episodes returns the universe-episodes aggregate: every episode of every
// show in the universe, in watch order, with the caller's watch status and
// per-show counters.
func (u *Universes) Episodes(ctx context.Context, universeID string) (*models.UniverseProgress, error) {
	session, err := u.deps.session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &models.UniverseProgress{UniverseID: universeID}, nil
	}

	key := querycache.Key{
		Kind:     KindUniverseEpisodes,
		UserID:   session.UserID,
		TenantID: u.deps.Tenancy.Current().ID(),
		Variant:  universeID,
	}
	return querycache.Fetch(ctx, u.deps.Cache, key, func(ctx context.Context) (*models.UniverseProgress, error) {
		return u.loadEpisodes(ctx, universeID, session.UserID)
	})
}

func (u *Universes) loadEpisodes(ctx context.Context, universeID, userID string) (*models.UniverseProgress, error) {
	b := u.deps.Backend
	showRows, err := b.Select(ctx, backend.Query{
		Table:   storage.TableShows,
		Filters: []backend.Filter{backend.Eq("universe_id", universeID)},
		Order:   showSpec.Order,
	})
	if err != nil {
		return nil, err
	}
	shows, err := backend.DecodeRows[models.Show](showRows)
	if err != nil {
		return nil, err
	}

	progress := &models.UniverseProgress{UniverseID: universeID, Episodes: []models.UniverseEpisode{}}
	if len(shows) == 0 {
		return progress, nil
	}

	showIDs := make([]string, len(shows))
	for i, s := range shows {
		showIDs[i] = s.ID
	}
	episodeRows, err := b.Select(ctx, backend.Query{
		Table:   storage.TableEpisodes,
		Filters: []backend.Filter{backend.In("show_id", showIDs...)},
		Order:   episodeSpec.Order,
	})
	if err != nil {
		return nil, err
	}
	episodes, err := backend.DecodeRows[models.Episode](episodeRows)
	if err != nil {
		return nil, err
	}

	statusByEpisode := make(map[string]models.EpisodeStatus)
	if len(episodes) > 0 {
		episodeIDs := make([]string, len(episodes))
		for i, e := range episodes {
			episodeIDs[i] = e.ID
		}
		statusRows, err := b.Select(ctx, backend.Query{
			Table: storage.TableEpisodeStatus,
			Filters: []backend.Filter{
				backend.Eq(storage.ColUserID, userID),
				backend.In("episode_id", episodeIDs...),
			},
		})
		if err != nil {
			return nil, err
		}
		statuses, err := backend.DecodeRows[models.EpisodeStatus](statusRows)
		if err != nil {
			return nil, err
		}
		for _, s := range statuses {
			statusByEpisode[s.EpisodeID] = s
		}
	}

	byShow := make(map[string][]models.Episode, len(shows))
	for _, e := range episodes {
		byShow[e.ShowID] = append(byShow[e.ShowID], e)
	}

	for _, show := range shows {
		eps := byShow[show.ID]
		sort.SliceStable(eps, func(i, j int) bool {
			if eps[i].Season != eps[j].Season {
				return eps[i].Season < eps[j].Season
			}
			return eps[i].Number < eps[j].Number
		})

		sp := models.ShowProgress{ShowID: show.ID, Title: show.Title, Total: len(eps)}
		for _, e := range eps {
			status, ok := statusByEpisode[e.ID]
			watched := ok && status.Watched()
			item := models.UniverseEpisode{ShowID: show.ID, ShowTitle: show.Title, Episode: e, Watched: watched}
			if watched {
				item.WatchedAt = status.WatchedAt
				sp.Watched++
			}
			progress.Episodes = append(progress.Episodes, item)
		}
		progress.Shows = append(progress.Shows, sp)
		progress.Watched += sp.Watched
		progress.Total += sp.Total
	}
	return progress, nil
}

// Shows is the show hook. Shows belong to a universe rather than a tenancy.
type Shows struct {
	*Collection[models.Show, models.ShowDraft]
}

// ListByUniverse returns the shows of one universe in watch order.
func (s *Shows) ListByUniverse(ctx context.Context, universeID string) ([]models.Show, error) {
	return s.query(ctx, "universe="+universeID, []backend.Filter{backend.Eq("universe_id", universeID)}, 0, 0)
}

// Episodes is the episode hook.
type Episodes struct {
	*Collection[models.Episode, models.EpisodeDraft]
}

// ListByShow returns the episodes of one show by season and number.
func (e *Episodes) ListByShow(ctx context.Context, showID string) ([]models.Episode, error) {
	return e.query(ctx, "show="+showID, []backend.Filter{backend.Eq("show_id", showID)}, 0, 0)
}

// EpisodeStatuses toggles the caller's watch status of episodes.
type EpisodeStatuses struct {
	deps *Deps
}

// Toggle flips an episode from watched to unwatched or back. Watching stamps
// the current time; unwatching clears it. The write is a single upsert on
// (user_id, episode_id), so concurrent toggles never create duplicates.
func (e *EpisodeStatuses) Toggle(ctx context.Context, episodeID string, watched bool) (*models.EpisodeStatus, error) {
	const title = "Failed to update episode status"
	if episodeID == "" {
		return nil, apperr.FieldInvalid("episode_id", "episode is required")
	}
	session, err := e.deps.session(ctx)
	if err != nil {
		return nil, e.deps.failed(title, err)
	}
	if session == nil {
		return nil, apperr.Validation("you must be signed in to track episodes")
	}

	row := backend.Row{
		storage.ColUserID: session.UserID,
		"episode_id":      episodeID,
		"status":          models.StatusNotWatched,
		"watched_at":      nil,
	}
	if !watched {
		row["status"] = models.StatusWatched
		row["watched_at"] = storage.FormatTime(e.deps.Now())
	}

	stored, err := e.deps.Backend.Upsert(ctx, storage.TableEpisodeStatus, row, EpisodeStatusConflict)
	if err != nil {
		return nil, e.deps.failed(title, err)
	}
	out, err := backend.DecodeRow[models.EpisodeStatus](stored)
	if err != nil {
		return nil, e.deps.failed(title, err)
	}
	e.deps.Cache.Invalidate(KindEpisodeStatus)
	return out, nil
}

var universeSpec = Spec{Kind: KindUniverses, Table: storage.TableUniverses, Noun: "universe", Partitioned: true}

var showSpec = Spec{
	Kind:  KindShows,
	Table: storage.TableShows,
	Noun:  "show",
	Order: []backend.Order{backend.Asc("sort_order"), backend.Asc("release_year"), backend.Asc("title")},
}

var episodeSpec = Spec{
	Kind:  KindEpisodes,
	Table: storage.TableEpisodes,
	Noun:  "episode",
	Order: []backend.Order{backend.Asc("season"), backend.Asc("number")},
}
