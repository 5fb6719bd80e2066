package models

import (
	"strings"
	"time"

	"github.com/mmynk/lifeboard/internal/apperr"
)

// Episode watch states.
const (
	StatusWatched    = "watched"
	StatusNotWatched = "not_watched"
)

// Universe is a franchise grouping related shows (e.g. a cinematic universe).
type Universe struct {
	Audit
	Scope
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UniverseDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (d UniverseDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return apperr.FieldInvalid("name", "universe name is required")
	}
	return nil
}

// Show is a series or movie inside a universe.
type Show struct {
	Audit
	UniverseID  string `json:"universe_id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	ReleaseYear int    `json:"release_year"`
	SortOrder   int    `json:"sort_order"`
}

type ShowDraft struct {
	UniverseID  string `json:"universe_id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	ReleaseYear int    `json:"release_year"`
	SortOrder   int    `json:"sort_order"`
}

func (d ShowDraft) Validate() error {
	if d.UniverseID == "" {
		return apperr.FieldInvalid("universe_id", "universe is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return apperr.FieldInvalid("title", "show title is required")
	}
	return nil
}

// Episode is one episode of a show. Movies have a single episode.
type Episode struct {
	Audit
	ShowID  string  `json:"show_id"`
	Season  int     `json:"season"`
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	AirDate *string `json:"air_date"`
}

type EpisodeDraft struct {
	ShowID  string  `json:"show_id"`
	Season  int     `json:"season"`
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	AirDate *string `json:"air_date"`
}

func (d EpisodeDraft) Validate() error {
	if d.ShowID == "" {
		return apperr.FieldInvalid("show_id", "show is required")
	}
	if d.Number <= 0 {
		return apperr.FieldInvalid("number", "episode number must be positive")
	}
	return nil
}

// EpisodeStatus is a user's watch state for one episode, keyed by
// (UserID, EpisodeID). Rows are created on first toggle and updated in place.
type EpisodeStatus struct {
	Audit
	UserID    string     `json:"user_id"`
	EpisodeID string     `json:"episode_id"`
	Status    string     `json:"status"`
	WatchedAt *time.Time `json:"watched_at"`
}

// Watched reports whether the status marks the episode as watched.
func (s EpisodeStatus) Watched() bool {
	return s.Status == StatusWatched
}

// UniverseEpisode is one row of the universe-episodes aggregate.
type UniverseEpisode struct {
	ShowID    string
	ShowTitle string
	Episode   Episode
	Watched   bool
	WatchedAt *time.Time
}

// ShowProgress counts watched episodes of one show.
type ShowProgress struct {
	ShowID  string
	Title   string
	Watched int
	Total   int
}

// UniverseProgress is the universe-episodes aggregate with its counters.
type UniverseProgress struct {
	UniverseID string
	Episodes   []UniverseEpisode
	Shows      []ShowProgress
	Watched    int
	Total      int
}
