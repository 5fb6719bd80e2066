package commands

import (
	"context"
	"fmt"

	"github.com/mmynk/lifeboard/internal/models"
)

// EpisodesCmd groups the episode commands.
type EpisodesCmd struct {
	List   EpisodesListCmd   `cmd:"" help:"List the episodes of a universe with watch status."`
	Toggle EpisodesToggleCmd `cmd:"" help:"Flip the watched status of an episode."`
}

type EpisodesListCmd struct {
	Universe string `arg:"" help:"Universe id."`
}

func (c *EpisodesListCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	progress, err := client.Resources.Universes.Episodes(ctx, c.Universe)
	if err != nil {
		return err
	}
	w := table("ID\tSHOW\tEPISODE\tTITLE\tWATCHED")
	for _, ep := range progress.Episodes {
		watched := ""
		if ep.Watched {
			watched = "x"
		}
		fmt.Fprintf(w, "%s\t%s\tS%02dE%02d\t%s\t%s\n",
			ep.Episode.ID, ep.ShowTitle, ep.Episode.Season, ep.Episode.Number, orDash(ep.Episode.Title), watched)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d watched\n", progress.Watched, progress.Total)
	return nil
}

type EpisodesToggleCmd struct {
	Universe string `arg:"" help:"Universe id the episode belongs to."`
	Episode  string `arg:"" help:"Episode id."`
}

func (c *EpisodesToggleCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	progress, err := client.Resources.Universes.Episodes(ctx, c.Universe)
	if err != nil {
		return err
	}
	var current *models.UniverseEpisode
	for i := range progress.Episodes {
		if progress.Episodes[i].Episode.ID == c.Episode {
			current = &progress.Episodes[i]
			break
		}
	}
	if current == nil {
		return fmt.Errorf("episode %s is not part of universe %s", c.Episode, c.Universe)
	}

	status, err := client.Resources.EpisodeStatus.Toggle(ctx, c.Episode, current.Watched)
	if err != nil {
		return err
	}
	if status.Watched() {
		fmt.Println("Marked watched")
	} else {
		fmt.Println("Marked not watched")
	}
	return nil
}
