package core

import (
	"context"
	"fmt"

	"github.com/bayue48/pia-scrap/internal/api"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/readability"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// episodeFetcher is the slice of the API client the content loop needs.
type episodeFetcher interface {
	EpisodeTicket(ctx context.Context, episodeNo int) (map[string]interface{}, error)
	EpisodeContent(ctx context.Context, token string) (map[string]interface{}, error)
	FetchDirectContent(ctx context.Context, directURL string) (map[string]interface{}, error)
}

// FetchOutcome tallies one content-loop run.
type FetchOutcome struct {
	Contents []models.ChapterContent
	Fetched  int
	Skipped  int
	Failed   int
}

// FetchEpisodes resolves each listed episode to its readable body: ticket,
// token extraction, content fetch, markup cleanup. Failures are scoped to
// one episode; a chapter with no extractable body is omitted entirely. An
// episode whose ticket yields no token is attempted exactly once and
// skipped.
func FetchEpisodes(ctx context.Context, f episodeFetcher, episodes []api.EpisodeRow, showProgress bool) FetchOutcome {
	var out FetchOutcome

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(episodes),
			progressbar.OptionSetDescription("chapters"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, ep := range episodes {
		if err := ctx.Err(); err != nil {
			utils.Warnf("content fetch interrupted after %d chapters", out.Fetched)
			return out
		}
		content, err := fetchOneEpisode(ctx, f, ep)
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			out.Failed++
			utils.Warnf("episode %d skipped: %v", ep.EpisodeNo.Int(), err)
			continue
		}
		if content == nil {
			out.Skipped++
			continue
		}
		content.Index = len(out.Contents) + 1
		out.Contents = append(out.Contents, *content)
		out.Fetched++
	}
	return out
}

// fetchOneEpisode returns (nil, nil) for a soft skip: token not found or
// content gated.
func fetchOneEpisode(ctx context.Context, f episodeFetcher, ep api.EpisodeRow) (*models.ChapterContent, error) {
	epNo := ep.EpisodeNo.Int()

	ticket, err := f.EpisodeTicket(ctx, epNo)
	if err != nil {
		return nil, fmt.Errorf("ticket: %w", err)
	}

	token := api.ExtractContentToken(ticket)
	if !token.Found() {
		// soft outcome, attempted once and moved past
		utils.Infof("episode %d: no content token in ticket, skipping", epNo)
		return nil, nil
	}

	var payload map[string]interface{}
	if token.DirectURL != "" {
		payload, err = f.FetchDirectContent(ctx, token.DirectURL)
	} else {
		payload, err = f.EpisodeContent(ctx, token.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	raw := api.AssembleEpisodeHTML(payload)
	if raw == "" {
		utils.Infof("episode %d: empty or gated content, skipping", epNo)
		return nil, nil
	}

	return &models.ChapterContent{
		Title: ep.Title(),
		HTML:  readability.NormalizeEpisodeHTML(raw, api.BaseURL),
	}, nil
}
