package app

import (
	"context"

	"mindbridge/internal/events"
	"mindbridge/pkg/types"
)

// The methods below adapt App to the HTTP layer.

func (a *App) Models() types.ModelsResponse {
	return types.ModelsResponse{Models: a.Catalog.List(), Searching: a.Catalog.Searching()}
}

// RefreshModels runs (or joins) a catalog search and returns the merged list.
func (a *App) RefreshModels(ctx context.Context) (types.ModelsResponse, error) {
	list, err := a.Catalog.Refresh(ctx)
	if err != nil {
		return types.ModelsResponse{}, err
	}
	return types.ModelsResponse{Models: list, Searching: a.Catalog.Searching()}, nil
}

// BeginDownload starts a background download and returns its first snapshot.
func (a *App) BeginDownload(ctx context.Context, id string) (types.DownloadSnapshot, error) {
	job, err := a.StartDownload(ctx, id)
	if err != nil {
		return types.DownloadSnapshot{}, err
	}
	return job.Snapshot(), nil
}

func (a *App) DownloadState() types.DownloadSnapshot { return a.Download.Last() }

// CancelDownload stops the active download; id narrows it to one variant.
func (a *App) CancelDownload(id string) error { return a.Download.Cancel(id) }

func (a *App) SessionState() types.SessionSnapshot { return a.Session.Snapshot() }

func (a *App) UnloadModel() error { return a.Session.Unload() }

func (a *App) Transcript() []types.ChatMessage { return a.Chat.Transcript() }

// Send runs one chat turn. Failures come back as an assistant notice.
func (a *App) Send(ctx context.Context, text string) types.ChatResponse {
	ex := a.Chat.Append(ctx, text)
	return types.ChatResponse{User: ex.User, Assistant: ex.Assistant, Failed: ex.Failed}
}

// ClearChat resets the transcript and returns what remains.
func (a *App) ClearChat() []types.ChatMessage {
	a.Chat.Clear()
	return a.Chat.Transcript()
}

func (a *App) Subscribe(buffer int) (<-chan events.Event, func()) {
	return a.Hub.Subscribe(buffer)
}
