package session

import (
	"go.uber.org/zap"

	"github.com/hyperjump/seek/internal/models"
)

// Observer receives session notifications. Methods are called on the session goroutine and
// must not call back into the session synchronously.
type Observer interface {
	// ConfirmationRequired is called when a query has terms shorter than the minimum length.
	// The search waits for Confirm.
	ConfirmationRequired(query models.Query, short []string)
	// SearchStarted is called after the executor accepted the search.
	SearchStarted(query models.Query, directory string)
	// Progress reports the running total of accumulated matches.
	Progress(total int)
	// DismissProgress hides progress. Errors are logged and ignored.
	DismissProgress() error
	// EmptyResults is called when a search or restore ends with no results.
	EmptyResults()
	// ResultsRendered is called with the ranked results.
	ResultsRendered(results []*models.SearchResult)
	// Notify reports a failure the user should see.
	Notify(err error)
}

// NopObserver ignores all notifications. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) ConfirmationRequired(models.Query, []string) {}
func (NopObserver) SearchStarted(models.Query, string)          {}
func (NopObserver) Progress(int)                                {}
func (NopObserver) DismissProgress() error                      { return nil }
func (NopObserver) EmptyResults()                               {}
func (NopObserver) ResultsRendered([]*models.SearchResult)      {}
func (NopObserver) Notify(error)                                {}

// LogObserver logs notifications. The server uses it for sessions nobody watches live.
type LogObserver struct {
	NopObserver
	ID     string
	Logger *zap.Logger
}

func (o LogObserver) ConfirmationRequired(q models.Query, short []string) {
	o.Logger.Info("confirmation required", zap.String("session", o.ID), zap.String("query", q.String()), zap.Strings("short_terms", short))
}

func (o LogObserver) SearchStarted(q models.Query, directory string) {
	o.Logger.Info("search started", zap.String("session", o.ID), zap.String("query", q.String()), zap.String("directory", directory))
}

func (o LogObserver) EmptyResults() {
	o.Logger.Info("search finished with no results", zap.String("session", o.ID))
}

func (o LogObserver) ResultsRendered(results []*models.SearchResult) {
	o.Logger.Info("search results rendered", zap.String("session", o.ID), zap.Int("count", len(results)))
}

func (o LogObserver) Notify(err error) {
	o.Logger.Warn("search failed", zap.String("session", o.ID), zap.Error(err))
}
