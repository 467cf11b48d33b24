// Package admin performs catalog deletions together with the layout cleanup
// they require.
//
// Every delete runs the catalog mutation first and the layout cleanup second,
// synchronously, and reports success only after both finished. Deleting an
// app is retry-safe: if cleanup fails, calling DeleteApp again finishes it.
//
//	c := admin.New(repo, layouts, logger)
//	changed, err := c.DeleteApp(ctx, 5)
//
// Deletes of the same app are serialized. Readers may run concurrently: the
// diagram merge is driven by the catalog, so a layout entry that is still
// being pruned is never rendered once its app is gone.
package admin

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/errors"
	"github.com/matzehuels/appmap/pkg/layout"
)

// Coordinator runs deletes and their layout cleanup.
type Coordinator struct {
	Catalog catalog.Repository
	Layouts *layout.Layouts
	Logger  *log.Logger

	locks *keyedMutex
}

// New creates a coordinator. A nil logger uses log.Default().
func New(repo catalog.Repository, layouts *layout.Layouts, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		Catalog: repo,
		Layouts: layouts,
		Logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// =============================================================================
// Apps and Streams
// =============================================================================

// DeleteApp removes an app, its integrations and its contract links, then
// removes the app from every stored layout. It returns the number of layouts
// rewritten or deleted.
func (c *Coordinator) DeleteApp(ctx context.Context, id int64) (int, error) {
	unlock := c.locks.lock(id)
	defer unlock()
	return c.deleteApp(ctx, id)
}

func (c *Coordinator) deleteApp(ctx context.Context, id int64) (int, error) {
	start := time.Now()
	// A missing app may be a retry after a failed cleanup, so the cleanup
	// still runs; NOT_FOUND is reported only when it found nothing to do.
	missing := c.Catalog.DeleteApp(ctx, id)
	if missing != nil && !errors.Is(missing, errors.ErrCodeNotFound) {
		return 0, missing
	}
	changed, err := c.Layouts.DeleteAppReferences(ctx, id)
	if err != nil {
		c.Logger.Error("layout cleanup failed", "app", id, "err", err)
		return changed, err
	}
	if missing != nil {
		if changed == 0 {
			return 0, missing
		}
		c.Logger.Info("finished cleanup of deleted app", "app", id, "layouts", changed)
		return changed, nil
	}
	c.Logger.Info("deleted app", "app", id, "layouts", changed, "took", time.Since(start).Round(time.Millisecond))
	return changed, nil
}

// DeleteStream removes a stream with all of its apps, then its own layout.
// Apps are deleted one by one with full cleanup, so a failure part way
// leaves every already-deleted app cleaned.
func (c *Coordinator) DeleteStream(ctx context.Context, name string) (int, error) {
	if err := errors.ValidateStreamName(name); err != nil {
		return 0, err
	}
	stream, err := c.Catalog.StreamByName(ctx, name)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, id := range stream.AppIDs() {
		n, err := c.DeleteApp(ctx, id)
		total += n
		if err != nil {
			return total, errors.Wrap(errors.GetCode(err), err, "delete app %d of stream %q", id, name)
		}
	}

	if err := c.Catalog.DeleteStream(ctx, stream.ID); err != nil {
		return total, err
	}
	if err := c.Layouts.DeleteStream(ctx, stream.ID, stream.Name); err != nil {
		return total, err
	}
	c.Logger.Info("deleted stream", "stream", name, "apps", len(stream.Apps), "layouts", total)
	return total, nil
}

// =============================================================================
// Integrations and Connection Types
// =============================================================================

// DeleteIntegration removes an integration. Its edge id is dropped from
// stored layouts unless another integration on the same app pair still
// produces it.
func (c *Coordinator) DeleteIntegration(ctx context.Context, id int64) (int, error) {
	i, err := c.Catalog.Integration(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := c.Catalog.DeleteIntegration(ctx, id); err != nil {
		return 0, err
	}

	edgeID := i.EdgeID()
	remaining, err := c.Catalog.IntegrationsTouching(ctx, []int64{i.SourceAppID})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "check remaining integrations for edge %s", edgeID)
	}
	for _, r := range remaining {
		if r.EdgeID() == edgeID {
			c.Logger.Debug("edge still produced, keeping layouts", "edge", edgeID, "integration", r.ID)
			return 0, nil
		}
	}

	changed, err := c.Layouts.DeleteEdge(ctx, edgeID)
	if err != nil {
		return changed, err
	}
	c.Logger.Info("deleted integration", "integration", id, "edge", edgeID, "layouts", changed)
	return changed, nil
}

// DeleteConnectionType removes a connection type. It fails with CONFLICT
// while any integration still uses the type; layouts are unaffected.
func (c *Coordinator) DeleteConnectionType(ctx context.Context, id int64) error {
	if err := c.Catalog.DeleteConnectionType(ctx, id); err != nil {
		return err
	}
	c.Logger.Info("deleted connection type", "id", id)
	return nil
}
