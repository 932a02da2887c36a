// Package pagination drives incremental loading of a paginated feed.
//
// A Controller owns the visible item list, the current page, the "more
// available" flag and a map from item id to resolved thumbnail URL. It reads
// page 1 through the response cache, fetches further pages from the gateway,
// and resolves each new item's auxiliary resource concurrently.
//
// Example usage:
//
//	ctrl, err := pagination.NewController(gateway, cacheManager, pagination.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	if err := ctrl.LoadFirstPage(ctx, feed.NoFilter(), false); err != nil {
//		// LastError is set; previously loaded items are still in the snapshot
//	}
//	_ = ctrl.LoadMore(ctx)
//
//	for range ctrl.Updates() {
//		render(ctrl.Snapshot())
//	}
//
// The controller:
//   - Allows one page fetch at a time (LoadFirstPage/LoadMore return
//     ErrLoadInProgress otherwise)
//   - Rolls the page number back when LoadMore fails, so a retry requests the
//     same page
//   - Keeps previously loaded items visible when a refresh fails
//   - Tags every load and resolution batch with a generation; SwitchFilter
//     starts a new generation and results of older ones are discarded
//   - Resolves thumbnails with a bounded worker pool; one item's failure never
//     affects its siblings
package pagination
