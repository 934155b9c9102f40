// Package pager is the task and address-space manager of a user-space pager
// for a capability microkernel. It boots one task per boot image, lays out
// and maps each task's regions, resolves task addresses to resident pages,
// and serves the filesystem coordinator's task table query.
//
// The Service facade runs against in-process simulations of the kernel,
// physical memory and resource pools:
//
//	srv, _ := pager.New(pager.WithConfig(cfg))
//	if err := srv.Boot(ctx); err != nil {
//		// *spawner.FatalError: terminate
//	}
//	_ = srv.Deliver(ctx, coordinator, ipc.TagTaskData)
//	_ = srv.Serve(ctx, 1)
package pager
