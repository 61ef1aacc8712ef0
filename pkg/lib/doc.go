// Package lib provides a Go SDK for managing sbxhub sandboxes programmatically.
//
// This package allows applications to create, inspect, list and terminate
// sandboxes on any registered backend without shelling out to the sbxhub CLI.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sb, err := client.CreateSandbox(ctx, lib.SandboxSpec{
//	    Name:    "web",
//	    Backend: lib.BackendDocker,
//	    Image:   "nginx:alpine",
//	    Ports:   []int{80},
//	})
//
//	sb, err = client.SandboxStatus(ctx, "web")
//	fmt.Println(sb.Status, sb.ExposedURLs)
//
//	err = client.TerminateSandbox(ctx, "web")
//
// # Backends
//
// The client registers the [BackendLocal], [BackendDocker] and [BackendProcess]
// runtimes by default (see [Config.Backends]). [BackendRemote] has no runtime
// shipped, applications can plug their own with [Client.RegisterBackend].
// Operations on a sandbox whose backend is not registered fail with
// [ErrUnregisteredBackend] before anything is stored.
//
// # Errors
//
// Lifecycle operations return [*OperationError] values, their Outcome tells
// if nothing happened, the sandbox was marked as failed, or the backend state
// is unknown and the sandbox needs a [Client.Reconcile]. The error kinds can
// be checked with [errors.Is] against the exported sentinel errors.
package lib
