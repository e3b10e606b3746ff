// Package download turns batches of (URL, fallback URL, destination) tasks
// into files on disk.
//
// # Manager
//
// The Manager drains its queue in one Run or Execute call:
//
//  1. Admit at most Options.Concurrency tasks at a time
//  2. Fetch the primary URL through the Fetcher (skip if the file exists)
//  3. On HTTP 404, fetch the fallback URL instead, if the task has one
//  4. Record the Outcome, notify the progress Observer and the callback
//  5. Optionally pause the slot for Options.SleepInterval
//
// # Basic Usage
//
//	fetcher := download.NewHTTPFetcher(client, policy, nil)
//	manager, err := download.NewManager(fetcher, download.Options{Concurrency: 8})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	manager.AddTasks(tasks...)
//	ok := manager.Execute(ctx, func(task download.Task, success bool) {
//	    fmt.Println(task.Destination, success)
//	})
//
// # Failures
//
// A failed task never aborts its siblings. Each failure is classified with
// an ErrorKind: network errors (already retried by the Fetcher), HTTP status
// errors, filesystem errors and cancellation.
//
// # Cancellation
//
// Cancelling the context stops admission of new work. Tasks that had not
// started are reported as KindCancelled failures; tasks in flight stop at
// their next network read, backoff wait or sleep. Files are written
// atomically, so nothing half-written is left at a destination.
package download
