// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package sync turns newly appended message store records into NewMessage
events, at most once per record.

Key Components:

  - Manager: owns the cursor, serializes cycles and runs the trigger loop
  - Watcher: fsnotify on the chat database directory, feeding Manager.Notify
  - RecoverText: extracts text from archived attributed bodies
  - Correlator: matches outbound records to optimistic local sends
  - PathResolver: validates attachment paths and turns them into file:// URLs

Cycle:

 1. Load the cursor from the checkpoint store, or start at the store head
 2. Query records past the cursor in ascending sequence order
 3. Skip record ids already in the recency set, marking new ones first
 4. Recover text, re-fetch young empty records, resolve attachments
 5. Tag outbound records that match a pending correlation
 6. Publish records that have text or attachments
 7. Advance and persist the cursor after each chunk

Triggers:

File notifications are debounced, so a burst of WAL writes produces one
cycle. A poll ticker covers notifications that never arrive. Both paths and
manual TriggerSync calls share one mutex, so cycles never overlap and the
cursor never moves backwards.

Error Handling:

A store failure skips the rest of the cycle and leaves the cursor where it
was. Failures of a single record are logged and counted in
courier_sync_records_total and never stop the batch.

Usage Example:

	mgr, err := sync.NewManager(&cfg.Sync, sync.Dependencies{
	    Source:    chatDB,
	    Cursors:   checkpoints,
	    Publisher: bus,
	    Resolver:  resolver,
	    WatchPath: chatDB.Path(),
	    Logger:    logging.Logger(),
	})
	if err != nil {
	    return err
	}
	if err := mgr.Start(ctx); err != nil {
	    return err
	}
	defer mgr.Stop()
*/
package sync
