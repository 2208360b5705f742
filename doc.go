// Package scrubgo verifies the integrity of large scientific instrument
// recordings and reclaims disk space by deleting files whose byte-identical
// copies are proven to exist elsewhere.
//
// Recordings are grouped into sessions, identified by a composite
// id/subject/date key embedded in their paths. Every file ever seen is
// registered in a session-partitioned checksum store (package store, with
// local-file, embedded-KV, and networked backends). The Resolver drives the
// reclamation pipeline per file: ensure its checksum is known, surface
// suspect copies, locate verified backups under the session's canonical
// roots, and only then unlink, after re-verifying checksum and size equality
// one final time.
//
// A minimal registration run:
//
//	st, err := jsonfile.New("/var/lib/scrubgo/db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	resolver, err := scrubgo.New(st)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	report, err := resolver.Walk(ctx, "/acq/incoming", func(o *scrubgo.WalkOptions) {
//		o.Recursive = true
//		o.Extensions = []string{".npx2"}
//	})
//
// Reclamation is opt-in per walk and never deletes a file without a
// verified, re-checked backup:
//
//	resolver, err := scrubgo.New(st,
//		scrubgo.WithLocator(scrubgo.StaticLocator{ArchiveRoot: "/archive"}),
//	)
//	...
//	report, err := resolver.Walk(ctx, "/acq/incoming", func(o *scrubgo.WalkOptions) {
//		o.Mode = scrubgo.Reclaim
//		o.MinSessionAge = 14 * 24 * time.Hour
//	})
package scrubgo
