// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package supervisor provides process supervision for Shelfwise using suture v4.

Long-running services are grouped into three layers so a failure in one
does not take down the others:

	RootSupervisor ("shelfwise")
	├── DataSupervisor ("data-layer")
	│   └── ImportService (one-shot CSV import, if import.enabled)
	├── RecommendSupervisor ("recommend-layer")
	│   └── RecommendService (startup warmup, scheduled and debounced retrains)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (service start, panic, backoff) are logged through
sutureslog, fed by the zerolog-backed slog handler from the logging
package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRecommendService(services.NewRecommendService(engine, svcCfg, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Service wrappers live in the services subpackage.
*/
package supervisor
