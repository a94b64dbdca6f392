// Package bootstrap runs a process made of components: it validates config,
// initializes logging, starts components in order, runs hooks, prints a
// startup summary and shuts everything down on SIGINT/SIGTERM, context
// cancellation or a fatal component failure.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(grpcServer)
//	app.RegisterComponent(httpServer)
//	err = app.Run(ctx)
package bootstrap
