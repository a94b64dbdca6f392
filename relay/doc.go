// Package relay assembles pitwall: one broadcast medium shared by the gRPC
// ingest boundary, the HTTP observer boundary and the optional Redis mirror.
//
//	r, err := relay.New(&app.Cfg, app.Logger)
//	if err != nil { ... }
//	if err := r.Register(app.Components); err != nil { ... }
//	return app.Run(ctx)
//
// Every boundary is a component.Component, so startup order, reverse-order
// shutdown and health aggregation come from the component registry.
package relay
