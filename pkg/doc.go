// Package pkg provides the core libraries for appmap integration diagrams.
//
// # Overview
//
// Appmap draws the applications of an enterprise portfolio as node-link
// diagrams. Apps are grouped into streams; a stream diagram shows the
// stream's own apps inside one group node plus every app in another stream
// they integrate with. Node positions and styles are stored separately as a
// layout and merged onto the diagram, which is always rebuilt from the
// catalog.
//
//	catalog (streams, apps, integrations)
//	         ↓
//	    [diagram] build canonical graph
//	         ↓
//	    [layout] merge saved overlay
//	         ↓
//	    JSON / DOT / SVG / PDF / PNG
//
// # Packages
//
//   - [catalog]: records and the Repository data-access boundary
//   - [diagram]: graph building, layout merge and the diagram service
//   - [layout]: layout records, stores and app/edge cleanup
//   - [admin]: deletions that keep catalog and layouts consistent
//   - [config]: configuration loading and the stream allow-list
//   - [cache]: file and Redis caches placed in front of layout storage
//   - [storage/mongo]: MongoDB catalog and layout store
//   - [render] and [render/nodelink]: Graphviz export
//   - [observability]: hooks, with a Prometheus implementation in [observability/prom]
//   - [errors]: coded errors shared by every layer
//
// # Quick Start
//
//	m, _ := catalog.LoadFile("catalog.toml")
//	layouts := layout.NewLayouts(layout.NewMemoryStore(), layout.CatalogResolver(m), nil)
//	svc := diagram.NewService(m, layouts, config.NewAllowList(config.StreamEntry{Name: "sp"}), nil)
//
//	d, err := svc.Stream(ctx, "sp", diagram.BuildOptions{})
//
// [catalog]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/catalog
// [diagram]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/diagram
// [layout]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/layout
// [admin]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/admin
// [config]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/config
// [cache]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/cache
// [storage/mongo]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/storage/mongo
// [render]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/render
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/render/nodelink
// [observability]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/observability
// [observability/prom]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/observability/prom
// [errors]: https://pkg.go.dev/github.com/matzehuels/appmap/pkg/errors
package pkg
