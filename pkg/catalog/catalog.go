// Package catalog defines the enterprise application catalog records and the
// data-access contract the diagram subsystem reads them through.
//
// # Records
//
//   - [Stream]: organizational grouping of apps, the partition diagrams are scoped by
//   - [App]: one application, owned by exactly one stream
//   - [Integration]: a typed, one- or two-way link between two apps
//   - [ConnectionType]: styling/categorization for integrations (name + color)
//   - [Contract]: commercial records attached to apps; never part of diagrams
//
// # Data Access
//
// [Repository] is the entity data-access boundary. [Memory] is the in-process
// implementation used by the CLI, tests and the file backend; the MongoDB
// implementation lives in pkg/storage/mongo. Implementations return records
// with [App.StreamName] resolved and report absent records with
// errors.ErrCodeNotFound.
package catalog

import (
	"slices"
	"strconv"

	"github.com/matzehuels/appmap/pkg/errors"
)

// =============================================================================
// Stream
// =============================================================================

// Stream is an organizational grouping of apps.
type Stream struct {
	ID          int64  `json:"id" bson:"_id" toml:"id"`
	Name        string `json:"name" bson:"name" toml:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty" toml:"description"`
	Apps        []App  `json:"apps,omitempty" bson:"-" toml:"-"`
}

// AppIDs returns the ids of the stream's apps in stream order.
func (s *Stream) AppIDs() []int64 {
	ids := make([]int64, len(s.Apps))
	for i, a := range s.Apps {
		ids[i] = a.ID
	}
	return ids
}

// =============================================================================
// App
// =============================================================================

// AppType classifies how an app is sourced.
type AppType string

const (
	AppTypeInHouse   AppType = "in_house"
	AppTypeOutsource AppType = "outsource"
	AppTypeCOTS      AppType = "cots"
)

// Tier is an app's business criticality.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// App is one application in the catalog.
type App struct {
	ID           int64           `json:"id" bson:"_id" toml:"id"`
	Name         string          `json:"name" bson:"name" toml:"name"`
	Description  string          `json:"description,omitempty" bson:"description,omitempty" toml:"description"`
	StreamID     int64           `json:"stream_id" bson:"stream_id" toml:"stream_id"`
	StreamName   string          `json:"stream_name,omitempty" bson:"-" toml:"-"`
	Type         AppType         `json:"app_type,omitempty" bson:"app_type,omitempty" toml:"app_type"`
	Tier         Tier            `json:"tier,omitempty" bson:"tier,omitempty" toml:"tier"`
	Scope        string          `json:"lingkup,omitempty" bson:"lingkup,omitempty" toml:"lingkup"`
	IsModule     bool            `json:"is_module" bson:"is_module" toml:"is_module"`
	Technologies []TechComponent `json:"technologies,omitempty" bson:"technologies,omitempty" toml:"technologies"`
	Functions    []string        `json:"functions,omitempty" bson:"functions,omitempty" toml:"functions"`
}

// NodeID is the diagram node id of the app: its numeric id in string form.
func (a *App) NodeID() string {
	return NodeID(a.ID)
}

// NodeID formats an app id as a diagram node id.
func NodeID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// TechStack groups the app's technology components by category.
func (a *App) TechStack() TechStack {
	return GroupTechnologies(a.Technologies)
}

// Validate checks the fields every stored app must carry.
func (a *App) Validate() error {
	if a.Name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "app name is required")
	}
	if a.StreamID <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "app %q must belong to a stream", a.Name)
	}
	switch a.Type {
	case "", AppTypeInHouse, AppTypeOutsource, AppTypeCOTS:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown app type: %q", a.Type)
	}
	switch a.Tier {
	case "", TierCritical, TierHigh, TierMedium, TierLow:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown tier: %q", a.Tier)
	}
	for _, t := range a.Technologies {
		if !t.Category.Valid() {
			return errors.New(errors.ErrCodeInvalidInput, "unknown technology category: %q", t.Category)
		}
	}
	return nil
}

// =============================================================================
// Integration
// =============================================================================

// Direction tells whether data flows one way or both ways.
type Direction string

const (
	DirectionOneWay   Direction = "one_way"
	DirectionBothWays Direction = "both_ways"
)

// Integration links a source app to a target app.
type Integration struct {
	ID               int64     `json:"id" bson:"_id" toml:"id"`
	SourceAppID      int64     `json:"source_app_id" bson:"source_app_id" toml:"source_app_id"`
	TargetAppID      int64     `json:"target_app_id" bson:"target_app_id" toml:"target_app_id"`
	ConnectionTypeID *int64    `json:"connection_type_id,omitempty" bson:"connection_type_id,omitempty" toml:"connection_type_id"`
	Inbound          string    `json:"inbound,omitempty" bson:"inbound,omitempty" toml:"inbound"`
	Outbound         string    `json:"outbound,omitempty" bson:"outbound,omitempty" toml:"outbound"`
	Endpoint         string    `json:"endpoint,omitempty" bson:"endpoint,omitempty" toml:"endpoint"`
	Direction        Direction `json:"direction" bson:"direction" toml:"direction"`
}

// Validate enforces source != target and a known direction.
// An empty direction is accepted and treated as one_way.
func (i *Integration) Validate() error {
	if i.SourceAppID <= 0 || i.TargetAppID <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "integration needs a source and a target app")
	}
	if i.SourceAppID == i.TargetAppID {
		return errors.New(errors.ErrCodeInvalidInput, "integration source and target must differ (app %d)", i.SourceAppID)
	}
	switch i.Direction {
	case "", DirectionOneWay, DirectionBothWays:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown direction: %q", i.Direction)
	}
	return nil
}

// Touches reports whether the integration has appID as an endpoint.
func (i *Integration) Touches(appID int64) bool {
	return i.SourceAppID == appID || i.TargetAppID == appID
}

// Other returns the endpoint opposite appID.
func (i *Integration) Other(appID int64) int64 {
	if i.SourceAppID == appID {
		return i.TargetAppID
	}
	return i.SourceAppID
}

// EdgeID is the diagram edge id the integration produces: "{source}-{target}".
func (i *Integration) EdgeID() string {
	return NodeID(i.SourceAppID) + "-" + NodeID(i.TargetAppID)
}

// =============================================================================
// ConnectionType
// =============================================================================

// ConnectionType categorizes and colors integrations.
type ConnectionType struct {
	ID          int64  `json:"id" bson:"_id" toml:"id"`
	Name        string `json:"name" bson:"name" toml:"name"`
	Color       string `json:"color" bson:"color" toml:"color"`
	Description string `json:"description,omitempty" bson:"description,omitempty" toml:"description"`
}

// Validate checks the name and hex color.
func (c *ConnectionType) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "connection type name is required")
	}
	return errors.ValidateColor(c.Color)
}

// =============================================================================
// Helpers
// =============================================================================

// SortApps orders apps by name, then id.
func SortApps(apps []App) {
	slices.SortFunc(apps, func(a, b App) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
