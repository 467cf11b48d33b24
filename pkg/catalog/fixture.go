package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Fixture is the on-disk catalog document read by [LoadFile].
//
//	[[streams]]
//	id = 1
//	name = "sp"
//
//	[[apps]]
//	id = 1
//	name = "Billing"
//	stream_id = 1
//
//	[[connection_types]]
//	id = 1
//	name = "sftp"
//	color = "#002ac0"
//
//	[[integrations]]
//	source_app_id = 3
//	target_app_id = 1
//	connection_type_id = 1
//	direction = "one_way"
type Fixture struct {
	Streams         []Stream         `json:"streams" toml:"streams"`
	Apps            []App            `json:"apps" toml:"apps"`
	ConnectionTypes []ConnectionType `json:"connection_types" toml:"connection_types"`
	Integrations    []Integration    `json:"integrations" toml:"integrations"`
	Contracts       []Contract       `json:"contracts" toml:"contracts"`
}

// ReadFixture parses a TOML or JSON fixture, chosen by extension.
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var fx Fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &fx)
	default:
		_, err = toml.Decode(string(data), &fx)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &fx, nil
}

// LoadFile reads a fixture into a new [Memory].
func LoadFile(path string) (*Memory, error) {
	fx, err := ReadFixture(path)
	if err != nil {
		return nil, err
	}
	m := NewMemory()
	if err := fx.Apply(context.Background(), m); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return m, nil
}

// Apply saves every fixture record into w in dependency order.
func (fx *Fixture) Apply(ctx context.Context, w Writer) error {
	for i := range fx.Streams {
		if err := w.SaveStream(ctx, &fx.Streams[i]); err != nil {
			return fmt.Errorf("stream %q: %w", fx.Streams[i].Name, err)
		}
	}
	for i := range fx.ConnectionTypes {
		if err := w.SaveConnectionType(ctx, &fx.ConnectionTypes[i]); err != nil {
			return fmt.Errorf("connection type %q: %w", fx.ConnectionTypes[i].Name, err)
		}
	}
	for i := range fx.Apps {
		if err := w.SaveApp(ctx, &fx.Apps[i]); err != nil {
			return fmt.Errorf("app %q: %w", fx.Apps[i].Name, err)
		}
	}
	for i := range fx.Integrations {
		if err := w.SaveIntegration(ctx, &fx.Integrations[i]); err != nil {
			return fmt.Errorf("integration %s: %w", fx.Integrations[i].EdgeID(), err)
		}
	}
	for i := range fx.Contracts {
		if err := w.SaveContract(ctx, &fx.Contracts[i]); err != nil {
			return fmt.Errorf("contract %q: %w", fx.Contracts[i].Title, err)
		}
	}
	return nil
}
