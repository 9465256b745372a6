package vectorutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/docqa/pkg/vector"
	"github.com/papercomputeco/docqa/pkg/vector/chroma"
	"github.com/papercomputeco/docqa/pkg/vector/inmemory"
	"github.com/papercomputeco/docqa/pkg/vector/postgres"
	"github.com/papercomputeco/docqa/pkg/vector/qdrant"
	"github.com/papercomputeco/docqa/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is the server URL, gRPC address or DSN of remote providers.
	TargetURL string

	// Path is the index file for the sqlite provider.
	Path string

	// Collection names the remote collection or table.
	Collection string

	Dimensions uint
	APIKey     string
	Mode       vector.Mode
	Logger     *slog.Logger
}

// Providers lists the accepted ProviderType values.
func Providers() []string {
	return []string{"sqlite", "chroma", "qdrant", "postgres", "memory"}
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite", "sqlitevec":
		if o.Path == "" {
			return nil, errors.New("sqlite vector store requires a path")
		}
		return sqlitevec.NewDriver(sqlitevec.Config{
			Path:       o.Path,
			Mode:       o.Mode,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
			Mode:           o.Mode,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Target:         o.TargetURL,
			APIKey:         o.APIKey,
			CollectionName: o.Collection,
			Mode:           o.Mode,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	case "postgres", "pgvector":
		return postgres.NewDriver(ctx, postgres.Config{
			DSN:        o.TargetURL,
			TableName:  o.Collection,
			Mode:       o.Mode,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "memory", "inmemory":
		if o.Mode == vector.ModeLoad {
			return nil, fmt.Errorf("%w: the memory vector store does not persist", vector.ErrIndexNotFound)
		}
		return inmemory.NewDriver(o.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
