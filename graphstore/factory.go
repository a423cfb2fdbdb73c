package graphstore

import (
	"context"
	"strings"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore/falkordb"
	"github.com/nahisaho/YAGOKORO-sub003/graphstore/memory"
	"github.com/nahisaho/YAGOKORO-sub003/graphstore/neo4j"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

// Open dispatches on a store URI's scheme, generalizing the teacher's
// store.NewKnowledgeGraph("memory://"/"falkordb://") dispatcher with a third
// scheme for the neo4j backend. neo4jUser/neo4jPassword are only consulted
// for neo4j:// URIs.
func Open(ctx context.Context, storeURI, neo4jUser, neo4jPassword string) (Store, error) {
	switch {
	case strings.HasPrefix(storeURI, "memory://"):
		return memory.New(), nil
	case strings.HasPrefix(storeURI, "falkordb://"):
		return falkordb.New(storeURI)
	case strings.HasPrefix(storeURI, "neo4j://"), strings.HasPrefix(storeURI, "bolt://"):
		return neo4j.New(ctx, storeURI, neo4jUser, neo4jPassword, "")
	default:
		return nil, kinderr.New(kinderr.ValidationError, "unsupported graph store URI scheme: %q", storeURI)
	}
}
