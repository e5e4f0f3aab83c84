package identity

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/model"
)

// Backing is a persistent tier for confirmed identities. The result store
// implements it.
type Backing interface {
	GetConfirmed(ctx context.Context, code string) (*model.ConfirmedIdentity, error)
	SetConfirmed(ctx context.Context, id model.ConfirmedIdentity) error
}

// Cache remembers human-confirmed names for product codes. It is safe for
// concurrent use.
type Cache struct {
	mem     *lru.Cache[string, model.ConfirmedIdentity]
	backing Backing
	now     func() time.Time
}

// NewCache creates a cache holding up to size entries in memory. backing may
// be nil.
func NewCache(size int, backing Backing) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	mem, err := lru.New[string, model.ConfirmedIdentity](size)
	if err != nil {
		return nil, eris.Wrap(err, "identity: create lru cache")
	}
	return &Cache{mem: mem, backing: backing, now: time.Now}, nil
}

// Get returns the confirmed identity for code. Misses in memory fall through
// to the backing store; a backing failure is logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, code string) (model.ConfirmedIdentity, bool) {
	if id, ok := c.mem.Get(code); ok {
		return id, true
	}
	if c.backing == nil {
		return model.ConfirmedIdentity{}, false
	}
	id, err := c.backing.GetConfirmed(ctx, code)
	if err != nil {
		zap.L().Warn("identity: confirmed lookup failed", zap.String("code", code), zap.Error(err))
		return model.ConfirmedIdentity{}, false
	}
	if id == nil {
		return model.ConfirmedIdentity{}, false
	}
	c.mem.Add(code, *id)
	return *id, true
}

// Confirm records name as the identity of code in both tiers. Nothing is
// cached when the backing write fails.
func (c *Cache) Confirm(ctx context.Context, code, name string) (model.ConfirmedIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ConfirmedIdentity{}, eris.New("identity: confirmed name is empty")
	}
	id := model.ConfirmedIdentity{Code: code, Name: name, ConfirmedAt: c.now().UTC()}
	if c.backing != nil {
		if err := c.backing.SetConfirmed(ctx, id); err != nil {
			return model.ConfirmedIdentity{}, eris.Wrap(err, "identity: persist confirmation")
		}
	}
	c.mem.Add(code, id)
	return id, nil
}
