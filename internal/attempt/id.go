package attempt

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ID identifies one attempt in logs and results.
type ID string

type IDProvider interface {
	NextID() ID
}

var _ IDProvider = &UUIDProvider{}
var _ IDProvider = &CountingProvider{}

type UUIDProviderFn func() (uuid.UUID, error)

// UUIDProvider issues random attempt IDs.
type UUIDProvider struct {
	nextUUIDFn UUIDProviderFn
}

func NewUUIDProvider() *UUIDProvider {
	return &UUIDProvider{
		nextUUIDFn: func() (uuid.UUID, error) { return uuid.NewRandom() },
	}
}

func NewCustomUUIDProvider(nextUUIDFn UUIDProviderFn) *UUIDProvider {
	return &UUIDProvider{
		nextUUIDFn: nextUUIDFn,
	}
}

// NextID falls back to a time-derived ID when the entropy source fails, so
// an attempt is never left unnamed.
func (p *UUIDProvider) NextID() ID {
	id, err := p.nextUUIDFn()
	if err != nil {
		fallback := hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
		return ID(fmt.Sprintf("%s (with error: %s)", fallback, err))
	}
	return ID(id.String())
}

// CountingProvider issues 1, 2, 3, ... and is safe for concurrent use.
type CountingProvider struct {
	id int64
}

func (c *CountingProvider) NextID() ID {
	return ID(strconv.FormatInt(atomic.AddInt64(&c.id, 1), 10))
}
