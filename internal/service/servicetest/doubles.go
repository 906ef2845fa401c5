package servicetest

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"marketplace-service/internal/models"
)

// Cache is an in-memory view cache that records invalidations
type Cache struct {
	mu      sync.Mutex
	entries map[string][]byte
	Deleted []string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.Deleted = append(c.Deleted, k)
	}
	return nil
}

func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.entries, k)
		}
	}
	c.Deleted = append(c.Deleted, pattern)
	return nil
}

// Has reports whether a view is cached
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Locker is an in-memory lock table
type Locker struct {
	mu    sync.Mutex
	held  map[string]string
	Calls int
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]string)}
}

func (l *Locker) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls++
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = token
	return true, nil
}

func (l *Locker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// Hold takes a lock on behalf of another process
func (l *Locker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "someone-else"
}

// Publisher records published events
type Publisher struct {
	mu            sync.Mutex
	Placed        []models.Order
	StatusChanges []models.OrderStatusChangedEvent
	Vendors       []models.Profile
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, order *models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Placed = append(p.Placed, *order)
	return nil
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, from models.OrderStatus, actorID string, role models.Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StatusChanges = append(p.StatusChanges, models.OrderStatusChangedEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		VendorID:   order.VendorID,
		FromStatus: from,
		ToStatus:   order.Status,
		ActorID:    actorID,
		ActorRole:  role,
	})
	return nil
}

func (p *Publisher) PublishVendorStatusChanged(ctx context.Context, profile *models.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Vendors = append(p.Vendors, *profile)
	return nil
}

// Blobs is an in-memory blob store
type Blobs struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewBlobs() *Blobs {
	return &Blobs{Objects: make(map[string][]byte)}
}

func (b *Blobs) Upload(ctx context.Context, p string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Objects[p] = data
	return nil
}

func (b *Blobs) PublicURL(p string) string {
	return "https://media.test/" + p
}
