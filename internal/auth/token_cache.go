package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/notesapp/internal/model"
)

// sweepThreshold を超えたエントリ数で期限切れエントリを掃除する。
const sweepThreshold = 1024

// TokenCache は検証済みトークンと解決結果を短時間保持するIdentityResolver。
// エントリの有効期限はTTLとJWTのexpの早い方とする。
// expは署名を検証せずに読み取り、有効期限の上限としてのみ使用する。
type TokenCache struct {
	next IdentityResolver
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	identity  model.Identity
	expiresAt time.Time
}

// NewTokenCache はTokenCacheを生成する。
func NewTokenCache(next IdentityResolver, ttl time.Duration) *TokenCache {
	return &TokenCache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// ResolveIdentity はキャッシュ済みの解決結果を返し、なければ委譲先で解決する。
// 失敗した解決結果はキャッシュしない。
func (c *TokenCache) ResolveIdentity(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return c.next.ResolveIdentity(ctx, token)
	}

	now := c.now()
	c.mu.Lock()
	entry, ok := c.entries[token]
	if ok && now.After(entry.expiresAt) {
		delete(c.entries, token)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		identity := entry.identity
		return &identity, nil
	}

	identity, err := c.next.ResolveIdentity(ctx, token)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(c.ttl)
	if exp, ok := tokenExpiry(token); ok && exp.Before(expiresAt) {
		expiresAt = exp
	}
	if expiresAt.After(now) {
		c.mu.Lock()
		if len(c.entries) >= sweepThreshold {
			c.sweepLocked(now)
		}
		c.entries[token] = cacheEntry{identity: *identity, expiresAt: expiresAt}
		c.mu.Unlock()
	}
	return identity, nil
}

// Evict はトークンをキャッシュから削除する。ログアウト時に呼び出す。
func (c *TokenCache) Evict(token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}

// Len はキャッシュ中のエントリ数を返す。
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TokenCache) sweepLocked(now time.Time) {
	for token, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, token)
		}
	}
}

// tokenExpiry はJWTのexpクレームを署名検証なしで読み取る。
// JWTでない場合やexpがない場合はfalseを返す。
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

var _ IdentityResolver = (*TokenCache)(nil)
