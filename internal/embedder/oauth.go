package embedder

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// tokenCache caches a bearer token obtained via OAuth client-credentials,
// reusing it while now - issued_at <= expires_in/2 and otherwise
// refreshing through a singleflight group so concurrent callers share
// one in-flight refresh instead of stampeding the token endpoint.
type tokenCache struct {
	conf clientcredentials.Config

	mu       sync.RWMutex
	token    *oauth2.Token
	issuedAt time.Time

	group singleflight.Group
}

func newTokenCache(tokenURL, clientID, clientSecret string) *tokenCache {
	return &tokenCache{
		conf: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		},
	}
}

// Token returns a valid bearer token, refreshing it if the cached
// token is past half its declared lifetime.
func (c *tokenCache) Token(ctx context.Context) (string, error) {
	if t, ok := c.cached(); ok {
		return t, nil
	}

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		if t, ok := c.cached(); ok {
			return t, nil
		}
		tok, err := c.conf.Token(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = tok
		c.issuedAt = time.Now()
		c.mu.Unlock()
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *tokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return "", false
	}
	if c.token.Expiry.IsZero() {
		return c.token.AccessToken, true
	}
	expiresIn := c.token.Expiry.Sub(c.issuedAt)
	if time.Since(c.issuedAt) <= expiresIn/2 {
		return c.token.AccessToken, true
	}
	return "", false
}
