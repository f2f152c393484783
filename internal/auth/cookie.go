package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const tokenValueKey = "token"

// CookieCodec carries the session token in a signed (and optionally
// encrypted) cookie for browser clients.
type CookieCodec struct {
	name  string
	store *sessions.CookieStore
}

// CookieOptions configures NewCookieCodec.
type CookieOptions struct {
	Name     string
	HashKey  []byte // generated when empty; cookies then do not survive restarts
	BlockKey []byte // optional; enables encryption when 16, 24 or 32 bytes
	MaxAge   time.Duration
	Secure   bool
}

func NewCookieCodec(opts CookieOptions) *CookieCodec {
	hashKey := opts.HashKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
		slog.Warn("session cookie hash key not configured, using a random key")
	}

	var store *sessions.CookieStore
	if len(opts.BlockKey) > 0 {
		store = sessions.NewCookieStore(hashKey, opts.BlockKey)
	} else {
		store = sessions.NewCookieStore(hashKey)
	}

	o := &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
	}
	if opts.Secure {
		o.SameSite = http.SameSiteNoneMode
	} else {
		o.SameSite = http.SameSiteLaxMode
	}
	store.Options = o
	store.MaxAge(o.MaxAge)

	return &CookieCodec{name: opts.Name, store: store}
}

// Token returns the session token carried by the request cookie, or "" when
// there is no cookie or it cannot be decoded.
func (c *CookieCodec) Token(r *http.Request) string {
	if _, err := r.Cookie(c.name); err != nil {
		return ""
	}

	sess, err := c.store.New(r, c.name)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			slog.Debug("session cookie invalid, ignoring", "error", err)
		} else {
			slog.Warn("session cookie store error", "error", err)
		}
		return ""
	}

	token, _ := sess.Values[tokenValueKey].(string)
	return token
}

// Set writes the cookie carrying token.
func (c *CookieCodec) Set(w http.ResponseWriter, r *http.Request, token string) error {
	sess, _ := c.store.New(r, c.name)
	sess.Values[tokenValueKey] = token
	return c.store.Save(r, w, sess)
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := c.store.New(r, c.name)
	sess.Options.MaxAge = -1
	return c.store.Save(r, w, sess)
}
