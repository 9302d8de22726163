package broker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/pquerna/otp/totp"
)

const bearerPrefix = "Bearer "

type loginData struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// -----------------------------------------------------------------------------

// Authenticator logs in with client code, PIN and a TOTP code derived from the
// configured seed.
type Authenticator struct {
	rest   restClient
	logger *logger.Logger
	now    func() time.Time
}

// -----------------------------------------------------------------------------

func NewAuthenticator(cfg models.MBrokerConfig, nm interfaces.INetworkManager, log *logger.Logger) *Authenticator {
	return &Authenticator{
		rest:   restClient{cfg: cfg, network: nm},
		logger: log,
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

func (a *Authenticator) Authenticate(ctx context.Context) (models.MBrokerSession, error) {
	cfg := a.rest.cfg

	code, err := totp.GenerateCode(cfg.TOTPSecret, a.now())
	if err != nil {
		return models.MBrokerSession{}, helpers.NewAuthError("failed to generate totp code", err)
	}

	body := map[string]string{
		"clientcode": cfg.ClientCode,
		"password":   cfg.PIN,
		"totp":       code,
	}

	raw, err := a.rest.network.PostJSON(ctx, strings.TrimRight(cfg.RestURL, "/")+loginPath, a.rest.headers(""), body)
	if err != nil {
		return models.MBrokerSession{}, helpers.NewAuthError("login request failed", err)
	}

	var resp apiResponse[*loginData]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return models.MBrokerSession{}, helpers.NewAuthError("failed to decode login response", err)
	}
	if !resp.Status || resp.Data == nil || resp.Data.JWTToken == "" || resp.Data.FeedToken == "" {
		return models.MBrokerSession{}, helpers.NewAuthError("login rejected: "+resp.ErrorCode+" "+resp.Message, nil)
	}

	jwt := resp.Data.JWTToken
	if !strings.HasPrefix(jwt, bearerPrefix) {
		jwt = bearerPrefix + jwt
	}

	a.logger.Info("Authenticated SmartAPI client %s", cfg.ClientCode)
	return models.MBrokerSession{
		AuthToken:    jwt,
		FeedToken:    resp.Data.FeedToken,
		RefreshToken: resp.Data.RefreshToken,
		IssuedAt:     a.now(),
	}, nil
}

// -----------------------------------------------------------------------------
// SessionCache
// -----------------------------------------------------------------------------

// SessionCache shares one broker session across the process. Concurrent
// callers wait for a single login.
type SessionCache struct {
	auth   interfaces.IAuthenticator
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	session *models.MBrokerSession
}

// NewSessionCache wraps auth. A zero maxAge keeps the session until Invalidate.
func NewSessionCache(auth interfaces.IAuthenticator, maxAge time.Duration) *SessionCache {
	return &SessionCache{auth: auth, maxAge: maxAge, now: time.Now}
}

// -----------------------------------------------------------------------------

func (c *SessionCache) Session(ctx context.Context) (models.MBrokerSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && (c.maxAge == 0 || c.now().Sub(c.session.IssuedAt) < c.maxAge) {
		return *c.session, nil
	}

	s, err := c.auth.Authenticate(ctx)
	if err != nil {
		return models.MBrokerSession{}, err
	}
	if s.IssuedAt.IsZero() {
		s.IssuedAt = c.now()
	}
	c.session = &s
	return s, nil
}

// -----------------------------------------------------------------------------

func (c *SessionCache) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}
