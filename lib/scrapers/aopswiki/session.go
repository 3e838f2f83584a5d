package aopswiki

import (
	"bytes"
	"context"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"aopskey/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("scrapers/aopswiki")

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateExpired
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionOptions struct {
	Templates   Templates
	Credentials Credentials
	// RequestsPerSecond bounds every outgoing request, retries included.
	// The wiki throttles aggressive clients, so this is a correctness
	// concern, not a tuning knob. Defaults to 2.
	RequestsPerSecond float64
	Burst             int
}

// Session owns the authenticated transport every fetch goes through.
// Mutation is serialized: concurrent fetches that all observe an auth
// challenge coalesce into a single re-login through Refresh.
type Session struct {
	http      *resty.Client
	templates Templates
	creds     Credentials

	mu         sync.Mutex
	state      SessionState
	generation uint64
}

func NewSession(opts SessionOptions) (*Session, error) {
	templates := opts.Templates.withDefaults()
	baseUrl, err := url.Parse(templates.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(templates.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 2
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "scrapers/aopswiki/http")

	return &Session{
		http:      client,
		templates: templates,
		creds:     opts.Credentials,
	}, nil
}

func (s *Session) Client() *resty.Client { return s.http }

func (s *Session) Templates() Templates { return s.templates }

// Valid reports whether re-authentication is known to be unnecessary. It
// is a local check, never a network call.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

// Generation increments on every successful login. Fetchers record it
// before a request so Refresh can tell stale challenge observations from
// fresh ones.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

// Refresh re-authenticates at most once per observed generation. A caller
// that saw an auth challenge passes the generation it fetched under; if
// another fetch already re-logged in since then, this is a no-op.
func (s *Session) Refresh(ctx context.Context, observed uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != observed {
		return nil
	}
	s.state = StateExpired
	return s.loginLocked(ctx)
}

func (s *Session) loginLocked(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:Login")
	defer span.End()

	res, err := s.http.R().
		SetContext(ctx).
		Get(s.templates.LoginPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return &AuthError{Reason: AuthNetworkUnavailable, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login page")
		return &AuthError{Reason: AuthChallengeUnsupported, Err: err}
	}

	token := doc.Find("input[name=wpLoginToken]").AttrOr("value", "")
	if token == "" {
		span.SetStatus(codes.Error, "failed to find login token")
		return &AuthError{Reason: AuthChallengeUnsupported}
	}

	res, err = s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"wpName":         s.creds.Username,
			"wpPassword":     s.creds.Password,
			"wpLoginToken":   token,
			"wploginattempt": "Log in",
		}).
		Post(s.templates.LoginPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return &AuthError{Reason: AuthNetworkUnavailable, Err: err}
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse post-login page")
		return &AuthError{Reason: AuthChallengeUnsupported, Err: err}
	}

	// the logout affordance is the only reliable logged-in marker across
	// skins
	if len(doc.Find(`a[href*="Special:UserLogout"]`).Nodes) == 0 {
		span.SetStatus(codes.Error, "login rejected")
		return &AuthError{Reason: AuthInvalidCredentials}
	}

	s.state = StateAuthenticated
	s.generation++
	return nil
}
