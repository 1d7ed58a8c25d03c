package vsphere

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"

	"github.com/kubev2v/vsan-health/internal/vsphere/vsan"
)

const (
	DefaultMinAPIMajor = 6
	apiTypeVCenter     = "VirtualCenter"
)

type Credentials struct {
	Host     string
	Username string
	Password string
}

type Options struct {
	// Insecure skips certificate verification of the endpoint.
	Insecure bool
	// Thumbprint pins the SHA-1 thumbprint of the endpoint certificate.
	Thumbprint string
	// MinAPIMajor is the lowest accepted vSphere API major version. Zero means DefaultMinAPIMajor.
	MinAPIMajor int
}

type SessionState int32

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

// Session is an authenticated connection to a vCenter, shared by all collectors of a run.
type Session struct {
	host   string
	state  atomic.Int32
	client *govmomi.Client
	vsan   *vsan.Client

	closeOnce sync.Once
	closeErr  error
}

// Open connects to creds.Host and logs in. The endpoint must be a vCenter running
// at least the configured API version, otherwise the session is closed again and
// ErrCapabilityUnsupported is returned.
func Open(ctx context.Context, creds Credentials, opts Options) (*Session, error) {
	u, err := endpointURL(creds)
	if err != nil {
		return nil, NewErrAuthentication(creds.Host, AuthOther, err)
	}

	sc := soap.NewClient(u, opts.Insecure)
	if opts.Thumbprint != "" {
		// soap compares against upper case hex.
		sc.SetThumbprint(u.Host, strings.ToUpper(opts.Thumbprint))
	}

	vimClient, err := vim25.NewClient(ctx, sc)
	if err != nil {
		return nil, NewErrAuthentication(u.Host, classifyLoginError(err), err)
	}

	client := &govmomi.Client{
		SessionManager: session.NewManager(vimClient),
		Client:         vimClient,
	}
	s := &Session{host: u.Host, client: client}

	if err := client.Login(ctx, u.User); err != nil {
		client.CloseIdleConnections()
		s.state.Store(int32(StateClosed))
		return nil, NewErrAuthentication(u.Host, classifyLoginError(err), err)
	}
	s.state.Store(int32(StateAuthenticated))

	if err := checkEndpoint(vimClient.ServiceContent.About, opts.MinAPIMajor); err != nil {
		if cerr := s.Close(ctx); cerr != nil {
			zap.S().Named("vsphere").Warnw("failed to close rejected session", "host", s.host, "error", cerr)
		}
		return nil, err
	}

	s.vsan = vsan.NewClient(vimClient)

	zap.S().Named("vsphere").Infow("session opened",
		"host", s.host,
		"api_version", vimClient.ServiceContent.About.ApiVersion,
		"product", vimClient.ServiceContent.About.FullName)
	return s, nil
}

func endpointURL(creds Credentials) (*url.URL, error) {
	if strings.TrimSpace(creds.Host) == "" {
		return nil, fmt.Errorf("no host given")
	}
	u, err := soap.ParseURL(creds.Host)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("cannot parse host %q", creds.Host)
	}
	u.User = url.UserPassword(creds.Username, creds.Password)
	return u, nil
}

func checkEndpoint(about types.AboutInfo, minMajor int) error {
	if minMajor <= 0 {
		minMajor = DefaultMinAPIMajor
	}
	if about.ApiType != apiTypeVCenter {
		return NewErrCapabilityUnsupported("vSAN cluster health",
			fmt.Errorf("endpoint is %q, a vCenter is required", about.ApiType))
	}
	major, err := strconv.Atoi(strings.SplitN(about.ApiVersion, ".", 2)[0])
	if err != nil {
		return NewErrCapabilityUnsupported("vSAN cluster health",
			fmt.Errorf("cannot parse API version %q: %w", about.ApiVersion, err))
	}
	if major < minMajor {
		return NewErrCapabilityUnsupported("vSAN cluster health",
			fmt.Errorf("API version %s is older than %d.0", about.ApiVersion, minMajor))
	}
	return nil
}

func (s *Session) Host() string {
	return s.host
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// About describes the connected endpoint.
func (s *Session) About() types.AboutInfo {
	return s.client.ServiceContent.About
}

// Close logs out and releases idle connections. It is idempotent; only the first
// call talks to the endpoint. Queries already in flight are not interrupted, later
// ones fail with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		prev := SessionState(s.state.Swap(int32(StateClosed)))
		if prev == StateAuthenticated {
			if err := s.client.Logout(ctx); err != nil {
				s.closeErr = fmt.Errorf("logout from %s: %w", s.host, err)
			}
		}
		s.client.CloseIdleConnections()
		zap.S().Named("vsphere").Debugw("session closed", "host", s.host)
	})
	return s.closeErr
}

func (s *Session) ensureOpen() error {
	if s.State() != StateAuthenticated {
		return ErrSessionClosed
	}
	return nil
}

// Vim returns the vim25 client of the session.
func (s *Session) Vim() *vim25.Client {
	return s.client.Client
}

// Inventory returns the inventory view used by the Resolver.
func (s *Session) Inventory() Inventory {
	return &vimInventory{s: s}
}

// Queries returns the query surface used by the collectors.
func (s *Session) Queries() *Queries {
	return &Queries{s: s}
}
