package vsphere

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// ErrSessionClosed is returned by queries issued through a session that was closed.
var ErrSessionClosed = errors.New("vsphere session is closed")

type AuthFailureReason string

const (
	AuthBadCredentials AuthFailureReason = "bad credentials"
	AuthUnreachable    AuthFailureReason = "host unreachable"
	AuthTLSTrust       AuthFailureReason = "tls trust failure"
	AuthOther          AuthFailureReason = "authentication failed"
)

type ErrAuthentication struct {
	error
	Host   string
	Reason AuthFailureReason
}

func NewErrAuthentication(host string, reason AuthFailureReason, cause error) *ErrAuthentication {
	return &ErrAuthentication{
		error:  fmt.Errorf("%s: %s: %w", host, reason, cause),
		Host:   host,
		Reason: reason,
	}
}

func (e *ErrAuthentication) Unwrap() error {
	return e.error
}

type ErrNotFound struct {
	error
	Kind string
	Name string
}

func NewErrNotFound(kind, name string) *ErrNotFound {
	return &ErrNotFound{error: fmt.Errorf("%s %q not found", kind, name), Kind: kind, Name: name}
}

func NewErrClusterNotFound(name string) *ErrNotFound {
	return NewErrNotFound("cluster", name)
}

// ErrCapabilityUnsupported means the endpoint lacks a feature or an API surface.
// Returned at resolution time it aborts the run, returned by a query it only fails
// the collector that issued it.
type ErrCapabilityUnsupported struct {
	error
	Feature string
}

func NewErrCapabilityUnsupported(feature string, cause error) *ErrCapabilityUnsupported {
	if cause == nil {
		return &ErrCapabilityUnsupported{error: fmt.Errorf("%s is not supported by the endpoint", feature), Feature: feature}
	}
	return &ErrCapabilityUnsupported{error: fmt.Errorf("%s is not supported by the endpoint: %w", feature, cause), Feature: feature}
}

func (e *ErrCapabilityUnsupported) Unwrap() error {
	return e.error
}

// ErrMissingProperty is wrapped by ErrPropertyMissing.
var ErrMissingProperty = errors.New("property missing from response")

type ErrPropertyMissing struct {
	error
	Path string
}

func NewErrPropertyMissing(path string) *ErrPropertyMissing {
	return &ErrPropertyMissing{error: fmt.Errorf("%s: %w", path, ErrMissingProperty), Path: path}
}

func (e *ErrPropertyMissing) Unwrap() error {
	return e.error
}

// classifyLoginError maps a failed connect or login to an authentication failure reason.
func classifyLoginError(err error) AuthFailureReason {
	if isVimFault(err, func(f types.AnyType) bool {
		switch f.(type) {
		case types.InvalidLogin, *types.InvalidLogin, types.NoPermission, *types.NoPermission,
			types.NotAuthenticated, *types.NotAuthenticated:
			return true
		}
		return false
	}) {
		return AuthBadCredentials
	}

	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	var tlsVerify *tls.CertificateVerificationError
	switch {
	case errors.As(err, &unknownAuthority), errors.As(err, &hostname), errors.As(err, &invalid), errors.As(err, &tlsVerify):
		return AuthTLSTrust
	}

	msg := err.Error()
	if strings.Contains(msg, "thumbprint does not match") || strings.Contains(msg, "certificate") && strings.Contains(msg, "x509") {
		return AuthTLSTrust
	}
	// Cover the different messages returned by vCenter and vcsim for a wrong password.
	if strings.Contains(msg, "Login failure") || strings.Contains(msg, "incorrect") && strings.Contains(msg, "password") {
		return AuthBadCredentials
	}

	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &opErr), errors.As(err, &netErr):
		return AuthUnreachable
	case errors.As(err, &urlErr):
		return AuthUnreachable
	}
	return AuthOther
}

// isUnsupported reports whether err says the remote method or managed object does not exist,
// which is how older endpoints answer requests for newer vSAN APIs.
func isUnsupported(err error) bool {
	if isVimFault(err, func(f types.AnyType) bool {
		switch f.(type) {
		case types.MethodNotFound, *types.MethodNotFound, types.NotSupported, *types.NotSupported,
			types.NotImplemented, *types.NotImplemented, types.ManagedObjectNotFound, *types.ManagedObjectNotFound,
			types.InvalidType, *types.InvalidType, types.InvalidProperty, *types.InvalidProperty:
			return true
		}
		return false
	}) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "404 Not Found") || strings.Contains(msg, "Unable to resolve WSDL method name")
}

func isVimFault(err error, match func(types.AnyType) bool) bool {
	if soap.IsSoapFault(err) {
		return match(soap.ToSoapFault(err).VimFault())
	}
	if soap.IsVimFault(err) {
		return match(soap.ToVimFault(err))
	}
	return false
}

// classifyQueryError turns unsupported-API faults into ErrCapabilityUnsupported for feature.
func classifyQueryError(feature string, err error) error {
	if err == nil {
		return nil
	}
	if isUnsupported(err) {
		return NewErrCapabilityUnsupported(feature, err)
	}
	return err
}
