// Package interceptors classifies the errors returned by gRPC handlers and
// converts them to status errors carrying the kind as ErrorInfo.
package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/transform"
)

// Method is the owner passed to delegates and validators for an RPC
type Method struct {
	// FullMethod is the RPC path, e.g. "/billing.v1.BillingService/Charge"
	FullMethod string
	// Service is the fully qualified service name
	Service string
	// Name is the method name, used as the action
	Name string
}

// ParseMethod splits a full RPC method path
func ParseMethod(fullMethod string) Method {
	m := Method{FullMethod: fullMethod}
	trimmed := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		m.Service, m.Name = trimmed[:i], trimmed[i+1:]
	} else {
		m.Name = trimmed
	}
	return m
}

// Option configures the interceptors
type Option func(*config)

type config struct {
	routes map[string]transform.Group
	except []*errors.Kind
}

// WithRoute classifies calls to target with group. target is a full method
// ("/pkg.Service/Method") or a service name ("pkg.Service"); full methods
// take precedence. The route applies once group has rules.
func WithRoute(target string, group transform.Group) Option {
	return func(c *config) {
		c.routes[target] = group
	}
}

// WithExcept skips rules registered for the given source kinds on every call
func WithExcept(kinds ...*errors.Kind) Option {
	return func(c *config) {
		c.except = append(c.except, kinds...)
	}
}

func newConfig(opts []Option) *config {
	c := &config{routes: make(map[string]transform.Group)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// groupFor resolves the group of a call: an explicit route, then a group
// named after the full method or the service, then the default group. Routes
// to a group without rules are skipped.
func (c *config) groupFor(reg *transform.Registry[Method], m Method) (transform.Group, bool) {
	for _, key := range []string{m.FullMethod, m.Service} {
		if g, ok := c.routes[key]; ok {
			if _, registered := reg.Get(g); registered {
				return g, true
			}
		}
	}
	for _, key := range []string{m.FullMethod, m.Service} {
		if _, ok := reg.Get(transform.Group(key)); ok {
			return transform.Group(key), true
		}
	}
	if _, ok := reg.Get(transform.DefaultGroup); ok {
		return transform.DefaultGroup, true
	}
	return "", false
}

func (c *config) handleOptions(group transform.Group, m Method) []transform.HandleOption {
	return []transform.HandleOption{
		transform.InGroup(group),
		transform.Action(m.Name),
		transform.Except(c.except...),
	}
}

// UnaryServerInterceptor classifies unary handler errors with reg. Calls for
// which no group resolves are only converted to status errors.
func UnaryServerInterceptor(reg *transform.Registry[Method], opts ...Option) grpc.UnaryServerInterceptor {
	c := newConfig(opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		m := ParseMethod(info.FullMethod)

		group, ok := c.groupFor(reg, m)
		if !ok {
			resp, err := handler(ctx, req)
			return resp, errors.ToGRPCError(err)
		}

		resp, err := transform.Handle(ctx, reg, m, func() (any, error) {
			return handler(ctx, req)
		}, c.handleOptions(group, m)...)
		if err != nil {
			return nil, errors.ToGRPCError(err)
		}
		return resp, nil
	}
}

// StreamServerInterceptor classifies stream handler errors with reg
func StreamServerInterceptor(reg *transform.Registry[Method], opts ...Option) grpc.StreamServerInterceptor {
	c := newConfig(opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		m := ParseMethod(info.FullMethod)

		group, ok := c.groupFor(reg, m)
		if !ok {
			return errors.ToGRPCError(handler(srv, ss))
		}

		err := transform.Run(ss.Context(), reg, m, func() error {
			return handler(srv, ss)
		}, c.handleOptions(group, m)...)
		return errors.ToGRPCError(err)
	}
}
