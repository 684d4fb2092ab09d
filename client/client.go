// Package client implements the dIndex client library: fan a query or
// publish out to a configured set of servers, merge their results, and
// drive long-lived listen subscriptions. Grounded on
// original_source/src/client.rs's scoped-thread fan-out-and-merge
// pattern, re-expressed with errgroup.Group, and on torua's
// cluster.NodeInfo{Name, Network, Addr} endpoint shape.
package client

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/dindex/internal/record"
	"github.com/dreamware/dindex/internal/signing"
	"github.com/dreamware/dindex/internal/wire"
)

// Endpoint identifies one server the client talks to. ReportErrors
// controls whether a dial/send failure against this endpoint surfaces
// in the aggregate error returned by Query/Publish — set false for a
// best-effort/background endpoint (e.g. a multicast discovery entry)
// whose absence shouldn't fail the whole fan-out call.
type Endpoint struct {
	Name         string
	Network      string // "tcp" or "unix"
	Addr         string
	Timeout      time.Duration
	ReportErrors bool
}

// TaggedRecord pairs a record with the name of the server it came from.
type TaggedRecord struct {
	Server string
	Record record.Record
}

// Client fans requests out across a fixed set of server endpoints.
type Client struct {
	endpoints []Endpoint
	signer    *rsa.PrivateKey
}

// New builds a Client talking to the given endpoints.
func New(endpoints []Endpoint) *Client {
	return &Client{endpoints: endpoints}
}

// SignRequests makes every subsequent Publish sign its record with priv
// before sending, mirroring the CLI's --signed flag.
func (c *Client) SignRequests(priv *rsa.PrivateKey) {
	c.signer = priv
}

// Query fans q out to every configured server concurrently and merges
// their matches into one slice, each tagged with its originating
// server's name. A single server's failure does not abort the others;
// their errors are joined and returned alongside whatever partial
// results the healthy servers produced.
func (c *Client) Query(ctx context.Context, q record.Record) ([]TaggedRecord, error) {
	var (
		mu      sync.Mutex
		results []TaggedRecord
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range c.endpoints {
		ep := ep
		g.Go(func() error {
			matches, err := c.queryOne(gctx, ep, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ep.ReportErrors {
					errs = append(errs, fmt.Errorf("%s: %w", ep.Name, err))
				}
				return nil
			}
			for _, m := range matches {
				results = append(results, TaggedRecord{Server: ep.Name, Record: m})
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func (c *Client) queryOne(ctx context.Context, ep Endpoint, q record.Record) ([]record.Record, error) {
	conn, err := c.dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := wire.WriteFramed(conn, wire.Message{Action: wire.ActionQuery, Record: q}); err != nil {
		return nil, err
	}

	scanner := wire.NewFrameScanner(conn)
	var matches []record.Record
	for {
		msg, err := scanner.Next()
		if err != nil {
			return matches, err
		}
		switch msg.Action {
		case wire.ActionResult:
			matches = append(matches, msg.Record)
		case wire.ActionEndOfResults:
			return matches, nil
		default:
			return matches, nil
		}
	}
}

// Publish fans r out to every configured server, signing it first if
// SignRequests was called. Best-effort: every server is attempted
// regardless of earlier failures, and all errors are joined rather than
// short-circuiting (spec.md §7 "publish is best-effort").
func (c *Client) Publish(ctx context.Context, r record.Record) error {
	if c.signer != nil {
		signed, err := signing.Sign(c.signer, r)
		if err != nil {
			return fmt.Errorf("client: sign record: %w", err)
		}
		r = signed
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range c.endpoints {
		ep := ep
		g.Go(func() error {
			if err := c.publishOne(gctx, ep, r); err != nil && ep.ReportErrors {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ep.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (c *Client) publishOne(ctx context.Context, ep Endpoint, r record.Record) error {
	conn, err := c.dial(ctx, ep)
	if err != nil {
		return err
	}
	defer conn.Close()
	return wire.WriteFramed(conn, wire.Message{Action: wire.ActionPublish, Record: r})
}

// Listen opens one long-lived connection per server and invokes onMatch
// for every result it receives, until onMatch returns false or ctx is
// cancelled. Grounded on joshuafuller-beacon's querier context-bounded
// collection loop.
func (c *Client) Listen(ctx context.Context, q record.Record, onMatch func(TaggedRecord) bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range c.endpoints {
		ep := ep
		g.Go(func() error {
			return c.listenOne(gctx, ep, q, onMatch)
		})
	}
	return g.Wait()
}

func (c *Client) listenOne(ctx context.Context, ep Endpoint, q record.Record, onMatch func(TaggedRecord) bool) error {
	conn, err := c.dial(ctx, ep)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := wire.WriteFramed(conn, wire.Message{Action: wire.ActionListen, Record: q}); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	scanner := wire.NewFrameScanner(conn)
	for {
		msg, err := scanner.Next()
		if err != nil {
			return err
		}
		if msg.Action != wire.ActionResult {
			continue
		}
		if !onMatch(TaggedRecord{Server: ep.Name, Record: msg.Record}) {
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context, ep Endpoint) (net.Conn, error) {
	d := net.Dialer{Timeout: ep.Timeout}
	network := ep.Network
	if network == "" {
		network = "tcp"
	}
	return d.DialContext(ctx, network, ep.Addr)
}
