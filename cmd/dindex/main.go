// Command dindex is the CLI driver for the dIndex client library:
// query, publish, listen, and identity-management actions against a
// configured set of servers. CLI parsing is a named out-of-core-scope
// collaborator (spec.md §1/§6), so this stays on stdlib flag rather
// than adopting a third-party CLI framework.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dreamware/dindex/client"
	"github.com/dreamware/dindex/internal/config"
	"github.com/dreamware/dindex/internal/ctypes"
	"github.com/dreamware/dindex/internal/record"
	"github.com/dreamware/dindex/internal/signing"
)

func main() {
	if err := realMain(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "dindex:", err)
		os.Exit(1)
	}
}

func realMain(args []string) error {
	fs := flag.NewFlagSet("dindex", flag.ExitOnError)
	fs.String("config", "", "path to a config file overriding defaults (unused: config-file loading is an external collaborator)")
	fs.Int("v", 0, "log verbosity (unused by the CLI binary, accepted for parity with dindexd)")
	signed := fs.Bool("signed", false, "sign outgoing publish records")
	identityPath := fs.String("identity", "", "path to a PEM-encoded RSA private key (gen_identity output); generated on the fly if omitted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: dindex [-signed] [-identity FILE] <query|publish|listen|run_server|gen_identity|print_identity> [ctype value... | json]")
	}

	action, rest := rest[0], rest[1:]
	switch action {
	case "gen_identity":
		return runGenIdentity()
	case "print_identity":
		return runPrintIdentity(rest)
	case "query", "publish", "listen":
		return runClientAction(action, rest, *signed, *identityPath)
	case "run_server":
		return fmt.Errorf("run_server: start the dindexd binary directly, not via the dindex client CLI")
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func runGenIdentity() error {
	priv, err := signing.GenerateIdentity()
	if err != nil {
		return err
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	return pem.Encode(os.Stdout, block)
}

func runPrintIdentity(rest []string) error {
	if len(rest) != 1 {
		return fmt.Errorf("usage: dindex print_identity <private-key-file>")
	}
	priv, err := loadIdentity(rest[0])
	if err != nil {
		return err
	}
	pubB64, err := signing.EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}
	fmt.Println(pubB64)
	return nil
}

func loadIdentity(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("identity file does not contain a PEM block")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return priv, nil
}

func runClientAction(action string, rest []string, signed bool, identityPath string) error {
	rec, err := parseRecordArgs(rest)
	if err != nil {
		return err
	}

	c := client.New(clientEndpoints(config.DefaultEndpoints()))

	if signed {
		var priv *rsa.PrivateKey
		if identityPath != "" {
			priv, err = loadIdentity(identityPath)
		} else {
			priv, err = signing.GenerateIdentity()
		}
		if err != nil {
			return err
		}
		c.SignRequests(priv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch action {
	case "query":
		results, err := c.Query(ctx, rec)
		for _, r := range results {
			fmt.Printf("[%s] %v\n", r.Server, map[string]string(r.Record))
		}
		return err
	case "publish":
		return c.Publish(ctx, rec)
	case "listen":
		return c.Listen(ctx, rec, func(r client.TaggedRecord) bool {
			fmt.Printf("[%s] %v\n", r.Server, map[string]string(r.Record))
			return true
		})
	}
	return fmt.Errorf("unreachable action %q", action)
}

// clientEndpoints adapts config.Endpoint, the persisted/env-loadable
// shape, to client.Endpoint, the shape the client library actually
// dials — the two packages intentionally don't share a type so the
// client library has no dependency on the config-loading collaborator.
// The client speaks the stream framing (internal/wire's 0xFF-terminated
// CBOR messages), so only stream-capable endpoints are carried across;
// a UDP entry would need per-datagram framing the client doesn't do.
func clientEndpoints(cfg []config.Endpoint) []client.Endpoint {
	out := make([]client.Endpoint, 0, len(cfg))
	for _, e := range cfg {
		if e.Network != "tcp" && e.Network != "unix" {
			continue
		}
		out = append(out, client.Endpoint{Name: e.Name, Network: e.Network, Addr: e.Addr, Timeout: e.MaxLatency, ReportErrors: e.ReportErrors})
	}
	return out
}

// parseRecordArgs accepts either "ctype value...", expanded via
// internal/ctypes, or a single JSON object argument decoded directly
// into a record (spec.md §6's CLI surface).
func parseRecordArgs(args []string) (record.Record, error) {
	if len(args) == 0 {
		return record.Record{}, nil
	}
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		var rec record.Record
		if err := json.Unmarshal([]byte(args[0]), &rec); err != nil {
			return nil, fmt.Errorf("parse JSON record: %w", err)
		}
		return rec, nil
	}
	// A ctype may be written with or without its leading colon (":webpage").
	if name := strings.TrimPrefix(args[0], ":"); ctypes.Known(name) {
		return ctypes.Expand(name, args[1:])
	}
	return nil, fmt.Errorf("%q is not a known ctype and does not look like a JSON object", args[0])
}
