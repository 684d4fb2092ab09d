// Package config holds the server and client configuration structs and
// their defaults. Loading config files, TOML layering, and CLI flag parsing
// are external collaborators (spec.md §1); this package only defines the
// shape and the env-var-driven loader the core depends on, grounded on
// torua's cmd/node and cmd/coordinator getenv(key, default) pattern.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default values lifted from original_source/src/config.rs, where dIndex's
// Rust implementation hard-coded the same constants.
const (
	DefaultPort          = 0x1de0 // 7648, used by TCP/UDP listeners
	DefaultWebSocketPort = 0x1de1 // 7649

	DefaultMulticastGroup = "239.255.29.224"

	DefaultNumShards       = 8
	DefaultMaxRecords      = 4096
	DefaultMaxListeners    = 100
	DefaultThreadsInFlight = 8
	DefaultDrainFraction   = 0.25

	DefaultDatastoreURI  = "file:///tmp/dindex_db.json"
	DefaultTrustedKeys   = "/tmp/dindex_trusted_keys"
	DefaultUnixSocket    = "/tmp/dindex.sock"
	DefaultTransportDead = 256 * time.Millisecond
)

// Server holds everything the server binary needs to construct a Store,
// a listener Registry, and the four transports.
type Server struct {
	ListenIP        string
	UnixSocketPath  string
	MulticastGroup  string
	DatastoreURI    string
	TrustedKeysFile string
	Port            uint16
	WebSocketPort   uint16
	NumShards       int
	MaxRecords      int
	MaxListeners    int
	ThreadsInFlight int
	DrainFraction   float64
	TransportDead   time.Duration
	ListenTCP       bool
	ListenUDP       bool
	ListenUnix      bool
	ListenWebSocket bool
	ListenMulticast bool
	Quiet           bool
	Verbosity       int
}

// ServerFromEnv loads a Server config from DINDEX_-prefixed environment
// variables, falling back to documented defaults on any parse failure —
// configuration errors are recovered, never fatal (spec.md §7).
func ServerFromEnv() Server {
	return Server{
		ListenIP:        getenv("DINDEX_SERVER_IP", "0.0.0.0"),
		Port:            getenvUint16("DINDEX_SERVER_PORT", DefaultPort),
		WebSocketPort:   getenvUint16("DINDEX_SERVER_WEBSOCKET_PORT", DefaultWebSocketPort),
		UnixSocketPath:  getenv("DINDEX_SERVER_UNIX_SOCKET", DefaultUnixSocket),
		MulticastGroup:  getenv("DINDEX_SERVER_MULTICAST_GROUP", DefaultMulticastGroup),
		DatastoreURI:    getenv("DINDEX_SERVER_DATASTORE_URI", DefaultDatastoreURI),
		TrustedKeysFile: getenv("DINDEX_SERVER_TRUSTED_KEYS_FILE", DefaultTrustedKeys),
		NumShards:       getenvInt("DINDEX_SERVER_NUM_SHARDS", DefaultNumShards),
		MaxRecords:      getenvInt("DINDEX_SERVER_MAX_RECORDS", DefaultMaxRecords),
		MaxListeners:    getenvInt("DINDEX_SERVER_MAX_LISTENERS", DefaultMaxListeners),
		ThreadsInFlight: getenvInt("DINDEX_SERVER_THREADS_IN_FLIGHT", DefaultThreadsInFlight),
		DrainFraction:   getenvFloat("DINDEX_SERVER_DRAIN_FRACTION", DefaultDrainFraction),
		TransportDead:   DefaultTransportDead,
		ListenTCP:       getenvBool("DINDEX_SERVER_LISTEN_TCP", true),
		ListenUDP:       getenvBool("DINDEX_SERVER_LISTEN_UDP", true),
		ListenUnix:      getenvBool("DINDEX_SERVER_LISTEN_UNIX", true),
		ListenWebSocket: getenvBool("DINDEX_SERVER_LISTEN_WEBSOCKET", true),
		ListenMulticast: getenvBool("DINDEX_SERVER_LISTEN_MULTICAST", false),
		Quiet:           getenvBool("DINDEX_SERVER_QUIET", false),
	}
}

// Endpoint describes one server the client should talk to.
type Endpoint struct {
	Name         string
	Network      string // "tcp", "udp", "unix", "websocket"
	Addr         string // host:port, unix path, or ws:// URL
	MaxLatency   time.Duration
	ReportErrors bool
}

// DefaultEndpoints mirrors original_source/src/config.rs's fallback server
// list: a multicast LAN entry plus a localhost TCP entry.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{
			Name:         "Default LAN Connection",
			Network:      "udp",
			Addr:         DefaultMulticastGroup + ":" + strconv.Itoa(DefaultPort),
			MaxLatency:   600 * time.Millisecond,
			ReportErrors: true,
		},
		{
			Name:         "Default localhost TCP Connection",
			Network:      "tcp",
			Addr:         "127.0.0.1:" + strconv.Itoa(DefaultPort),
			MaxLatency:   600 * time.Millisecond,
			ReportErrors: true,
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvUint16(key string, def uint16) uint16 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return def
	}
	return uint16(n)
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
