// Package types contains shared type definitions used across the mongoexplorer plugin.
package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// DefaultMongoPort is used when a server URL carries no port.
const DefaultMongoPort = 27017

// DefaultResultLimit is the number of documents a query returns unless told otherwise.
const DefaultResultLimit = 300

// =============================================================================
// Server Configuration Types
// =============================================================================

// AuthenticationMechanism selects how credentials are presented to the server.
type AuthenticationMechanism string

const (
	AuthMechanismDefault     AuthenticationMechanism = ""              // Negotiated by the driver
	AuthMechanismMongoDBCR   AuthenticationMechanism = "MONGODB-CR"    // Legacy challenge-response
	AuthMechanismScramSHA1   AuthenticationMechanism = "SCRAM-SHA-1"   // Salted challenge-response
	AuthMechanismScramSHA256 AuthenticationMechanism = "SCRAM-SHA-256" // Salted challenge-response
)

// ReadPreference is a read preference mode name, e.g. "secondaryPreferred".
// An empty value means primary.
type ReadPreference string

// SSHAuthMethod selects how the tunnel authenticates against the SSH proxy.
type SSHAuthMethod string

const (
	SSHAuthPassword   SSHAuthMethod = "PASSWORD"
	SSHAuthPrivateKey SSHAuthMethod = "PRIVATE_KEY"
)

// SSHTunnelingConfiguration describes the SSH proxy used to reach the servers.
type SSHTunnelingConfiguration struct {
	ProxyURL             string        `json:"proxyUrl,omitempty"` // host[:port], port defaults to 22
	ProxyUser            string        `json:"proxyUser,omitempty"`
	AuthMethod           SSHAuthMethod `json:"authMethod,omitempty"`
	ProxyPassword        string        `json:"-"`
	PrivateKeyPath       string        `json:"privateKeyPath,omitempty"`
	PrivateKeyPassphrase string        `json:"-"`
	KnownHostsFile       string        `json:"knownHostsFile,omitempty"`
}

// IsEmpty reports whether no tunnel is configured.
func (c SSHTunnelingConfiguration) IsEmpty() bool {
	return strings.TrimSpace(c.ProxyURL) == ""
}

// ServerConfiguration holds the parameters for one connection attempt.
// Secrets are kept out of JSON; they live in the OS keyring.
type ServerConfiguration struct {
	ID                      string                    `json:"id"`
	Label                   string                    `json:"label"`
	ServerURLs              []string                  `json:"serverUrls"` // host[:port]
	UserDatabase            string                    `json:"userDatabase,omitempty"`
	SSLConnection           bool                      `json:"sslConnection"`
	ReadPreference          ReadPreference            `json:"readPreference,omitempty"`
	Username                string                    `json:"username,omitempty"`
	Password                string                    `json:"-"`
	AuthenticationMechanism AuthenticationMechanism   `json:"authenticationMechanism,omitempty"`
	AuthenticationDatabase  string                    `json:"authenticationDatabase,omitempty"`
	SSHTunneling            SSHTunnelingConfiguration `json:"sshTunneling"`
}

// HostAndPort is one endpoint of a server.
type HostAndPort struct {
	Host string
	Port int
}

// String formats the endpoint as host:port, bracketing IPv6 hosts.
func (hp HostAndPort) String() string {
	return net.JoinHostPort(hp.Host, strconv.Itoa(hp.Port))
}

// ExtractHostAndPort parses "host", "host:port" or "[v6]:port".
func ExtractHostAndPort(serverURL string) (HostAndPort, error) {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		return HostAndPort{}, fmt.Errorf("empty server url")
	}

	if strings.Contains(serverURL, "://") {
		return HostAndPort{}, fmt.Errorf("%q is a connection string, not a host", serverURL)
	}
	if strings.ContainsAny(serverURL, " \t\r\n/") {
		return HostAndPort{}, fmt.Errorf("invalid host %q", serverURL)
	}

	host, portStr, err := net.SplitHostPort(serverURL)
	if err != nil {
		// No port present: plain host or bare IPv6 literal
		host = serverURL
		if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
		if strings.ContainsAny(host, "[]") || (strings.Contains(host, ":") && net.ParseIP(host) == nil) {
			return HostAndPort{}, fmt.Errorf("invalid host %q", serverURL)
		}
		return HostAndPort{Host: host, Port: DefaultMongoPort}, nil
	}
	if host == "" {
		return HostAndPort{}, fmt.Errorf("missing host in %q", serverURL)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return HostAndPort{}, fmt.Errorf("invalid port in %q", serverURL)
	}
	return HostAndPort{Host: host, Port: port}, nil
}

// =============================================================================
// Server, Database and Collection Types
// =============================================================================

// ServerStatus is the load state of a registered server.
type ServerStatus string

const (
	StatusLoading ServerStatus = "LOADING"
	StatusOK      ServerStatus = "OK"
	StatusFailed  ServerStatus = "FAILED"
)

// MongoServer is a registered server and the databases found on its last load.
type MongoServer struct {
	Configuration ServerConfiguration `json:"configuration"`
	Status        ServerStatus        `json:"status,omitempty"`
	Databases     []MongoDatabase     `json:"databases"`
	LastError     string              `json:"lastError,omitempty"`
}

// ID returns the configuration ID of the server.
func (s *MongoServer) ID() string {
	return s.Configuration.ID
}

// MongoDatabase is a database and its collections.
type MongoDatabase struct {
	Name        string            `json:"name"`
	Collections []MongoCollection `json:"collections"`
}

// AddCollection appends a collection owned by this database.
func (d *MongoDatabase) AddCollection(name string) {
	d.Collections = append(d.Collections, MongoCollection{Name: name, DatabaseName: d.Name})
}

// MongoCollection names a collection and the database owning it.
type MongoCollection struct {
	Name         string `json:"name"`
	DatabaseName string `json:"databaseName"`
}

// =============================================================================
// Query Types
// =============================================================================

// MongoQueryOptions describes what to read from a collection.
// Aggregate selects between the pipeline (Operations) and the find triple.
type MongoQueryOptions struct {
	Operations  []bson.D `json:"operations,omitempty"`
	Filter      bson.D   `json:"filter,omitempty"`
	Projection  bson.D   `json:"projection,omitempty"` // nil means all fields
	Sort        bson.D   `json:"sort,omitempty"`       // nil means natural order
	ResultLimit int64    `json:"resultLimit"`          // <= 0 means unbounded
	Aggregate   bool     `json:"aggregate"`
}

// NewMongoQueryOptions returns find options with an empty filter and the default limit.
func NewMongoQueryOptions() MongoQueryOptions {
	return MongoQueryOptions{
		Filter:      bson.D{},
		ResultLimit: DefaultResultLimit,
	}
}

// MongoCollectionResult accumulates the documents returned for one collection.
type MongoCollectionResult struct {
	CollectionName string   `json:"collectionName"`
	Documents      []bson.D `json:"documents"`
}

// NewMongoCollectionResult creates an empty result for a collection.
func NewMongoCollectionResult(collectionName string) *MongoCollectionResult {
	return &MongoCollectionResult{
		CollectionName: collectionName,
		Documents:      []bson.D{},
	}
}

// Add appends a document in arrival order.
func (r *MongoCollectionResult) Add(doc bson.D) {
	r.Documents = append(r.Documents, doc)
}

// Len returns the number of accumulated documents.
func (r *MongoCollectionResult) Len() int {
	return len(r.Documents)
}
