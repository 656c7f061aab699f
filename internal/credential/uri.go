package credential

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// FormatServerURL renders a host and port as a server URL. IPv6 hosts are
// bracketed and the default port is omitted.
func FormatServerURL(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	if port == types.DefaultMongoPort || port == 0 {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

// ConfigurationFromURI imports a mongodb:// connection string. Hosts,
// credentials, the default database, TLS and read preference are carried
// over; other options are ignored. SRV strings are rejected because they
// need a DNS lookup to yield hosts.
func ConfigurationFromURI(uri string) (types.ServerConfiguration, error) {
	uri = strings.TrimSpace(uri)
	if strings.HasPrefix(uri, connstring.SchemeMongoDBSRV+"://") {
		return types.ServerConfiguration{}, fmt.Errorf("%w: %s connection strings are not supported",
			core.ErrInvalidArgument, connstring.SchemeMongoDBSRV)
	}

	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return types.ServerConfiguration{}, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}

	urls := make([]string, 0, len(cs.Hosts))
	for _, h := range cs.Hosts {
		hp, err := types.ExtractHostAndPort(h)
		if err != nil {
			return types.ServerConfiguration{}, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
		}
		urls = append(urls, FormatServerURL(hp.Host, hp.Port))
	}

	mechanism, err := parseAuthMechanism(cs.AuthMechanism)
	if err != nil {
		return types.ServerConfiguration{}, err
	}

	return types.ServerConfiguration{
		ServerURLs:              urls,
		UserDatabase:            cs.Database,
		SSLConnection:           cs.SSL,
		ReadPreference:          types.ReadPreference(cs.ReadPreference),
		Username:                cs.Username,
		Password:                cs.Password,
		AuthenticationMechanism: mechanism,
		AuthenticationDatabase:  cs.AuthSource,
	}, nil
}

func parseAuthMechanism(name string) (types.AuthenticationMechanism, error) {
	switch m := types.AuthenticationMechanism(strings.ToUpper(name)); m {
	case types.AuthMechanismDefault, types.AuthMechanismMongoDBCR, types.AuthMechanismScramSHA1, types.AuthMechanismScramSHA256:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unsupported authentication mechanism: %q", core.ErrInvalidArgument, name)
	}
}

// ConnectionURI renders cfg as a mongodb:// connection string. The password
// is only included when includePassword is set.
func ConnectionURI(cfg types.ServerConfiguration, includePassword bool) string {
	var b strings.Builder
	b.WriteString(connstring.SchemeMongoDB + "://")

	// url.UserPassword escapes userinfo per RFC 3986; QueryEscape would turn spaces into +
	if cfg.Username != "" {
		if includePassword && cfg.Password != "" {
			b.WriteString(url.UserPassword(cfg.Username, cfg.Password).String())
		} else {
			b.WriteString(url.User(cfg.Username).String())
		}
		b.WriteByte('@')
	}

	hosts := make([]string, 0, len(cfg.ServerURLs))
	for _, serverURL := range cfg.ServerURLs {
		if hp, err := types.ExtractHostAndPort(serverURL); err == nil {
			hosts = append(hosts, FormatServerURL(hp.Host, hp.Port))
		} else {
			hosts = append(hosts, serverURL)
		}
	}
	b.WriteString(strings.Join(hosts, ","))

	b.WriteByte('/')
	b.WriteString(cfg.UserDatabase)

	var params []string
	if cfg.Username != "" {
		if cfg.AuthenticationMechanism != types.AuthMechanismDefault {
			params = append(params, "authMechanism="+string(cfg.AuthenticationMechanism))
		}
		if cfg.AuthenticationDatabase != "" && cfg.AuthenticationDatabase != "admin" {
			params = append(params, "authSource="+url.QueryEscape(cfg.AuthenticationDatabase))
		}
	}
	if cfg.SSLConnection {
		params = append(params, "tls=true")
	}
	if rp := string(cfg.ReadPreference); rp != "" && !strings.EqualFold(rp, "primary") {
		params = append(params, "readPreference="+rp)
	}

	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(params, "&"))
	}
	return b.String()
}
