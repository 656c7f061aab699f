// Package tunnel forwards a local port to a MongoDB server through an SSH proxy.
package tunnel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/types"
)

const (
	// DefaultLocalHost and DefaultLocalPort form the local end clients dial.
	DefaultLocalHost = "localhost"
	DefaultLocalPort = 9080

	defaultSSHPort = 22
)

// ErrNotConfigured is returned when Open is called without tunneling settings.
var ErrNotConfigured = errors.New("ssh tunneling is not configured")

// Tunnel listens locally and forwards each accepted connection to the
// remote server through one SSH client connection.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Open opens a tunnel on the default local address to the first server URL of cfg.
func Open(cfg types.ServerConfiguration) (*Tunnel, error) {
	return OpenWithLocalAddress(cfg, net.JoinHostPort(DefaultLocalHost, strconv.Itoa(DefaultLocalPort)))
}

// OpenWithLocalAddress is Open with an explicit local listen address.
func OpenWithLocalAddress(cfg types.ServerConfiguration, localAddr string) (*Tunnel, error) {
	sshCfg := cfg.SSHTunneling
	if sshCfg.IsEmpty() {
		return nil, ErrNotConfigured
	}
	if len(cfg.ServerURLs) == 0 {
		return nil, fmt.Errorf("no server to tunnel to")
	}

	target, err := types.ExtractHostAndPort(cfg.ServerURLs[0])
	if err != nil {
		return nil, fmt.Errorf("invalid tunnel target: %w", err)
	}
	proxyAddr, err := ProxyAddress(sshCfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	clientConfig, err := ClientConfig(sshCfg)
	if err != nil {
		return nil, err
	}

	debug.LogTunnel("Dialing ssh proxy", map[string]interface{}{"proxy": proxyAddr, "user": sshCfg.ProxyUser})
	client, err := ssh.Dial("tcp", proxyAddr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ssh proxy %s: %w", proxyAddr, err)
	}

	listener, err := net.Listen("tcp", localAddr)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", localAddr, err)
	}

	t := &Tunnel{
		client:   client,
		listener: listener,
		remote:   target.String(),
	}
	t.wg.Add(1)
	go t.acceptLoop()

	debug.LogTunnel("Tunnel opened", map[string]interface{}{
		"local":  listener.Addr().String(),
		"proxy":  proxyAddr,
		"remote": t.remote,
	})
	return t, nil
}

// LocalAddr returns the address the tunnel listens on.
func (t *Tunnel) LocalAddr() string {
	return t.listener.Addr().String()
}

// Close stops accepting, tears down the SSH connection and waits for
// in-flight forwards. It is safe to call more than once.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		lerr := t.listener.Close()
		cerr := t.client.Close()
		t.wg.Wait()

		if lerr != nil && !errors.Is(lerr, net.ErrClosed) {
			t.closeErr = lerr
		} else if cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			t.closeErr = cerr
		}
		debug.LogTunnel("Tunnel closed", map[string]interface{}{"remote": t.remote})
	})
	return t.closeErr
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		t.wg.Add(1)
		go t.forward(conn)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		debug.LogTunnel("Failed to reach remote through proxy", map[string]interface{}{
			"remote": t.remote,
			"error":  err.Error(),
		})
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()

	// Either side finishing ends the pair; the deferred closes unblock the other copy
	<-done
}

// ProxyAddress normalizes the proxy URL to host:port, defaulting to port 22.
func ProxyAddress(proxyURL string) (string, error) {
	host, port, err := net.SplitHostPort(proxyURL)
	if err != nil {
		hp, perr := types.ExtractHostAndPort(proxyURL)
		if perr != nil {
			return "", fmt.Errorf("invalid ssh proxy url: %w", perr)
		}
		return net.JoinHostPort(hp.Host, strconv.Itoa(defaultSSHPort)), nil
	}
	if host == "" {
		return "", fmt.Errorf("invalid ssh proxy url %q", proxyURL)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid ssh proxy port %q", port)
	}
	return net.JoinHostPort(host, port), nil
}

// ClientConfig builds the SSH client configuration for the proxy.
func ClientConfig(c types.SSHTunnelingConfiguration) (*ssh.ClientConfig, error) {
	if strings.TrimSpace(c.ProxyUser) == "" {
		return nil, fmt.Errorf("ssh proxy user is not set")
	}

	auth, err := authMethod(c)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := hostKeyCallback(c)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            c.ProxyUser,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         core.DefaultConnectTimeout,
	}, nil
}

func authMethod(c types.SSHTunnelingConfiguration) (ssh.AuthMethod, error) {
	switch c.AuthMethod {
	case types.SSHAuthPassword, "":
		return ssh.Password(c.ProxyPassword), nil
	case types.SSHAuthPrivateKey:
		signer, err := loadPrivateKey(c.PrivateKeyPath, c.PrivateKeyPassphrase)
		if err != nil {
			return nil, err
		}
		return ssh.PublicKeys(signer), nil
	default:
		return nil, fmt.Errorf("unsupported ssh authentication method: %q", c.AuthMethod)
	}
}

func loadPrivateKey(path, passphrase string) (ssh.Signer, error) {
	if path == "" {
		return nil, fmt.Errorf("ssh private key path is not set")
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh private key: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh private key: %w", err)
	}
	return signer, nil
}

func hostKeyCallback(c types.SSHTunnelingConfiguration) (ssh.HostKeyCallback, error) {
	if c.KnownHostsFile == "" {
		debug.Warn(debug.CategoryTunnel, "Host key verification disabled, no known_hosts file configured",
			map[string]interface{}{"proxy": c.ProxyURL})
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(c.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return cb, nil
}
