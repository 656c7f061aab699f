package tunnel

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/peternagy/mongoexplorer/internal/types"
)

const (
	testUser     = "tester"
	testPassword = "s3cret"
)

type sshTestServer struct {
	addr    string
	hostKey ssh.PublicKey
}

// startSSHServer runs an in-process SSH server that accepts testUser with
// testPassword or the given authorized key and serves direct-tcpip channels.
func startSSHServer(t *testing.T, authorized ssh.PublicKey) sshTestServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && c.User() == testUser && bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown public key for %q", c.User())
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSHConn(nc, cfg)
		}
	}()

	return sshTestServer{addr: ln.Addr().String(), hostKey: hostSigner.PublicKey()}
}

func serveSSHConn(nc net.Conn, cfg *ssh.ServerConfig) {
	conn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "direct-tcpip" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		var payload struct {
			DestAddr string
			DestPort uint32
			OrigAddr string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(newCh.ExtraData(), &payload); err != nil {
			_ = newCh.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		target, err := net.Dial("tcp", net.JoinHostPort(payload.DestAddr, strconv.Itoa(int(payload.DestPort))))
		if err != nil {
			_ = newCh.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			_ = target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			go func() {
				_, _ = io.Copy(target, ch)
				_ = target.Close()
			}()
			_, _ = io.Copy(ch, target)
			_ = ch.Close()
		}()
	}
}

func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func tunneledConfig(target, proxy string, sshCfg types.SSHTunnelingConfiguration) types.ServerConfiguration {
	sshCfg.ProxyURL = proxy
	if sshCfg.ProxyUser == "" {
		sshCfg.ProxyUser = testUser
	}
	return types.ServerConfiguration{
		ServerURLs:   []string{target},
		SSHTunneling: sshCfg,
	}
}

func assertEcho(t *testing.T, addr string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestTunnelForwardsWithPassword(t *testing.T) {
	server := startSSHServer(t, nil)
	echo := startEchoServer(t)

	cfg := tunneledConfig(echo, server.addr, types.SSHTunnelingConfiguration{
		AuthMethod:    types.SSHAuthPassword,
		ProxyPassword: testPassword,
	})
	tun, err := OpenWithLocalAddress(cfg, "127.0.0.1:0")
	require.NoError(t, err)

	assertEcho(t, tun.LocalAddr())
	// A second connection reuses the same SSH client
	assertEcho(t, tun.LocalAddr())

	local := tun.LocalAddr()
	require.NoError(t, tun.Close())
	require.NoError(t, tun.Close(), "Close must be idempotent")

	_, err = net.DialTimeout("tcp", local, time.Second)
	assert.Error(t, err, "listener should be closed")
}

func TestTunnelForwardsWithPrivateKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	server := startSSHServer(t, sshPub)
	echo := startEchoServer(t)

	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("phrase"))
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600))

	cfg := tunneledConfig(echo, server.addr, types.SSHTunnelingConfiguration{
		AuthMethod:           types.SSHAuthPrivateKey,
		PrivateKeyPath:       keyPath,
		PrivateKeyPassphrase: "phrase",
	})
	tun, err := OpenWithLocalAddress(cfg, "127.0.0.1:0")
	require.NoError(t, err)
	defer tun.Close()

	assertEcho(t, tun.LocalAddr())
}

func TestOpenRejectsWrongPassword(t *testing.T) {
	server := startSSHServer(t, nil)

	cfg := tunneledConfig("127.0.0.1:27017", server.addr, types.SSHTunnelingConfiguration{
		AuthMethod:    types.SSHAuthPassword,
		ProxyPassword: "wrong",
	})
	tun, err := OpenWithLocalAddress(cfg, "127.0.0.1:0")
	require.Error(t, err)
	assert.Nil(t, tun)
	assert.Contains(t, err.Error(), "failed to connect to ssh proxy")
}

func TestOpenVerifiesKnownHosts(t *testing.T) {
	server := startSSHServer(t, nil)
	echo := startEchoServer(t)

	writeKnownHosts := func(key ssh.PublicKey) string {
		path := filepath.Join(t.TempDir(), "known_hosts")
		line := knownhosts.Line([]string{server.addr}, key) + "\n"
		require.NoError(t, os.WriteFile(path, []byte(line), 0600))
		return path
	}

	t.Run("matching key", func(t *testing.T) {
		cfg := tunneledConfig(echo, server.addr, types.SSHTunnelingConfiguration{
			ProxyPassword:  testPassword,
			KnownHostsFile: writeKnownHosts(server.hostKey),
		})
		tun, err := OpenWithLocalAddress(cfg, "127.0.0.1:0")
		require.NoError(t, err)
		defer tun.Close()
		assertEcho(t, tun.LocalAddr())
	})

	t.Run("mismatched key", func(t *testing.T) {
		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		otherKey, err := ssh.NewPublicKey(otherPub)
		require.NoError(t, err)

		cfg := tunneledConfig(echo, server.addr, types.SSHTunnelingConfiguration{
			ProxyPassword:  testPassword,
			KnownHostsFile: writeKnownHosts(otherKey),
		})
		_, err = OpenWithLocalAddress(cfg, "127.0.0.1:0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "knownhosts")
	})
}

func TestOpenValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.ServerConfiguration
	}{
		{
			name: "no tunneling",
			cfg:  types.ServerConfiguration{ServerURLs: []string{"localhost:27017"}},
		},
		{
			name: "no server",
			cfg: types.ServerConfiguration{
				SSHTunneling: types.SSHTunnelingConfiguration{ProxyURL: "bastion", ProxyUser: testUser},
			},
		},
		{
			name: "no proxy user",
			cfg:  tunneledConfig("localhost:27017", "bastion", types.SSHTunnelingConfiguration{ProxyUser: " "}),
		},
		{
			name: "unknown auth method",
			cfg:  tunneledConfig("localhost:27017", "bastion", types.SSHTunnelingConfiguration{AuthMethod: "KERBEROS"}),
		},
		{
			name: "missing private key",
			cfg: tunneledConfig("localhost:27017", "bastion", types.SSHTunnelingConfiguration{
				AuthMethod:     types.SSHAuthPrivateKey,
				PrivateKeyPath: "/nonexistent/id_rsa",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tun, err := OpenWithLocalAddress(tt.cfg, "127.0.0.1:0")
			assert.Error(t, err)
			assert.Nil(t, tun)
		})
	}

	_, err := Open(types.ServerConfiguration{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestProxyAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"bastion.example.com", "bastion.example.com:22", false},
		{"bastion.example.com:2222", "bastion.example.com:2222", false},
		{"10.0.0.5:22", "10.0.0.5:22", false},
		{"[::1]:2200", "[::1]:2200", false},
		{":22", "", true},
		{"bastion:ssh", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ProxyAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
