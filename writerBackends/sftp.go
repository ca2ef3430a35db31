package writerbackends

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"pixbatch/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

func sftpAuth(t Target) ([]ssh.AuthMethod, error) {
	if privateKey := t.get("privateKey"); privateKey != "" {
		// base64 or raw PEM
		keyBytes, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			keyBytes = []byte(privateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if password := t.get("password"); password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	return nil, fmt.Errorf("no auth method provided; set password or privateKey")
}

// hostKeyCallback pins the server key when "hostKey" (authorized_keys
// format) is stored with the credentials.
func hostKeyCallback(t Target) (ssh.HostKeyCallback, error) {
	pinned := t.get("hostKey")
	if pinned == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pinned))
	if err != nil {
		return nil, fmt.Errorf("parse host key: %w", err)
	}
	return ssh.FixedHostKey(key), nil
}

// writeSFTP uploads below the stored "remotePath" directory.
func writeSFTP(ctx context.Context, t Target, reader io.Reader) (string, error) {
	if err := t.require("host", "user", "remotePath"); err != nil {
		return "", err
	}
	auths, err := sftpAuth(t)
	if err != nil {
		return "", err
	}
	hostKey, err := hostKeyCallback(t)
	if err != nil {
		return "", err
	}

	port := t.get("port")
	if port == "" {
		port = "22"
	}
	addr := net.JoinHostPort(t.get("host"), port)
	config := &ssh.ClientConfig{
		User:            t.get("user"),
		Auth:            auths,
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	}

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return "", fmt.Errorf("create sftp client: %w", err)
	}
	defer sftpClient.Close()

	remote := path.Join(t.get("remotePath"), t.ObjectKey())
	if err := mkdirAllSFTP(sftpClient, path.Dir(remote)); err != nil {
		return "", fmt.Errorf("ensure remote dir %s: %w", path.Dir(remote), err)
	}

	f, err := sftpClient.Create(remote)
	if err != nil {
		return "", fmt.Errorf("create remote file %s: %w", remote, err)
	}
	defer f.Close()

	if _, err := copyCtx(ctx, f, reader); err != nil {
		return "", fmt.Errorf("copy to remote file %s: %w", remote, err)
	}

	logger.Infof("Uploaded '%s' to %s", remote, addr)
	return fmt.Sprintf("sftp://%s%s", addr, remote), nil
}

// mkdirAllSFTP mimics os.MkdirAll on the remote side.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}

	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}
	for _, p := range strings.Split(dir, "/") {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
			if err := client.Mkdir(cur); err != nil {
				return fmt.Errorf("mkdir %s: %w", cur, err)
			}
		}
	}
	return nil
}
