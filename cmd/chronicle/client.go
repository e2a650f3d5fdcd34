package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"chronicle/internal/api"
	"chronicle/internal/config"
)

const (
	pingTimeout        = 500 * time.Millisecond
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
)

// localServer is a `chronicle srv` child started for the duration of one command.
type localServer struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

func (s *localServer) stop() {
	if s == nil {
		return
	}
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
}

// withClient runs fn against the configured API server. When the server is on this
// machine and not answering, a child server is started over the same ledger and
// stopped once fn returns.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	err := client.Ping(ctx)
	cancel()
	if err != nil {
		if !isLoopbackURL(cfg.APIURL) {
			return fmt.Errorf("no chronicle server answering at %s: %w", cfg.APIURL, err)
		}
		srv, err := startLocalServer(cfg, client)
		if err != nil {
			return err
		}
		defer srv.stop()
	}
	return fn(client)
}

func startLocalServer(cfg *config.Config, client *api.Client) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(), serverEnv(cfg)...)
	srv := &localServer{cmd: cmd, stderr: &bytes.Buffer{}}
	cmd.Stderr = srv.stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverStartTimeout)
	defer cancel()
	if err := waitForServer(ctx, client); err != nil {
		srv.stop()
		if tail := lastLine(srv.stderr.String()); tail != "" {
			return nil, fmt.Errorf("start local server: %w (%s)", err, tail)
		}
		return nil, fmt.Errorf("start local server: %w", err)
	}
	return srv, nil
}

// serverEnv pins the child to the stores this invocation resolved, whatever config
// files the child would find on its own.
func serverEnv(cfg *config.Config) []string {
	env := []string{
		"CHRONICLE_API_URL=" + cfg.APIURL,
		"CHRONICLE_DB=" + cfg.DBPath,
		"CHRONICLE_BLOB_DIR=" + cfg.BlobDir(),
	}
	if cfg.Ledger.DSN != "" {
		env = append(env, "CHRONICLE_LEDGER_DSN="+cfg.Ledger.DSN)
	}
	return env
}

func waitForServer(ctx context.Context, client *api.Client) error {
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := client.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		var opErr *net.OpError
		if !errors.As(err, &opErr) {
			// Something that is not a chronicle server holds the port.
			return err
		}
		select {
		case <-ctx.Done():
			return errors.New("server did not start in time")
		case <-ticker.C:
		}
	}
}

func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
