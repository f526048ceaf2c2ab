package internal

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	socketFile = "keymenu.sock"
	pidFile    = "daemon.pid"
	logFile    = "daemon.log"
)

type daemonRequest struct {
	Action Action `json:"action"`
	Stop   bool   `json:"stop,omitempty"`
}

// SocketPath returns the daemon's unix socket path under the user
// cache directory.
func SocketPath() (string, error) {
	dir, err := userCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, socketFile), nil
}

// LogPath returns the daemon log file path.
func LogPath() (string, error) {
	dir, err := userCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logFile), nil
}

// NotifyDaemon hands the requested action to a running daemon.
// Fails when no daemon is listening.
func NotifyDaemon(action Action) error {
	return send(daemonRequest{Action: action})
}

// StopDaemon asks a running daemon to shut down and drop its
// sessions.
func StopDaemon() error {
	return send(daemonRequest{Stop: true})
}

func send(req daemonRequest) error {
	sock, err := SocketPath()
	if err != nil {
		return err
	}
	conn, err := net.DialTimeout("unix", sock, time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	return json.NewEncoder(conn).Encode(req)
}

// DaemonPID reads the pid file of a running daemon.
func DaemonPID() (int, error) {
	dir, err := userCacheDir()
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// NewDaemonLogger returns a zap logger writing to the daemon log
// file.
func NewDaemonLogger() (*zap.Logger, error) {
	path, err := LogPath()
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

// Daemon is the long-lived process that holds the session cache
// between hotkey presses. Activation requests arrive on the unix
// socket; an inactivity timer bounded by the cache period shuts the
// daemon down so decrypted handles never outlive the policy.
type Daemon struct {
	Bridge *Bridge
	Log    *zap.Logger
	idle   time.Duration
}

// NewDaemon wraps a bridge. The inactivity window equals the cache
// period.
func NewDaemon(b *Bridge, log *zap.Logger) *Daemon {
	if log == nil {
		log = zap.NewNop()
	}
	return &Daemon{Bridge: b, Log: log, idle: b.Config.Policy.CachePeriod}
}

// Run executes the first cycle, then serves activation requests until
// the inactivity timer fires or a stop request arrives. With a zero
// cache period there is nothing worth keeping alive, so Run returns
// after the first cycle.
func (d *Daemon) Run(first Action) error {
	_, err := d.Bridge.Run(first)
	if err != nil {
		d.Log.Warn("cycle failed", zap.Error(err))
	}
	if d.idle == 0 {
		return err
	}

	sock, err := SocketPath()
	if err != nil {
		return err
	}
	os.Remove(sock) // stale socket from a crashed daemon
	ln, err := net.Listen("unix", sock)
	if err != nil {
		return fmt.Errorf("daemon listen: %w", err)
	}
	defer os.Remove(sock)

	dir, _ := userCacheDir()
	pidPath := filepath.Join(dir, pidFile)
	os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0600)
	defer os.Remove(pidPath)

	timer := time.AfterFunc(d.idle, func() {
		d.Log.Info("inactivity timeout, shutting down")
		ln.Close()
	})
	defer timer.Stop()
	d.Log.Info("daemon listening", zap.String("socket", sock))

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed by the inactivity timer.
			d.Bridge.Cache.Purge()
			return nil
		}
		timer.Stop()

		var req daemonRequest
		decodeErr := json.NewDecoder(conn).Decode(&req)
		conn.Close()
		if decodeErr != nil {
			d.Log.Warn("bad request", zap.Error(decodeErr))
			timer.Reset(d.idle)
			continue
		}
		if req.Stop {
			d.Log.Info("stop requested")
			d.Bridge.Cache.Purge()
			ln.Close()
			return nil
		}
		if _, err := d.Bridge.Run(req.Action); err != nil {
			d.Log.Warn("cycle failed", zap.Error(err))
		}
		timer.Reset(d.idle)
	}
}
