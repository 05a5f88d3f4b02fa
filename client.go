package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"codetab/logger"
)

type Client struct {
	socketPath string
}

func NewClient() *Client {
	return &Client{
		socketPath: getSocketPath(),
	}
}

func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Neovim speaks msgpack-rpc over our stdio; pipe both directions into
	// the daemon socket and hold until either side closes.
	go func() {
		io.Copy(conn, os.Stdin)
		conn.Close()
	}()

	io.Copy(os.Stdout, conn)
	return nil
}

func (c *Client) EnsureDaemonRunning() error {
	running, pid := isDaemonRunning()
	if running {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}

	return c.startDaemon()
}

func (c *Client) startDaemon() error {
	logger.Debug("starting daemon...")

	// Detach fully: the daemon inherits our env (CODETAB_CONFIG) but gets
	// no stdio, since our own stdio belongs to the editor.
	cmd := []string{os.Args[0], "--daemon"}
	_, err := os.StartProcess(os.Args[0], cmd, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{nil, nil, nil},
	})
	if err != nil {
		return err
	}

	return c.waitForDaemon()
}

// waitForDaemon polls the PID file until the daemon is up, five seconds max.
func (c *Client) waitForDaemon() error {
	for i := 0; i < 50; i++ {
		if running, _ := isDaemonRunning(); running {
			logger.Debug("daemon started successfully")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon failed to start within timeout")
}
