package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/neovim/go-client/nvim"

	"codetab/config"
	"codetab/engine"
	"codetab/types"
)

type Daemon struct {
	config      Config
	engine      *engine.Engine
	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(cfg Config) (*Daemon, error) {
	path := cfg.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	fileCfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	resolver := config.NewResolver(fileCfg, types.APIKind(cfg.API), cfg.Model, nil)
	eng := engine.New(engine.Config{NsID: cfg.NsID}, resolver)

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config:     cfg,
		engine:     eng,
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	log.Printf("daemon listening on socket: %s", d.socketPath)

	d.engine.Start(d.ctx)

	d.setupShutdownHandling()

	go d.acceptConnections()
	go d.monitorIdleShutdown()

	<-d.ctx.Done()
	log.Printf("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	// Remove any stale socket from a previous run.
	os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				// Stop closed the listener; the Accept error is expected.
				return
			default:
				log.Printf("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		log.Printf("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		log.Printf("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	// The socket carries msgpack-rpc; the relay client on the other end
	// just pipes it through from Neovim's jobstart.
	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		log.Printf("error creating nvim client: %v", err)
		return
	}

	d.engine.SetNvim(n)

	select {
	case <-d.ctx.Done():
		return
	default:
		if err := n.Serve(); err != nil && err != io.EOF {
			log.Printf("error serving connection: %v", err)
		}
	}
}

// monitorIdleShutdown stops the daemon once every editor has disconnected.
// The grace period exists so a quick editor restart reuses the warm daemon.
func (d *Daemon) monitorIdleShutdown() {
	if d.config.DebugImmediateShutdown {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					log.Printf("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	} else {
		idleTimer := time.NewTimer(30 * time.Second)
		defer idleTimer.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-idleTimer.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					log.Printf("no clients connected for timeout period, shutting down daemon")
					d.Stop()
					return
				}
			}

			// Re-check on a short interval while idle, the long one otherwise.
			if atomic.LoadInt64(&d.clientCount) == 0 {
				idleTimer.Reset(5 * time.Second)
			} else {
				idleTimer.Reset(30 * time.Second)
			}
		}
	}
}

// Stop cancels the daemon context, which also stops the engine loop.
func (d *Daemon) Stop() {
	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0644)
	if err != nil {
		log.Printf("warning: could not write PID file: %v", err)
	}
	log.Printf("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not remove PID file: %v", err)
	}
}
