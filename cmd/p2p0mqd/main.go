// Command p2p0mqd runs a single mesh participant: it loads
// configuration, opens the sqlite peer store and file certificate
// store, binds the ZMQ transport, and runs the node until signalled
// to stop.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/pyl1b/p2p0mq/internal/certstore"
	"github.com/pyl1b/p2p0mq/internal/config"
	"github.com/pyl1b/p2p0mq/internal/store"
	"github.com/pyl1b/p2p0mq/internal/telemetry"
	"github.com/pyl1b/p2p0mq/internal/transport"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/definition"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/node"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a TOML configuration file (optional)")
		dbPath      = flag.String("db", "p2p0mq.sqlite", "path to the sqlite peer store")
		certDir     = flag.String("cert-dir", "certs", "directory holding this node's certificate store")
		host        = flag.String("host", "0.0.0.0", "address to bind the inbound socket on")
		port        = flag.Int("port", 5570, "port to bind the inbound socket on")
		metricsAddr = flag.String("metrics-addr", "", "address to serve /metrics on (empty disables telemetry)")
		debug       = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	log := definition.NewDefaultLogger()
	log.ToggleDebug(*debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	repo, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("opening peer store: %v", errors.Wrap(types.ErrUnreadableDatabase, err.Error()))
	}
	defer repo.Close()

	ctx := context.Background()
	localID, err := repo.LocalIdentity(ctx)
	if err != nil {
		log.Fatalf("loading local identity: %v", err)
	}

	certs := certstore.New(*certDir)
	if err := certs.EnsureLocalIdentity(localID); err != nil {
		log.Fatalf("preparing certificate store: %v", errors.Wrap(types.ErrBadCertLayout, err.Error()))
	}

	var hook telemetry.Hook = telemetry.NoOp()
	if *metricsAddr != "" {
		ph := telemetry.NewPrometheusHook()
		hook = ph
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", ph.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Errorf("metrics server stopped: %v", err)
			}
		}()
	}
	zmqTransport := transport.New()

	n := node.New(node.Options{
		LocalID:   localID,
		LocalHost: *host,
		LocalPort: *port,
		Config:    cfg,
		Log:       log,
		Repo:      repo,
		CertStore: certs,
		Transport: zmqTransport,
		Hook:      hook,
	})

	if err := n.Start(); err != nil {
		log.Fatalf("starting node: %v", err)
	}
	log.Infof("p2p0mqd listening as %s on %s:%d", localID, *host, *port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Infof("shutting down")
	n.Stop()
}
