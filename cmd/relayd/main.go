// Package main starts a Relay workflow server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaypro/relay-go/correlate"
	"github.com/relaypro/relay-go/engine"
	enginehttp "github.com/relaypro/relay-go/engine/http"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/metrics"
	"github.com/relaypro/relay-go/session"
	invhttp "github.com/relaypro/relay-go/subsystem/inventory/http"
	"github.com/relaypro/relay-go/transport/websocket"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/envflag"
	nanohttp "github.com/micromdm/nanolib/http"
	"github.com/micromdm/nanolib/http/trace"
	"github.com/micromdm/nanolib/log/stdlogfmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// overridden by -ldflags -X
var version = "unknown"

const (
	apiUsername = "relay"
	apiRealm    = "relay"
)

func main() {
	var (
		flDebug   = flag.Bool("debug", false, "log debug messages")
		flListen  = flag.String("listen", ":8080", "HTTP listen address")
		flVersion = flag.Bool("version", false, "print version and exit")
		flAPIKey  = flag.String("api", "", "API key for API endpoints")
		flStorage = flag.String("storage", "file", "name of storage backend")
		flDSN     = flag.String("storage-dsn", "", "data source name (e.g. connection string or path)")
		flWorkSec = flag.Uint("worker-interval", uint(engine.DefaultDuration/time.Second), "interval for reply timeout sweeps in seconds")
		flReplyTO = flag.Duration("reply-timeout", correlate.DefaultTimeout, "default command reply timeout")
		flShards  = flag.Int("shards", session.DefaultShards, "number of session registry shards")
		flDump    = flag.Bool("dump", false, "dump workflow connection frames to stdout")
	)
	envflag.Parse("RELAY_", []string{"version"})

	if *flVersion {
		fmt.Println(version)
		return
	}

	logger := stdlogfmt.New(stdlogfmt.WithDebugFlag(*flDebug))

	// configure storage
	storage, err := parseStorage(*flStorage, *flDSN)
	if err != nil {
		logger.Info(logkeys.Message, "parse storage", logkeys.Error, err)
		os.Exit(1)
	}

	// metrics are exposed on their own registry
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	// configure the workflow engine
	e := engine.New(
		engine.WithLogger(logger.With("service", "engine")),
		engine.WithMetrics(m),
		engine.WithRegistry(session.NewRegistry(session.WithShards(*flShards))),
		engine.WithCorrelator(correlate.New(
			correlate.WithLogger(logger.With("service", "correlator")),
			correlate.WithMetrics(m),
			correlate.WithTimeout(*flReplyTO),
		)),
		engine.WithStorage(storage.session),
		engine.WithInventory(storage.inventory),
	)

	// register workflows with the engine
	err = registerWorkflows(logger, e)
	if err != nil {
		logger.Info(logkeys.Message, "registering workflows", logkeys.Error, err)
		os.Exit(1)
	}

	mux := flow.New()

	mux.Handle("/version", nanohttp.NewJSONVersionHandler(version))
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}), "GET")

	if *flAPIKey != "" {
		mux.Group(func(mux *flow.Mux) {
			mux.Use(func(h http.Handler) http.Handler {
				return nanohttp.NewSimpleBasicAuthHandler(h, apiUsername, *flAPIKey, apiRealm)
			})

			enginehttp.HandleAPIv1("/v1", mux, logger, e, storage.session)
			invhttp.HandleAPIv1("/v1", mux, logger, storage.inventory)
		})
	}

	// workflow connections from the Relay server
	wsOpts := []websocket.Option{websocket.WithLogger(logger.With("service", "websocket"))}
	if *flDump {
		wsOpts = append(wsOpts, websocket.WithDump(os.Stdout))
	}
	mux.Handle("/:"+websocket.DefaultParam, websocket.New(e, wsOpts...), "GET")

	// seed for newTraceID
	rand.Seed(time.Now().UnixNano())

	srv := &http.Server{
		Addr:    *flListen,
		Handler: trace.NewTraceLoggingHandler(mux, logger.With("handler", "log"), newTraceID),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if *flWorkSec > 0 {
		w := engine.NewWorker(
			e,
			engine.WithWorkerLogger(logger.With("service", "engine worker")),
			engine.WithWorkerDuration(time.Second*time.Duration(*flWorkSec)),
		)
		g.Go(func() error {
			err := w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		logger.Info(logkeys.Message, "starting server", "listen", *flListen)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logs := []interface{}{logkeys.Message, "server shutdown"}
	if err != nil {
		logs = append(logs, logkeys.Error, err)
	}
	logger.Info(logs...)
}

// newTraceID generates a new HTTP trace ID for context logging.
func newTraceID(_ *http.Request) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
