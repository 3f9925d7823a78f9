package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danthegoodman1/joinplanner/crdb"
	"github.com/danthegoodman1/joinplanner/gologger"
	"github.com/danthegoodman1/joinplanner/http_server"
	"github.com/danthegoodman1/joinplanner/optimizer"
	"github.com/danthegoodman1/joinplanner/partitioner"
	"github.com/danthegoodman1/joinplanner/utils"
)

var logger = gologger.NewLogger()

func main() {
	logger.Debug().Msg("starting joinplanner")

	partitioner.RegisterFunctions()

	ctx := logger.WithContext(context.Background())
	store, err := newPlanStore(ctx)
	if err != nil {
		logger.Error().Err(err).Str("planStore", utils.PLAN_STORE).Msg("error creating plan store")
		os.Exit(1)
	}

	compiler := optimizer.NewCompiler()
	httpServer := http_server.StartHTTPServer(store, compiler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
	if err := store.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown plan store")
	}
	crdb.Close()
}
