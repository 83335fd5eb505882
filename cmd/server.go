package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mdobak/go-xerrors"
)

// serve blocks until the server stops. On SIGINT or SIGTERM it drains open
// requests, cancels background work through stopBackground and waits for it.
func (app *application) serve(stopBackground context.CancelFunc) error {
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(app.config.Port),
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	shutdownError := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("Shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		err := server.Shutdown(ctx)
		stopBackground()
		app.logger.Info("Completing background tasks", "addr", server.Addr)
		app.wg.Wait()
		shutdownError <- err
	}()

	app.logger.Info("Starting server", "addr", server.Addr, "env", app.config.Env)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return xerrors.New(err)
	}
	if err := <-shutdownError; err != nil {
		return xerrors.New(err)
	}

	app.logger.Info("Stopped server", "addr", server.Addr)
	return nil
}
