package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"apkdash/internal/devserver"
)

func main() {
	run := func() int {
		cfg, err := parseConfig(os.Environ())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		handler := devserver.NewHandler(log)
		server := &http.Server{
			Addr:    net.JoinHostPort(cfg.host(), strconv.Itoa(cfg.port())),
			Handler: handler.Router(),
		}

		log.Info("starting devserver", "addr", server.Addr)
		err = server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		return 0
	}
	os.Exit(run())
}
