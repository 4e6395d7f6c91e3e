// Package main is a terminal client for the genio dashboard. It logs in,
// keeps the evolution series fresh with the keepalive poller and lets the
// user drive the chart from stdin. Every command counts as activity and
// keeps the session alive.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"genio/internal/keepalive"
	"genio/internal/version"
)

func main() {
	base := flag.String("url", "http://localhost:5000", "Base URL of the genio server")
	user := flag.String("user", os.Getenv("GENIO_WATCH_USER"), "CPF to log in with")
	schedule := flag.String("schedule", keepalive.DefaultSchedule, "Refresh schedule (cron spec)")
	ping := flag.Duration("ping", keepalive.DefaultPingInterval, "Minimum gap between session pings")
	debug := flag.Bool("debug", false, "Log poller failures")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(*base, *user, *schedule, *ping, log); err != nil {
		if errors.Is(err, keepalive.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, "Sua sessão expirou por inatividade. Entre novamente.")
			os.Exit(3)
		}
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
}

func run(base, user, schedule string, ping time.Duration, log logrus.FieldLogger) error {
	if user == "" {
		return errors.New("-user is required")
	}
	password := os.Getenv("GENIO_WATCH_PASSWORD")
	if password == "" {
		var err error
		if password, err = readPassword(); err != nil {
			return err
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client, err := keepalive.New(base,
		keepalive.WithHTTPClient(&http.Client{Timeout: 15 * time.Second, Jar: jar}),
		keepalive.WithLogger(log),
		keepalive.WithSchedule(schedule),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Login(ctx, user, password); err != nil {
		return err
	}

	view := newViewer(os.Stdout)
	client.OnSeries = view.setSeries
	client.OnExpired = func(loginURL string) {
		log.WithField("login", loginURL).Debug("session expired")
	}
	pinger := keepalive.NewPinger(client).WithInterval(ping)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func() {
		cancel(client.Run(ctx))
	}()
	go func() {
		cancel(readCommands(ctx, view, pinger, log))
	}()

	fmt.Printf("Conectado a %s. Digite help para ver os comandos.\n", base)
	<-ctx.Done()

	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errQuit), errors.Is(cause, context.Canceled):
		return nil
	case errors.Is(cause, keepalive.ErrSessionExpired):
		return keepalive.ErrSessionExpired
	}
	return cause
}

// readCommands runs stdin commands until quit or EOF. Each line pings the
// host through pinger before it runs.
func readCommands(ctx context.Context, view *viewer, pinger *keepalive.Pinger, log logrus.FieldLogger) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := pinger.Activity(ctx); errors.Is(err, keepalive.ErrSessionExpired) {
			return err
		}
		if err := view.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return errQuit
			}
			log.Debugf("command %q: %v", line, err)
			fmt.Fprintf(os.Stderr, "erro: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errQuit
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal; set GENIO_WATCH_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Senha: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}
