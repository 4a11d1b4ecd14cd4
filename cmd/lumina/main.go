// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

// Command lumina is the command-line client for the Lumina service.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the credential store (file by default, Redis when configured).
//  4. Wire transport, session client, and session manager.
//  5. Resolve the cached session.
//  6. Dispatch the subcommand.
//
// No business logic lives here. All wiring is explicit constructor injection.
//
// Subcommands:
//
//	register    Start a registration (delivers an OTP)
//	verify      Complete a registration with the delivered OTP
//	login       Authenticate with email and password
//	logout      Revoke and clear the current session
//	whoami      Show the current profile
//	forgot      Request a password-reset OTP
//	reset       Complete a password reset
//	search      Run an authenticated search
//	imagine     Generate an image from a prompt
//	dev-server  Run the bundled in-memory identity service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumina-labs/lumina-go/internal/credstore"
	"github.com/lumina-labs/lumina-go/internal/idserver"
	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
	"github.com/lumina-labs/lumina-go/internal/platform/config"
	"github.com/lumina-labs/lumina-go/internal/resources"
	"github.com/lumina-labs/lumina-go/internal/session"
	"github.com/lumina-labs/lumina-go/internal/transport"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", "lumina"))
	slog.SetDefault(log)

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "lumina"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	// dev-server needs none of the client wiring.
	if command == "dev-server" {
		runDevServer(cfg, log)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ── 3. Credential Store ───────────────────────────────────────────────
	var store credstore.Store
	if cfg.RedisURL != "" {
		redisStore, err := credstore.NewRedisStore(ctx, cfg.RedisURL, log)
		must(log, err, "connect to redis credential store")
		defer func() {
			if cerr := redisStore.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
		store = redisStore
	} else {
		fileStore, err := credstore.NewFileStore(cfg.CredentialsPath, log)
		must(log, err, "open credential file store")
		store = fileStore
	}

	// ── 4. Domain Wiring ──────────────────────────────────────────────────
	tp := transport.New(transport.Options{
		BaseURL: cfg.APIBaseURL,
		Store:   store,
		Logger:  log,
		Timeout: cfg.HTTPTimeout,
	})
	client := session.NewClient(tp, store, log)
	manager := session.NewManager(client, tp, store, log)
	api := resources.NewClient(tp)

	// ── 5. Session Resolution ─────────────────────────────────────────────
	// login and register work from a cold state; everything else wants the
	// cached session resolved first.
	switch command {
	case "login", "register", "verify", "forgot", "reset":
	default:
		if err := manager.Initialize(ctx); err != nil {
			log.Debug("cached session did not resolve", slog.Any("error", err))
		}
	}

	// ── 6. Dispatch ───────────────────────────────────────────────────────
	if err := dispatch(ctx, command, args, manager, client, api); err != nil {
		fail(err)
	}
}

func dispatch(
	ctx context.Context,
	command string,
	args []string,
	manager *session.Manager,
	client *session.Client,
	api *resources.Client,
) error {
	switch command {
	case "register":
		return runRegister(ctx, client, args)
	case "verify":
		return runVerify(ctx, client, args)
	case "login":
		return runLogin(ctx, manager, args)
	case "logout":
		return runLogout(ctx, manager)
	case "whoami":
		return runWhoami(ctx, manager)
	case "forgot":
		return runForgot(ctx, client, args)
	case "reset":
		return runReset(ctx, client, args)
	case "search":
		return runSearch(ctx, manager, api, args)
	case "imagine":
		return runImagine(ctx, manager, api, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// # Account Commands

func runRegister(ctx context.Context, client *session.Client, args []string) error {
	flags := flag.NewFlagSet("register", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	phone := flags.String("phone", "", "phone number (+91 followed by 10 digits)")
	first := flags.String("first-name", "", "first name")
	last := flags.String("last-name", "", "last name")
	_ = flags.Parse(args)

	receipt, err := client.Register(ctx, session.RegisterInput{
		Email:       *email,
		Password:    *password,
		PhoneNumber: *phone,
		FirstName:   *first,
		LastName:    *last,
	})
	if err != nil {
		return err
	}

	fmt.Println(receipt.Message)
	fmt.Printf("Verify with: lumina verify -phone %s -otp <code> -email %s -password <password> -first-name %q -last-name %q\n",
		receipt.PhoneNumber, *email, *first, *last)
	return nil
}

func runVerify(ctx context.Context, client *session.Client, args []string) error {
	flags := flag.NewFlagSet("verify", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	phone := flags.String("phone", "", "phone number")
	first := flags.String("first-name", "", "first name")
	last := flags.String("last-name", "", "last name")
	otp := flags.String("otp", "", "6-digit verification code")
	_ = flags.Parse(args)

	err := client.VerifyRegistration(ctx, session.RegisterInput{
		Email:       *email,
		Password:    *password,
		PhoneNumber: *phone,
		FirstName:   *first,
		LastName:    *last,
	}, *otp)
	if err != nil {
		return err
	}

	fmt.Println("Registration verified. Sign in with: lumina login")
	return nil
}

func runLogin(ctx context.Context, manager *session.Manager, args []string) error {
	flags := flag.NewFlagSet("login", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	_ = flags.Parse(args)

	profile, err := manager.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	fmt.Printf("Signed in as %s <%s>\n", profile.DisplayName(), profile.Email)
	return nil
}

func runLogout(ctx context.Context, manager *session.Manager) error {
	if err := manager.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func runWhoami(ctx context.Context, manager *session.Manager) error {
	_ = ctx

	user := manager.User()
	if user == nil {
		return apperr.Unauthorized("Not signed in")
	}

	fmt.Printf("%s <%s>\n", user.DisplayName(), user.Email)
	if user.PhoneNumber != nil {
		fmt.Printf("phone: %s\n", *user.PhoneNumber)
	}
	if user.Role != nil {
		fmt.Printf("role:  %s\n", *user.Role)
	}
	if !user.Complete() {
		fmt.Println("(profile is partial; some fields are not yet known)")
	}
	return nil
}

func runForgot(ctx context.Context, client *session.Client, args []string) error {
	flags := flag.NewFlagSet("forgot", flag.ExitOnError)
	phone := flags.String("phone", "", "phone number")
	_ = flags.Parse(args)

	message, err := client.RequestPasswordReset(ctx, *phone)
	if err != nil {
		return err
	}

	fmt.Println(message)
	return nil
}

func runReset(ctx context.Context, client *session.Client, args []string) error {
	flags := flag.NewFlagSet("reset", flag.ExitOnError)
	phone := flags.String("phone", "", "phone number")
	otp := flags.String("otp", "", "6-digit reset code")
	password := flags.String("new-password", "", "new password")
	_ = flags.Parse(args)

	message, err := client.ConfirmPasswordReset(ctx, *phone, *otp, *password)
	if err != nil {
		return err
	}

	fmt.Println(message)
	fmt.Println("Sign in with: lumina login")
	return nil
}

// # Resource Commands

func runSearch(ctx context.Context, manager *session.Manager, api *resources.Client, args []string) error {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	query := flags.String("query", "", "search query")
	_ = flags.Parse(args)

	manager.EnsureFresh(ctx)

	results, err := api.Search(ctx, *query)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for _, result := range results {
		fmt.Printf("%s\n  %s\n  %s\n", result.Title, result.Description, result.URL)
	}
	return nil
}

func runImagine(ctx context.Context, manager *session.Manager, api *resources.Client, args []string) error {
	flags := flag.NewFlagSet("imagine", flag.ExitOnError)
	prompt := flags.String("prompt", "", "image prompt")
	_ = flags.Parse(args)

	manager.EnsureFresh(ctx)

	image, err := api.GenerateImage(ctx, *prompt)
	if err != nil {
		return err
	}

	fmt.Println(image.URL)
	return nil
}

// # Development Server

// runDevServer hosts the bundled identity service until SIGINT/SIGTERM.
func runDevServer(cfg *config.Config, log *slog.Logger) {
	authServer := idserver.New(cfg.DevServerSecret, log)

	server := &http.Server{
		Addr:              ":" + cfg.DevServerPort,
		Handler:           authServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("dev_server_listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server stopped cleanly")
}

// # Helpers

// fail prints a human-readable error and exits non-zero. Validation errors
// list the offending fields so scripted callers can correct and retry.
func fail(err error) {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		fmt.Fprintf(os.Stderr, "error: %s\n", appErr.Message)
		for _, field := range appErr.Details {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field.Field, field.Message)
		}
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: lumina <command> [flags]

commands:
  register    Start a registration (delivers an OTP)
  verify      Complete a registration with the delivered OTP
  login       Authenticate with email and password
  logout      Revoke and clear the current session
  whoami      Show the current profile
  forgot      Request a password-reset OTP
  reset       Complete a password reset
  search      Run an authenticated search
  imagine     Generate an image from a prompt
  dev-server  Run the bundled in-memory identity service`)
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
