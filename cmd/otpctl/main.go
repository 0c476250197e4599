// Command otpctl inspects and clears OTP state for support and local testing.
//
//	otpctl list [email]
//	otpctl reset [email]
//
// Without an email both commands act on every stored record.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/application/otp"
	"github.com/AVISH911/donorhub-blood-donation/internal/application/ratelimit"
	"github.com/AVISH911/donorhub-blood-donation/internal/config"
	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/AVISH911/donorhub-blood-donation/internal/infrastructure/dynamo"
	"github.com/AVISH911/donorhub-blood-donation/internal/infrastructure/redisstore"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/clock"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/otpcode"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 || flag.NArg() > 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	svc, closeFn, err := openService(ctx, cfg)
	if err != nil {
		slog.Error("otpctl: open store", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	email := flag.Arg(1)
	switch flag.Arg(0) {
	case "list":
		err = list(ctx, os.Stdout, svc, email, time.Now().UTC())
	case "reset":
		err = reset(ctx, os.Stdout, svc, email)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("otpctl: "+flag.Arg(0), "email", email, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: otpctl list|reset [email]")
}

// stateService is the part of otp.Service the CLI drives.
type stateService interface {
	List(ctx context.Context, email string) ([]domain.OTPRecord, error)
	Consume(ctx context.Context, email string) error
}

func openService(ctx context.Context, cfg *config.Config) (*otp.Service, func(), error) {
	var (
		otpStore   otp.Store
		limitStore ratelimit.Store
		closeFn    = func() {}
	)
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb, err := redisstore.NewClient(ctx, cfg)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { _ = rdb.Close() }
		otpStore = redisstore.NewOTPStore(rdb)
		limitStore = redisstore.NewRateLimitStore(rdb)
	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, closeFn, err
		}
		otpStore = dynamo.NewOTPRepo(client, cfg.DynamoTables.OTPs)
		limitStore = dynamo.NewRateLimitRepo(client, cfg.DynamoTables.OTPAttempts)
	default:
		return nil, closeFn, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	clk := clock.New()
	limiter := ratelimit.New(limitStore, clk, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	// The CLI never issues codes, so no delivery gateway is wired.
	svc := otp.NewService(otpStore, limiter, nil, otpcode.New(), clk, otp.DefaultOptions())
	return svc, closeFn, nil
}

func list(ctx context.Context, w io.Writer, svc stateService, email string, now time.Time) error {
	recs, err := svc.List(ctx, email)
	if err != nil {
		return err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Email != recs[j].Email {
			return recs[i].Email < recs[j].Email
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tCODE\tVERIFIED\tATTEMPTS\tEXPIRES AT\tEXPIRED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\t%t\n",
			r.Email, r.Code, r.Verified, r.Attempts, r.ExpiresAt.UTC().Format(time.RFC3339), r.IsExpired(now))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d record(s)\n", len(recs))
	return nil
}

// reset clears one email, or every email that currently holds an OTP record.
func reset(ctx context.Context, w io.Writer, svc stateService, email string) error {
	emails := []string{email}
	if email == "" {
		recs, err := svc.List(ctx, "")
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		emails = emails[:0]
		for _, r := range recs {
			if !seen[r.Email] {
				seen[r.Email] = true
				emails = append(emails, r.Email)
			}
		}
		sort.Strings(emails)
	}
	for _, e := range emails {
		if err := svc.Consume(ctx, e); err != nil {
			return fmt.Errorf("reset %s: %w", e, err)
		}
		fmt.Fprintf(w, "reset %s\n", e)
	}
	fmt.Fprintf(w, "%d email(s) reset\n", len(emails))
	return nil
}
