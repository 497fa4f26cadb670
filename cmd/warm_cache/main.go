package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/app"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
)

func main() {
	var (
		schoolsFlag = flag.String("school", "", "comma separated school ids (default: every school)")
		dateFlag    = flag.String("date", "", "reference day YYYY-MM-DD (default: today)")
		dryRun      = flag.Bool("dry-run", false, "list the schools that would be warmed and exit")
		alerts      = flag.Bool("alerts", false, "also publish month-to-date low attendance alerts")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	today := attendance.NormalizeDate(time.Now())
	if s := strings.TrimSpace(*dateFlag); s != "" {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date %q: %v\n", s, err)
			os.Exit(2)
		}
		today = attendance.NormalizeDate(d)
	}

	ids, err := parseSchoolIDs(*schoolsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if len(ids) == 0 {
		schools, err := a.Repos.Schools.List(dbctx.Of(ctx))
		if err != nil {
			a.Log.Error("list schools failed", "error", err)
			a.Close()
			os.Exit(1)
		}
		for _, s := range schools {
			ids = append(ids, s.ID)
		}
	}

	if *dryRun {
		for _, id := range ids {
			fmt.Printf("would warm school=%s date=%s\n", id, today.Format(time.DateOnly))
		}
		return
	}

	failed := a.WarmSchools(ctx, ids, today)
	if *alerts {
		failed += a.AlertSchools(ctx, ids, today)
	}
	a.Log.Info("cache warm-up finished", "schools", len(ids), "failed", failed)
	if failed > 0 {
		a.Close()
		os.Exit(1)
	}
}

func parseSchoolIDs(raw string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid -school %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}
