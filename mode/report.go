package mode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/store"
)

// report prints the run's in-memory counters and, for a signed-in user, the stored row.
func report(w io.Writer, storeSvc store.IService, timeout time.Duration, user model.UserIdentity, counters model.StatCounters) {
	fmt.Fprintln(w, "Final statistics (this run):")
	writeCounters(w, counters)

	if user.Anonymous() || storeSvc == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stats, err := storeSvc.Stats(ctx, user)
	if err != nil {
		lgr.Logger.Warn("could not fetch stored statistics", slog.String("user", string(user)), lgr.Err(err))
		return
	}

	fmt.Fprintf(w, "Stored statistics for %s (updated %s):\n", user, humanize.Time(stats.UpdatedAt))
	writeCounters(w, stats.Counters)
}

func writeCounters(w io.Writer, counters model.StatCounters) {
	for _, c := range model.KnownCategories {
		n, ok := counters[c]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-20s %s\n", c, humanize.Comma(n))
	}
	fmt.Fprintf(w, "  %-20s %s\n", "total", humanize.Comma(counters.Total()))
}
