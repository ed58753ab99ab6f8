package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent samples and the subscription table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	samples, err := store.LatestSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Time (UTC)\tPrice")
		for _, sample := range samples {
			fmt.Fprintf(writer, "%s\t%s\n",
				sample.Timestamp.UTC().Format(time.RFC3339),
				sample.Price.String(),
			)
		}
		writer.Flush()
	}

	subs, err := store.ListSubscriptions(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Fprintln(os.Stdout, "no subscriptions")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Subscriber\tThreshold\tLast Seen\tNotified")
	for _, sub := range subs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%t\n",
			sub.SubscriberID,
			sub.Threshold.String(),
			sub.LastSeenPrice.String(),
			sub.Notified,
		)
	}
	return writer.Flush()
}
