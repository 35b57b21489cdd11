package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/lifecycle"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
)

// errCancelled marks a write the user declined at the signing prompt.
var errCancelled = errors.New("cancelled")

// buildFunc builds the action to run. v is nil for actions outside an
// organization.
type buildFunc func(ctx context.Context, b *governance.Builder, v *orgmodel.View) (*governance.Action, error)

// writeFlags are the flags every write command shares.
func writeFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("write", pflag.ContinueOnError)
	fs.Bool("watch", false, "open the monitor until the write is mined and indexed")
	fs.Bool("wait", false, "block until the indexer reflects the write")
	return fs
}

func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().AddFlagSet(writeFlags())
}

// runWrite opens a signing session, builds one action and executes it.
// Org-scoped actions load --org first.
func runWrite(cmd *cobra.Command, orgScoped bool, build buildFunc) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var (
		s   *session.Session
		v   *orgmodel.View
		err error
	)
	if orgScoped {
		s, v, err = openOrg(ctx, true)
	} else {
		s, err = openSession(ctx, true)
	}
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	action, err := build(ctx, s.Builder(ctx), v)
	if err != nil {
		return fail(err)
	}

	var res *lifecycle.Result
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		res, err = watchWrite(ctx,
			func(ctx context.Context) (*lifecycle.Result, error) { return s.Execute(ctx, action) },
			func(ctx context.Context) error { return runMonitor(ctx, s, true) })
	} else {
		res, err = s.Execute(ctx, action)
	}
	if err != nil {
		return fail(err)
	}
	if err := report(action, res); err != nil {
		return err
	}
	if wait, _ := cmd.Flags().GetBool("wait"); wait && res.Receipt != nil {
		waitIndexed(ctx, s, 250*time.Millisecond)
	}
	return nil
}

// watchWrite runs exec alongside the monitor and returns exec's outcome
// once both have finished. Quitting the monitor early does not abandon the
// write; a monitor failure is logged and the write still completes.
func watchWrite(ctx context.Context, exec func(context.Context) (*lifecycle.Result, error), monitor func(context.Context) error) (*lifecycle.Result, error) {
	type outcome struct {
		res *lifecycle.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := exec(ctx)
		done <- outcome{res, err}
	}()
	if err := monitor(ctx); err != nil {
		slog.Warn("monitor exited", "err", err)
	}
	o := <-done
	return o.res, o.err
}

// report prints the outcome of an executed action. Notifications already
// went to stderr; this is the command's stdout result.
func report(a *governance.Action, res *lifecycle.Result) error {
	if jsonFlag {
		out := map[string]interface{}{
			"action":  a.Name,
			"state":   res.Record.State,
			"tx_hash": res.Record.TxHash,
			"pending": res.Pending,
		}
		if res.Receipt != nil {
			out["block"] = res.Receipt.BlockNumber
			out["gas_used"] = res.Receipt.GasUsed
		}
		if a.Deployment != nil {
			out["org_id"] = fmt.Sprintf("0x%x", a.Deployment.OrgId)
		}
		if err := output.JSON(out); err != nil {
			return err
		}
		if res.Cancelled {
			return errCancelled
		}
		return nil
	}

	switch {
	case res.Cancelled:
		output.Warning("%s cancelled", a.Name)
		return errCancelled
	case res.Pending:
		output.Info("%s sent (%s) but not mined yet; `po monitor` keeps tracking it", a.Name, output.ShortAddress(res.Record.TxHash))
	default:
		if !verboseFlag {
			return nil
		}
		fmt.Println(output.FormatRecord(&res.Record, time.Now()))
	}
	return nil
}

// waitIndexed polls until no reconciliation is in flight or ctx ends.
func waitIndexed(ctx context.Context, s *session.Session, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for s.Reconciler().Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
