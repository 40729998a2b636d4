package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/craftbill/internal/app"
	"github.com/fatflowers/craftbill/internal/app/service/account"
	"github.com/fatflowers/craftbill/internal/app/service/reconcile"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/pkg/types"
)

// withApp starts the service graph without the HTTP server, populates targets
// and runs fn.
func withApp(ctx context.Context, fn func() error, targets ...interface{}) error {
	a := fx.New(app.Core, fx.NopLogger, fx.Populate(targets...))
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	runErr := fn()

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("stop: %w", err)
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDeleteAccountCommand() *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete an account from the identity provider, Stripe and the local store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var svc *account.Service
			return withApp(cmd.Context(), func() error {
				report, err := svc.Delete(cmd.Context(), accountID)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if report.Result != account.ResultComplete {
					return fmt.Errorf("account deletion %s", report.Result)
				}
				return nil
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&accountID, "account-id", "", "internal account id")
	_ = cmd.MarkFlagRequired("account-id")
	return cmd
}

func newReconcileCommand() *cobra.Command {
	var subscriptionID string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-fetch a subscription from Stripe and overwrite the local row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				rec  *reconcile.Service
				subs *subscription.Service
			)
			return withApp(cmd.Context(), func() error {
				res, err := rec.Reconcile(cmd.Context(), subscriptionID)
				if err != nil {
					return err
				}
				row, err := subs.Upsert(cmd.Context(), nil, res.ToModel(res.Label()), types.SubscriptionChangeReasonReconciled, map[string]any{"source": "ctl"})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), row)
			}, &rec, &subs)
		},
	}
	cmd.Flags().StringVar(&subscriptionID, "subscription-id", "", "Stripe subscription id")
	_ = cmd.MarkFlagRequired("subscription-id")
	return cmd
}
