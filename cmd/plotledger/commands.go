package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plotledger/internal/core"
	"plotledger/pkg/domain"
)

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return newRootCmdFor(&app{stdin: stdin, stdout: stdout, stderr: stderr})
}

func newRootCmdFor(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "plotledger",
		Short:         "Administer a rectangular plot ownership ledger",
		Long:          `plotledger records ownership of non-overlapping rectangles on a fixed grid, settles purchases of sub-rectangles against their prior owners and tracks proceeds and fees.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skipLedger"] == "true" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newGenesisCmd(a),
		newPurchaseCmd(a),
		newPriceCmd(a),
		newRecordCmd(a),
		newWithdrawCmd(a),
		newContentCmd(a),
		newConfigCmd(a),
	)
	closeAfterRun(a, root)
	return root
}

// closeAfterRun wraps every runnable command so the ledger is closed whether
// or not the command fails. Cobra skips post-run hooks after an error.
func closeAfterRun(a *app, cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		closeAfterRun(a, sub)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()
		return run(c, args)
	}
}

func newGenesisCmd(a *app) *cobra.Command {
	var (
		caller, rect, link, contentRef string
		price                          uint64
	)
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Create the initial plot owned by the maintainer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := parseRect(rect)
			if err != nil {
				return err
			}
			rec, err := a.svc.Genesis(cmd.Context(), caller, r, price, domain.ZoneMetadata{Link: link, ContentRef: contentRef})
			if err != nil {
				return err
			}
			return a.print(rec)
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "maintainer account")
	cmd.Flags().StringVar(&rect, "rect", "", "plot rectangle as x,y,w,h")
	cmd.Flags().Uint64Var(&price, "price", 0, "initial price per unit area (0 = not for sale)")
	cmd.Flags().StringVar(&link, "link", "", "zone link URL")
	cmd.Flags().StringVar(&contentRef, "content-ref", "", "zone content reference")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("rect")
	return cmd
}

func newPurchaseCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Submit a purchase request (JSON) with its tiling proof",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = a.stdin
			if file != "" && file != "-" {
				f, err := os.Open(file) // #nosec G304 -- operator supplied request file
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			var req core.PurchaseRequest
			dec := json.NewDecoder(r)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return fmt.Errorf("decode purchase request: %w", err)
			}
			receipt, err := a.svc.Purchase(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(receipt)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "request file, - for stdin")
	return cmd
}

func newPriceCmd(a *app) *cobra.Command {
	price := &cobra.Command{Use: "price", Short: "Read or change record prices"}
	var caller string
	set := &cobra.Command{
		Use:   "set <record-id> <price>",
		Short: "Set the per-unit price of a record you own",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[1], err)
			}
			receipt, err := a.svc.UpdatePrice(cmd.Context(), id, p, caller)
			if err != nil {
				return err
			}
			return a.print(receipt)
		},
	}
	set.Flags().StringVar(&caller, "caller", "", "record owner")
	_ = set.MarkFlagRequired("caller")
	get := &cobra.Command{
		Use:   "get <record-id>",
		Short: "Show the per-unit price of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.svc.PriceOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(map[string]uint64{"record_id": id, "price": p})
		},
	}
	price.AddCommand(set, get)
	return price
}

type recordView struct {
	domain.OwnershipRecord
	Price    uint64              `json:"price"`
	Holes    []uint64            `json:"holes"`
	Metadata domain.ZoneMetadata `json:"metadata"`
}

func newRecordCmd(a *app) *cobra.Command {
	record := &cobra.Command{Use: "record", Short: "Inspect ownership records"}
	get := &cobra.Command{
		Use:   "get <record-id>",
		Short: "Show a record with its price, holes and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rec, err := a.svc.Record(ctx, id)
			if err != nil {
				return err
			}
			view := recordView{OwnershipRecord: rec}
			if view.Price, err = a.svc.PriceOf(ctx, id); err != nil {
				return err
			}
			if view.Holes, err = a.svc.Holes(ctx, id); err != nil {
				return err
			}
			if view.Metadata, err = a.svc.Metadata(ctx, id); err != nil {
				return err
			}
			return a.print(view)
		},
	}
	count := &cobra.Command{
		Use:   "count",
		Short: "Show the number of records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.svc.RecordCount(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(map[string]uint64{"count": n})
		},
	}
	record.AddCommand(get, count)
	return record
}

func newWithdrawCmd(a *app) *cobra.Command {
	withdraw := &cobra.Command{Use: "withdraw", Short: "Withdraw fees or sale proceeds"}
	var caller, to string
	fees := &cobra.Command{
		Use:   "fees",
		Short: "Withdraw collected fees to the maintainer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if to == "" {
				to = caller
			}
			amount, err := a.svc.WithdrawFees(cmd.Context(), to, caller)
			if err != nil {
				return err
			}
			return a.print(map[string]any{"destination": to, "amount": amount})
		},
	}
	fees.Flags().StringVar(&caller, "caller", "", "maintainer account")
	fees.Flags().StringVar(&to, "to", "", "destination (defaults to the caller)")
	_ = fees.MarkFlagRequired("caller")

	var owner string
	proceeds := &cobra.Command{
		Use:   "proceeds",
		Short: "Withdraw sale proceeds credited to an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := a.svc.WithdrawProceeds(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return a.print(map[string]any{"owner": owner, "amount": amount})
		},
	}
	proceeds.Flags().StringVar(&owner, "owner", "", "seller account")
	_ = proceeds.MarkFlagRequired("owner")
	withdraw.AddCommand(fees, proceeds)
	return withdraw
}

func newContentCmd(a *app) *cobra.Command {
	content := &cobra.Command{Use: "content", Short: "Manage zone content payloads"}
	var contentType string
	put := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a file and print its content reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0]) // #nosec G304 -- operator supplied file
			if err != nil {
				return err
			}
			ref, err := a.svc.AttachContent(cmd.Context(), data, contentType)
			if err != nil {
				return err
			}
			return a.print(map[string]string{"content_ref": ref})
		},
	}
	put.Flags().StringVar(&contentType, "type", "application/octet-stream", "MIME type")
	content.AddCommand(put)
	return content
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipLedger": "true"},
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(a.stdout)
			defer func() { _ = enc.Close() }()
			return enc.Encode(cfg)
		},
	}
	return cmd
}

func parseRect(s string) (domain.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Rect{}, fmt.Errorf("invalid rect %q: want x,y,w,h", s)
	}
	var vals [4]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return domain.Rect{}, fmt.Errorf("invalid rect %q: %w", s, err)
		}
		vals[i] = uint32(v)
	}
	return domain.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q: %w", s, err)
	}
	return id, nil
}
