package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/invento-software-limited/Smart-Vat-Challan/app"
	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
	"github.com/invento-software-limited/Smart-Vat-Challan/vschallan"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update the vendor configuration",
	Example: `  vschallan configure --base-url https://vat.example.gov.bd/api \
    --client-id my-client --client-secret s3cret --schedule Weekly`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := app.Connect(ctx, config.Load())
		if err != nil {
			return err
		}
		defer rt.Close()

		cfg := models.VendorConfiguration{}
		if existing, err := rt.Repo.GetVendorConfiguration(ctx); err == nil {
			cfg = *existing
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		flags := cmd.Flags()
		if v, _ := flags.GetString("base-url"); flags.Changed("base-url") {
			cfg.BaseUrl = v
		}
		if v, _ := flags.GetString("client-id"); flags.Changed("client-id") {
			cfg.ClientId = v
		}
		if v, _ := flags.GetString("client-secret"); flags.Changed("client-secret") {
			cfg.ClientSecret = v
			cfg.AccessToken = ""
			cfg.ExpiryDate = ""
		}
		if v, _ := flags.GetString("schedule"); flags.Changed("schedule") {
			schedule, err := models.ParseSyncSchedule(v)
			if err != nil {
				return err
			}
			cfg.SyncSchedule = schedule
		}
		if v, _ := flags.GetBool("disabled"); flags.Changed("disabled") {
			cfg.Disabled = v
		}

		saved, err := vschallan.SaveVendorConfiguration(ctx, rt.Repo, rt.Secrets, cfg)
		if err != nil {
			return err
		}
		return printJSON(cmd, saved)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Fetch or refresh the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
			token, err := svc.GetAccessToken(ctx, force)
			if err != nil {
				return err
			}
			return printJSON(cmd, vschallan.TokenResponse{ExpiryDate: token.ExpiryDate, CompanyID: token.CompanyID})
		})
	},
}

var referenceCmd = &cobra.Command{
	Use:       "reference [zone|vat_commission_rate|division|circle|service_type|all]",
	Short:     "Read or refresh reference data",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"zone", "vat_commission_rate", "division", "circle", "service_type", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		parent, _ := cmd.Flags().GetString("parent")
		return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
			if args[0] == "all" {
				report, err := svc.SyncReferenceData(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			}
			items, err := svc.GetReference(ctx, models.ReferenceKind(args[0]), force, parent)
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Submit retailer and branch registrations",
}

var registerRetailerCmd = &cobra.Command{
	Use:   "retailer [id]",
	Short: "Register a retailer by local id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
			result, err := svc.RegisterRetailer(ctx, uint(id))
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var registerBranchCmd = &cobra.Command{
	Use:   "branch [id]",
	Short: "Register a retailer branch by local id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
			result, err := svc.RegisterBranch(ctx, uint(id))
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:     "upload",
	Short:   "Upload a supporting document for a retailer",
	Example: `  vschallan upload --retailer R-1001 --category trade_license --path gs://docs/r1001/license.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		path, _ := cmd.Flags().GetString("path")
		retailer, _ := cmd.Flags().GetString("retailer")
		return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
			doc, err := svc.UploadFile(ctx, category, path, retailer)
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		})
	},
}

var transactionCmd = &cobra.Command{
	Use:   "transaction [name]",
	Short: "Run the submit hook for a stored POS transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := app.Build(ctx, config.Load())
		if err != nil {
			return err
		}
		defer rt.Close()

		txn, err := rt.Repo.GetPosTransaction(ctx, args[0])
		if err != nil {
			return err
		}
		invoice, err := rt.Service.HandlePosTransaction(ctx, *txn)
		if err != nil {
			return err
		}
		return printJSON(cmd, vschallan.TransactionResponse{Invoice: invoice})
	},
}

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Sync, inspect and download VAT invoices",
}

// syncResultCmd wraps an operation that reports through SyncResult.
func syncResultCmd(use, short string, run func(*vschallan.Service, context.Context, string) vschallan.SyncResult) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [invoice-number]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
				result := run(svc, ctx, args[0])
				if err := printJSON(cmd, result); err != nil {
					return err
				}
				return result.Err
			})
		},
	}
}

var invoiceDownloadCmd = &cobra.Command{
	Use:   "download [invoice-number]",
	Short: "Print the challan download URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
			url, err := svc.DownloadSchallan(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, vschallan.DownloadResponse{InvoiceNumber: args[0], DownloadURL: url})
		})
	},
}

var autoSyncCmd = &cobra.Command{
	Use:   "auto-sync",
	Short: "Run one scheduled sync pass (for cron)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *vschallan.Service) error {
			report, err := svc.AutoSync(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		})
	},
}

var operatorTokenCmd = &cobra.Command{
	Use:   "operator-token <subject>",
	Short: "Sign a bearer token for the operator HTTP API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Load()
		role, _ := cmd.Flags().GetString("role")
		token, err := utils.JwtGenerate([]byte(settings.APISecret), args[0], role, settings.TokenLifespan)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"token": token, "expires_in": settings.TokenLifespan.String()})
	},
}

func init() {
	configureCmd.Flags().String("base-url", "", "VAT authority API base URL")
	configureCmd.Flags().String("client-id", "", "vendor client id")
	configureCmd.Flags().String("client-secret", "", "vendor client secret (sealed when VSCHALLAN_SECRET_KEY is set)")
	configureCmd.Flags().String("schedule", "", "Daily, Weekly, Monthly, Quarterly or 'After Submit'")
	configureCmd.Flags().Bool("disabled", false, "disable the integration")

	tokenCmd.Flags().Bool("force", false, "refresh even if the stored token is still valid")

	referenceCmd.Flags().Bool("force", false, "fetch from the authority even if local rows exist")
	referenceCmd.Flags().String("parent", "", "parent remote id (zone, commission rate or division)")

	uploadCmd.Flags().String("category", "", "document category")
	uploadCmd.Flags().String("path", "", "local path or gs://bucket/object")
	uploadCmd.Flags().String("retailer", "", "remote retailer id")
	_ = uploadCmd.MarkFlagRequired("category")
	_ = uploadCmd.MarkFlagRequired("path")
	_ = uploadCmd.MarkFlagRequired("retailer")

	operatorTokenCmd.Flags().String("role", "operator", "role claim")

	registerCmd.AddCommand(registerRetailerCmd, registerBranchCmd)

	invoiceCmd.AddCommand(
		syncResultCmd("sync", "Send an invoice to the authority", (*vschallan.Service).SyncVatInvoice),
		syncResultCmd("details", "Refresh the stored invoice details", (*vschallan.Service).GetVatInvoiceDetails),
		syncResultCmd("return-sync", "Send the stored return of an invoice", (*vschallan.Service).SyncReturnVatInvoice),
		invoiceDownloadCmd,
	)

	rootCmd.AddCommand(configureCmd, tokenCmd, referenceCmd, registerCmd, uploadCmd, transactionCmd, invoiceCmd, autoSyncCmd, operatorTokenCmd)
}
