package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/fernbooks/bankrecon/internal/batch"
	"github.com/fernbooks/bankrecon/internal/firestore"
	"github.com/fernbooks/bankrecon/internal/grid"
	"github.com/fernbooks/bankrecon/internal/importer"
	"github.com/fernbooks/bankrecon/internal/ingest"
	"github.com/fernbooks/bankrecon/internal/rules"
	"github.com/fernbooks/bankrecon/internal/store"
	"github.com/fernbooks/bankrecon/internal/store/sqlite"
	"github.com/fernbooks/bankrecon/internal/ui"
)

const version = "0.1.0"

// closableStore is what openStore returns; both backends carry a Close.
type closableStore interface {
	store.Store
	Close() error
}

func usage() {
	fmt.Fprint(os.Stderr, `bankrecon - Bank statement import and rule-based classification

Usage:
  bankrecon <command> [flags]

Commands:
  preview     Analyze a statement file without writing anything
  import      Import a statement file as bank transactions
  import-ofx  Import an OFX/QFX download as bank transactions
  rules       Manage classification rules (load, list, delete)
  evaluate    Run rule evaluation over pending transactions
  version     Show version

Store flags (every command):
  -db <path>        sqlite database file (default bankrecon.db)
  -project <id>     use Cloud Firestore with this project instead

Examples:
  # Preview a statement before importing
  bankrecon preview -file statement.csv -account "HDFC Current"

  # Import, remembering the detected layout for this account
  bankrecon import -file statement.xlsx -account "HDFC Current" -company "Fern Books Inc" -remember

  # Import a downloaded OFX file
  bankrecon import-ofx -file download.ofx -account "HDFC Current" -company "Fern Books Inc"

  # Load classification rules from YAML and evaluate pending transactions
  bankrecon rules load -file rules.yaml
  bankrecon evaluate

`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "preview":
		err = runPreview(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "import-ofx":
		err = runImportOFX(os.Args[2:])
	case "rules":
		err = runRules(os.Args[2:])
	case "evaluate":
		err = runEvaluate(os.Args[2:])
	case "version":
		fmt.Printf("bankrecon version %s\n", version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}

// storeFlags registers the shared backend-selection flags on a command's
// flag set.
func storeFlags(fs *flag.FlagSet) (dbPath, project, creds *string) {
	dbPath = fs.String("db", "bankrecon.db", "sqlite database file")
	project = fs.String("project", "", "Firestore project ID (overrides -db)")
	creds = fs.String("credentials", "", "Firestore credentials file (optional)")
	return
}

func openStore(ctx context.Context, dbPath, project, creds string) (closableStore, error) {
	if project != "" {
		return firestore.NewClient(ctx, project, creds)
	}
	return sqlite.Open(ctx, dbPath)
}

func runPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	file := fs.String("file", "", "Statement file (.csv, .xlsx or .xls) (required)")
	account := fs.String("account", "", "Bank account the statement belongs to (required)")
	dbPath, project, creds := storeFlags(fs)
	fs.Parse(args)

	if *file == "" || *account == "" {
		return errors.New("-file and -account are required")
	}

	ctx := context.Background()
	st, err := openStore(ctx, *dbPath, *project, *creds)
	if err != nil {
		return err
	}
	defer st.Close()

	preview, err := previewFile(ctx, st, *file, *account)
	if err != nil {
		return err
	}

	printPreview(preview)
	return nil
}

func previewFile(ctx context.Context, st store.Store, file, account string) (*importer.Preview, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	ext := strings.ToLower(filepath.Ext(file))

	preview, err := importer.New(st).Preview(ctx, content, ext, account)
	if err != nil {
		if errors.Is(err, grid.ErrUnsupportedFileType) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		return nil, err
	}
	return preview, nil
}

func printPreview(preview *importer.Preview) {
	det := preview.Detection

	ui.Header("Statement Preview")
	ui.Info("Header detected at row %d", det.HeaderIndex)
	for _, col := range det.Columns {
		ui.Info("  column %d (%s): %s", col.Index, col.Header, col.Role)
	}
	ui.Info("Amount format: %s", det.Classification.AmountFormat)
	if det.Classification.DateLayout != "" {
		ui.Info("Date layout: %s", det.Classification.DateLayout)
	}

	ui.Info("%d transaction rows (grid rows %d to %d)", len(det.Transactions), det.StartIndex, det.EndIndex)
	if det.Summary.StartDate != "" {
		ui.BlueText("Period %s to %s, closing balance %s",
			det.Summary.StartDate, det.Summary.EndDate, det.Summary.ClosingBalance)
	}

	if len(preview.Conflicts) > 0 {
		ui.Warning("%d submitted transactions already exist in this period:", len(preview.Conflicts))
		for _, txn := range preview.Conflicts {
			ui.YellowText("  %s  %s  %s", txn.Date, txn.Amount(), txn.Description)
		}
	} else {
		ui.Success("No conflicting transactions in this period")
	}
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "Statement file (.csv, .xlsx or .xls) (required)")
	account := fs.String("account", "", "Bank account the statement belongs to (required)")
	company := fs.String("company", "", "Company the transactions belong to")
	currency := fs.String("currency", "", "Transaction currency")
	remember := fs.Bool("remember", false, "Save the detected layout for this account")
	force := fs.Bool("force", false, "Import even when conflicting transactions exist")
	dbPath, project, creds := storeFlags(fs)
	fs.Parse(args)

	if *file == "" || *account == "" {
		return errors.New("-file and -account are required")
	}

	ctx := context.Background()
	st, err := openStore(ctx, *dbPath, *project, *creds)
	if err != nil {
		return err
	}
	defer st.Close()

	preview, err := previewFile(ctx, st, *file, *account)
	if err != nil {
		return err
	}
	printPreview(preview)

	if len(preview.Conflicts) > 0 && !*force {
		return fmt.Errorf("refusing to import over %d conflicting transactions (use -force to override)", len(preview.Conflicts))
	}
	if len(preview.Detection.Transactions) == 0 {
		return errors.New("no importable transaction rows found")
	}

	result, err := importer.New(st).Commit(ctx, preview.Detection, importer.CommitRequest{
		Company:        *company,
		BankAccount:    *account,
		Currency:       *currency,
		RememberLayout: *remember,
	})
	if err != nil {
		if result != nil && result.Imported > 0 {
			ui.Warning("Imported %d of %d transactions before failing; re-run preview to resume", result.Imported, result.Total)
		}
		return err
	}

	ui.Success("Imported %d transactions", result.Imported)
	return classifyImported(ctx, st)
}

// classifyImported runs rule evaluation over the freshly submitted
// transactions before the process exits.
func classifyImported(ctx context.Context, st store.Store) error {
	evalResult, err := batch.NewEvaluator(st).Run(ctx, false)
	if err != nil {
		return err
	}
	ui.Success("Evaluated %d transactions, %d matched a rule", evalResult.Evaluated, evalResult.Matched)
	if evalResult.Failed > 0 {
		ui.Warning("%d evaluations failed to record; re-run evaluate", evalResult.Failed)
	}
	return nil
}

func runImportOFX(args []string) error {
	fs := flag.NewFlagSet("import-ofx", flag.ExitOnError)
	file := fs.String("file", "", "OFX or QFX file (required)")
	account := fs.String("account", "", "Bank account the download belongs to (required)")
	company := fs.String("company", "", "Company the transactions belong to")
	currency := fs.String("currency", "", "Transaction currency")
	dbPath, project, creds := storeFlags(fs)
	fs.Parse(args)

	if *file == "" || *account == "" {
		return errors.New("-file and -account are required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", *file, err)
	}
	defer f.Close()

	ctx := context.Background()
	st, err := openStore(ctx, *dbPath, *project, *creds)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := importer.New(st).CommitCandidates(ctx, ingest.OFX{}, f, importer.CommitRequest{
		Company:     *company,
		BankAccount: *account,
		Currency:    *currency,
	})
	if err != nil {
		if result != nil && result.Imported > 0 {
			ui.Warning("Imported %d of %d transactions before failing", result.Imported, result.Total)
		}
		return err
	}

	ui.Success("Imported %d transactions", result.Imported)
	return classifyImported(ctx, st)
}

func runRules(args []string) error {
	if len(args) < 1 {
		return errors.New("rules requires a subcommand: load, list or delete")
	}

	switch args[0] {
	case "load":
		return runRulesLoad(args[1:])
	case "list":
		return runRulesList(args[1:])
	case "delete":
		return runRulesDelete(args[1:])
	default:
		return fmt.Errorf("unknown rules subcommand %q", args[0])
	}
}

func runRulesLoad(args []string) error {
	fs := flag.NewFlagSet("rules load", flag.ExitOnError)
	file := fs.String("file", "", "Rules YAML file (required)")
	dbPath, project, creds := storeFlags(fs)
	fs.Parse(args)

	if *file == "" {
		return errors.New("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", *file, err)
	}
	ruleDocs, err := rules.LoadRules(data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, *dbPath, *project, *creds)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, rule := range ruleDocs {
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		if err := st.CreateRule(ctx, rule); err != nil {
			return err
		}
		ui.Success("Loaded rule %q (priority %d)", rule.Name, rule.Priority)
	}
	return nil
}

func runRulesList(args []string) error {
	fs := flag.NewFlagSet("rules list", flag.ExitOnError)
	dbPath, project, creds := storeFlags(fs)
	fs.Parse(args)

	ctx := context.Background()
	st, err := openStore(ctx, *dbPath, *project, *creds)
	if err != nil {
		return err
	}
	defer st.Close()

	ruleDocs, err := st.ListRules(ctx)
	if err != nil {
		return err
	}
	if len(ruleDocs) == 0 {
		ui.Info("No rules defined")
		return nil
	}

	for _, rule := range ruleDocs {
		ui.Info("%3d  %-30s  %-12s  %s  (%s)", rule.Priority, rule.Name, rule.TransactionType, rule.ClassifyAs, rule.ID)
	}
	return nil
}

func runRulesDelete(args []string) error {
	fs := flag.NewFlagSet("rules delete", flag.ExitOnError)
	id := fs.String("id", "", "Rule ID to delete (required)")
	dbPath, project, creds := storeFlags(fs)
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}

	ctx := context.Background()
	st, err := openStore(ctx, *dbPath, *project, *creds)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRule(ctx, *id); err != nil {
		return err
	}
	ui.Success("Deleted rule %s", *id)
	return nil
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	force := fs.Bool("force", false, "Re-evaluate transactions already processed")
	dbPath, project, creds := storeFlags(fs)
	fs.Parse(args)

	ctx := context.Background()
	st, err := openStore(ctx, *dbPath, *project, *creds)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := batch.NewEvaluator(st).Run(ctx, *force)
	if err != nil {
		return err
	}

	ui.Success("Evaluated %d transactions, %d matched a rule", result.Evaluated, result.Matched)
	if result.Failed > 0 {
		ui.Warning("%d evaluations failed to record; re-run evaluate", result.Failed)
	}
	return nil
}
