package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"hemindex/internal/config"
	"hemindex/internal/connectors"
	gmailconnector "hemindex/internal/connectors/gmail"
	imapconnector "hemindex/internal/connectors/imap"
	"hemindex/internal/extract"
	"hemindex/internal/labfeed"
	"hemindex/internal/listener"
	"hemindex/internal/logging"
	"hemindex/internal/pipeline"
	"hemindex/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "report:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "report file (pdf, image, html, xlsx, eml or text)")
		age := fs.Int("age", 0, "patient age in years")
		sex := fs.String("sex", "", "patient sex (M|F)")
		outputDir := fs.String("output-dir", cfg.OutputDir, "directory for report artifacts")
		format := fs.String("format", "text", "text|json")
		debug := fs.Bool("debug", false, "print extraction diagnostics to stderr")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		if *debug {
			printExtractionDebug(cfg, *input)
		}

		processor := pipeline.NewProcessingService(db, cfg)
		opts := pipeline.Options{PatientAge: ageFlag(*age), PatientSex: sexFlag(*sex)}
		result, err := processor.ProcessFile(context.Background(), *input, opts)
		var parseErr *pipeline.ParseError
		if errors.As(err, &parseErr) {
			fmt.Fprintf(os.Stderr, "Report parsing failed: %s\n", parseErr.Message)
			if len(parseErr.MissingFields) > 0 {
				fmt.Fprintf(os.Stderr, "missing fields: %s\n", strings.Join(parseErr.MissingFields, ", "))
			}
			fmt.Fprintln(os.Stderr, "values can be entered directly with calc:manual")
			os.Exit(1)
		}
		must(err)

		report, err := pipeline.GenerateReport(result, "text")
		must(err)
		fmt.Println(report)

		outputPath, err := pipeline.SaveResults(result, *outputDir, *format)
		must(err)
		fmt.Printf("Results saved to: %s\n", outputPath)
		if result.Parsing != nil && result.Parsing.ManualVerificationNeeded {
			fmt.Println("Manual verification recommended - some values had low confidence")
		}
	case "calc:manual":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		neutrophils := fs.String("neutrophils", "", "neutrophil count, e.g. '4.5' (x10³/L) or '4500 cells/uL'")
		lymphocytes := fs.String("lymphocytes", "", "lymphocyte count")
		platelets := fs.String("platelets", "", "platelet count")
		monocytes := fs.String("monocytes", "", "monocyte count (optional)")
		age := fs.Int("age", 0, "patient age in years")
		sex := fs.String("sex", "", "patient sex (M|F)")
		outputDir := fs.String("output-dir", "", "save report artifacts here (optional)")
		format := fs.String("format", "text", "text|json")
		_ = fs.Parse(os.Args[2:])
		if *neutrophils == "" || *lymphocytes == "" || *platelets == "" {
			must(fmt.Errorf("--neutrophils, --lymphocytes and --platelets are required"))
		}

		n := parseCount("neutrophils", *neutrophils)
		l := parseCount("lymphocytes", *lymphocytes)
		p := parseCount("platelets", *platelets)
		var m *float64
		if strings.TrimSpace(*monocytes) != "" {
			v := parseCount("monocytes", *monocytes)
			m = &v
		}

		processor := pipeline.NewProcessingService(db, cfg)
		opts := pipeline.Options{PatientAge: ageFlag(*age), PatientSex: sexFlag(*sex)}
		result, err := processor.ProcessManual(n, l, p, m, opts)
		must(err)

		report, err := pipeline.GenerateReport(result, "text")
		must(err)
		fmt.Println(report)

		if strings.TrimSpace(*outputDir) != "" {
			outputPath, err := pipeline.SaveResults(result, *outputDir, *format)
			must(err)
			fmt.Printf("Results saved to: %s\n", outputPath)
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", *provider, result.Fetched, result.Stored, result.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		age := fs.Int("age", 0, "patient age in years")
		sex := fs.String("sex", "", "patient sex (M|F)")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			opts := pipeline.Options{PatientAge: ageFlag(*age), PatientSex: sexFlag(*sex)}
			outcome, err := processor.ProcessByProviderMessageID(context.Background(), *provider, *messageID, opts)
			must(err)
			fmt.Printf("processed email id=%d status=%s report=%d\n", outcome.EmailID, outcome.Status, outcome.ReportID)
			return
		}
		processed, failed, err := processor.ProcessPending(context.Background(), *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d failed=%d\n", processed, failed)
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "feed:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		full := fs.Bool("full", false, "walk the whole pending backlog")
		_ = fs.Parse(os.Args[2:])
		svc := labfeed.NewSyncService(db, cfg)
		var count int
		if *full {
			count, err = svc.InitialSync(context.Background())
		} else {
			count, err = svc.Sync(context.Background())
		}
		must(err)
		fmt.Printf("feed sync complete: %d new documents\n", count)
	case "feed:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		processed, failed, err := processor.ProcessFeedPending(context.Background(), *batch)
		must(err)
		fmt.Printf("feed processing done processed=%d failed=%d\n", processed, failed)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		rows, err := db.GetExportRows()
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no processed reports to export"))
		}
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "report file path")
		output := fs.String("output", "", "output xlsx path")
		age := fs.Int("age", 0, "patient age in years")
		sex := fs.String("sex", "", "patient sex (M|F)")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}

		processor := pipeline.NewProcessingService(db, cfg)
		opts := pipeline.Options{PatientAge: ageFlag(*age), PatientSex: sexFlag(*sex)}
		result, err := processor.ProcessFile(context.Background(), *input, opts)
		must(err)

		report, err := pipeline.GenerateReport(result, "text")
		must(err)
		fmt.Println(report)

		for _, format := range []string{"text", "json"} {
			if _, err := pipeline.SaveResults(result, cfg.OutputDir, format); err != nil {
				must(err)
			}
		}
		rows, err := db.GetExportRows()
		must(err)
		must(pipeline.ExportRowsToXLSX(rows, *output))
		fmt.Printf("run done reports=%d output=%s\n", len(rows), *output)
	default:
		usage()
		os.Exit(1)
	}
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// printExtractionDebug re-reads the report and dumps the per-field and
// demographic hit/miss picture. CBC extraction is shown over the located
// section, demographics over the full text, matching the processing flow.
func printExtractionDebug(cfg config.Config, path string) {
	docs, err := pipeline.NewSourceReader(cfg).ReadFile(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug: %v\n", err)
		return
	}
	ex := extract.New(cfg)
	for _, doc := range docs {
		section := extract.FindCBCSection(doc.Text)
		fmt.Fprintf(os.Stderr, "--- %s (%s) ---\n", doc.Ref, doc.Method)
		fmt.Fprintln(os.Stderr, extract.DebugExtraction(section, ex.ExtractCBCValues(section)))
		fmt.Fprintln(os.Stderr, extract.DebugDemographics(doc.Text, extract.ExtractPatientDemographics(doc.Text)))
	}
}

func parseCount(name, raw string) float64 {
	value, _ := extract.ParseValueWithUnit(raw)
	if value == nil {
		must(fmt.Errorf("could not parse %s: %q", name, raw))
	}
	return *value
}

func ageFlag(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func sexFlag(raw string) *string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return nil
	}
	if v != "M" && v != "F" {
		must(fmt.Errorf("invalid --sex value: %s (want M or F)", raw))
	}
	return &v
}

func usage() {
	fmt.Println("usage: hemindex <command>")
	fmt.Println("commands:")
	fmt.Println("  report:process --input=report.pdf [--age=58] [--sex=M|F] [--output-dir=./out] [--format=text|json] [--debug]")
	fmt.Println("  calc:manual --neutrophils=4.5 --lymphocytes=1.2 --platelets=250 [--monocytes=0.5] [--age] [--sex] [--output-dir] [--format]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  feed:sync [--full]")
	fmt.Println("  feed:process [--batch=20]")
	fmt.Println("  export:xlsx --out=./out/results.xlsx")
	fmt.Println("  run --input=report.pdf --output=./out/results.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
