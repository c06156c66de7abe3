// Command zdl is a batch Z-Library client: it searches and downloads
// books through a rotating pool of account credentials and keeps a
// local SQLite catalog of everything it has seen.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/zlibtools/zdl/internal/catalog"
	"github.com/zlibtools/zdl/internal/config"
	"github.com/zlibtools/zdl/internal/credential"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
	"github.com/zlibtools/zdl/internal/logger"
	"github.com/zlibtools/zdl/internal/service"
	"github.com/zlibtools/zdl/internal/zlibrary"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "zdl: %v\n", err)
		os.Exit(errors.ExitCodeFor(err))
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: zdl [global flags] <command> [command flags] [args]

Upstream commands:
  validate                    probe every configured credential
  search <query>              search upstream and ingest the results
  popular                     fetch the most-popular feed
  recent                      fetch the recently-added feed
  download <book-id>...       download catalog books

Catalog commands:
  browse                      page through the local catalog
  show <book-id>              show one book in full
  save <book-id>              bookmark a book
  unsave <book-id>            remove a bookmark
  saved                       list bookmarks
  list <create|delete|add|remove|show> ...
  lists                       list reading lists
  downloads                   recent download records
  history                     recent searches
  stats                       catalog statistics
  export                      export the catalog as JSON or CSV
  import <file>               import a JSON export
  vacuum                      compact the catalog database
  backup <dest>               back up the catalog database

Global flags are described in 'zdl -h'.
`)
}

func run(args []string) error {
	cfg, rest, err := config.Load(args)
	if err != nil {
		if errors.Is(err, errors.ErrConfig) && strings.Contains(err.Error(), flag.ErrHelp.Error()) {
			usage()
			return nil
		}
		return err
	}
	if len(rest) == 0 {
		usage()
		return errors.Config("no command given")
	}

	log := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Logger.Level),
		Format: cfg.Logger.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, log: log}
	defer app.close()

	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "validate":
		return app.validate(ctx)
	case "search":
		return app.search(ctx, cmdArgs)
	case "popular":
		return app.feed(ctx, command, cmdArgs)
	case "recent":
		return app.feed(ctx, command, cmdArgs)
	case "download":
		return app.download(ctx, cmdArgs)
	case "browse":
		return app.browse(ctx, cmdArgs)
	case "show":
		return app.show(ctx, cmdArgs)
	case "save":
		return app.save(ctx, cmdArgs)
	case "unsave":
		return app.unsave(ctx, cmdArgs)
	case "saved":
		return app.saved(ctx)
	case "list":
		return app.list(ctx, cmdArgs)
	case "lists":
		return app.lists(ctx)
	case "downloads":
		return app.downloads(ctx, cmdArgs)
	case "history":
		return app.history(ctx, cmdArgs)
	case "stats":
		return app.stats(ctx)
	case "export":
		return app.export(ctx, cmdArgs)
	case "import":
		return app.importCatalog(ctx, cmdArgs)
	case "vacuum":
		return app.vacuum(ctx)
	case "backup":
		return app.backup(ctx, cmdArgs)
	default:
		usage()
		return errors.Config("unknown command %q", command)
	}
}

// app wires the long-lived components together. The catalog store and
// the session pool are opened lazily so catalog-only commands never
// touch credentials or the network.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *catalog.Store
	pool  *zlibrary.Pool
}

func (a *app) openStore() (*catalog.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := catalog.Open(a.cfg.Catalog.DBPath, a.log.Logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) openPool(ctx context.Context) (*zlibrary.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}

	loaded, err := credential.Load(a.cfg.Credentials.File)
	if err != nil {
		return nil, err
	}
	a.log.Debug("credentials loaded",
		"source", loaded.Source.String(),
		"count", len(loaded.Credentials),
		"disabled", loaded.Disabled)

	statePath := a.cfg.Credentials.StateFile
	if loaded.StateFile != "" {
		statePath = loaded.StateFile
	}

	manager := credential.NewManager(loaded.Credentials, credential.NewStateFile(statePath), a.log.Logger)
	client := zlibrary.New(zlibrary.Config{
		Domain:  a.cfg.Upstream.Domain,
		Timeout: a.cfg.Upstream.Timeout,
		RPS:     a.cfg.Upstream.RPS,
	}, a.log.Logger)
	a.pool = zlibrary.NewPool(client, manager, a.log.Logger)

	if a.cfg.Credentials.EagerValidate {
		if err := a.pool.ValidateAll(ctx); err != nil {
			return nil, err
		}
	}
	return a.pool, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing catalog", "error", err)
		}
	}
}

// budget bounds a multi-attempt upstream run.
func (a *app) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.Upstream.Budget)
}

func (a *app) validate(ctx context.Context) error {
	ctx, cancel := a.budget(ctx)
	defer cancel()

	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	validateErr := pool.ValidateAll(ctx)
	if validateErr != nil && !errors.Is(validateErr, errors.ErrNoValidCredentials) {
		return validateErr
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTITY\tSTATUS\tDOWNLOADS LEFT")
	for _, cred := range pool.Manager().Credentials() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", cred.IdentityKey(), cred.Status, formatQuota(cred.DownloadsLeft))
	}
	tw.Flush()
	return validateErr
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	yearFrom := fs.Int("year-from", 0, "earliest publication year")
	yearTo := fs.Int("year-to", 0, "latest publication year")
	language := fs.String("language", "", "result language")
	extension := fs.String("extension", "", "file extension, e.g. epub")
	order := fs.String("order", "", "sort order: popular, year, or title")
	page := fs.Int("page", 1, "result page")
	limit := fs.Int("limit", service.DefaultSearchLimit, "results per page")
	allPages := fs.Bool("all-pages", false, "fetch every page up to -max-pages")
	maxPages := fs.Int("max-pages", 10, "page cap for -all-pages")
	noSave := fs.Bool("no-save", false, "do not ingest results into the catalog")
	if err := fs.Parse(args); err != nil {
		return errors.Config("search: %v", err)
	}
	if fs.NArg() == 0 {
		return errors.Config("search: missing query")
	}
	query := strings.Join(fs.Args(), " ")

	ctx, cancel := a.budget(ctx)
	defer cancel()

	svc, err := a.searchService(ctx)
	if err != nil {
		return err
	}
	filters := domain.SearchFilters{
		YearFrom:  *yearFrom,
		YearTo:    *yearTo,
		Language:  *language,
		Extension: *extension,
		Order:     domain.SortOrder(*order),
		Page:      *page,
		Limit:     *limit,
	}

	var result *service.SearchResult
	if *allPages {
		result, err = svc.SearchAllPages(ctx, query, filters, *maxPages, !*noSave)
	} else {
		result, err = svc.Search(ctx, query, filters, !*noSave)
	}
	if err != nil {
		return err
	}

	printResults(result.Books)
	fmt.Printf("%d results over %d page(s), %d ingested, %d skipped\n",
		len(result.Books), result.Pages, result.Ingested, result.Skipped)
	return nil
}

func (a *app) feed(ctx context.Context, name string, args []string) error {
	if len(args) != 0 {
		return errors.Config("%s takes no arguments", name)
	}

	ctx, cancel := a.budget(ctx)
	defer cancel()

	svc, err := a.searchService(ctx)
	if err != nil {
		return err
	}

	var result *service.SearchResult
	if name == "popular" {
		result, err = svc.MostPopular(ctx)
	} else {
		result, err = svc.Recently(ctx)
	}
	if err != nil {
		return err
	}

	printResults(result.Books)
	fmt.Printf("%d results, %d ingested\n", len(result.Books), result.Ingested)
	return nil
}

func (a *app) download(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.Config("download: missing book id")
	}

	ctx, cancel := a.budget(ctx)
	defer cancel()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	svc := service.NewDownloadService(pool, store, a.cfg.Catalog.DownloadDir, a.log.Logger)

	summary, err := svc.DownloadAll(ctx, args)
	for _, result := range summary.Completed {
		fmt.Printf("downloaded %s -> %s (%d bytes, via %s)\n",
			result.Book.ID, result.Path, result.Size, result.Identity)
	}
	for _, id := range summary.Skipped {
		fmt.Printf("skipped %s: already downloaded\n", id)
	}
	for id, ferr := range summary.Failed {
		fmt.Printf("failed %s: %v\n", id, ferr)
	}
	if err != nil {
		return err
	}
	if len(summary.Failed) > 0 {
		return errors.Catalog("%d of %d downloads failed", len(summary.Failed), len(args))
	}
	return nil
}

func (a *app) browse(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	title := fs.String("title", "", "title substring")
	language := fs.String("language", "", "exact language")
	extension := fs.String("extension", "", "exact extension")
	yearFrom := fs.String("year-from", "", "earliest year")
	yearTo := fs.String("year-to", "", "latest year")
	author := fs.String("author", "", "author name substring")
	limit := fs.Int("limit", service.DefaultBrowseLimit, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return errors.Config("browse: %v", err)
	}

	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	filters := domain.BrowseFilters{
		Title:     *title,
		Language:  *language,
		Extension: *extension,
		YearFrom:  *yearFrom,
		YearTo:    *yearTo,
		Author:    *author,
	}
	page, err := svc.Browse(ctx, filters, *limit, *offset)
	if err != nil {
		return err
	}

	printBooks(page.Books)
	fmt.Printf("showing %d of %d (offset %d)\n", len(page.Books), page.Total, page.Offset)
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Config("show: expected exactly one book id")
	}
	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	detail, err := svc.Show(ctx, args[0])
	if err != nil {
		return err
	}

	b := detail.Book
	fmt.Printf("%s  %s\n", b.ID, b.Title)
	if names := detail.AuthorNames(); len(names) > 0 {
		fmt.Printf("  authors:    %s\n", strings.Join(names, ", "))
	}
	printField("year", b.Year)
	printField("publisher", b.Publisher)
	printField("language", b.Language)
	printField("extension", b.Extension)
	printField("isbn", b.ISBN)
	printField("edition", b.Edition)
	if b.Pages > 0 {
		fmt.Printf("  pages:      %d\n", b.Pages)
	}
	if b.Filesize > 0 {
		fmt.Printf("  size:       %d bytes\n", b.Filesize)
	}
	if b.Description != "" {
		fmt.Printf("  about:      %s\n", b.Description)
	}
	if detail.Saved != nil {
		fmt.Printf("  saved:      priority %d", detail.Saved.Priority)
		if detail.Saved.Notes != "" {
			fmt.Printf(", notes: %s", detail.Saved.Notes)
		}
		fmt.Println()
	}
	for _, d := range detail.Downloads {
		if d.Status == domain.DownloadCompleted {
			fmt.Printf("  download:   %s (%s, via %s)\n", d.FilePath, d.DownloadedAt.Format("2006-01-02"), d.CredentialIdentity)
		} else {
			fmt.Printf("  download:   failed %s: %s\n", d.DownloadedAt.Format("2006-01-02"), d.ErrorMessage)
		}
	}
	return nil
}

func (a *app) save(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	notes := fs.String("notes", "", "free-form notes")
	tags := fs.String("tags", "", "comma-separated tags")
	priority := fs.Int("priority", 0, "bookmark priority, higher first")
	if err := fs.Parse(args); err != nil {
		return errors.Config("save: %v", err)
	}
	if fs.NArg() != 1 {
		return errors.Config("save: expected exactly one book id")
	}

	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	saved := &domain.SavedBook{
		BookID:   fs.Arg(0),
		Notes:    *notes,
		Tags:     *tags,
		Priority: *priority,
	}
	if err := svc.Save(ctx, saved); err != nil {
		return err
	}
	fmt.Printf("saved %s\n", saved.BookID)
	return nil
}

func (a *app) unsave(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Config("unsave: expected exactly one book id")
	}
	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	if err := svc.Unsave(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("unsaved %s\n", args[0])
	return nil
}

func (a *app) saved(ctx context.Context) error {
	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	details, err := svc.Saved(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRIORITY\tNOTES")
	for _, d := range details {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Book.ID, d.Book.Title, d.Saved.Priority, d.Saved.Notes)
	}
	return tw.Flush()
}

func (a *app) list(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.Config("list: expected a subcommand: create, delete, add, remove, or show")
	}
	svc, err := a.catalogService()
	if err != nil {
		return err
	}

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "create":
		fs := flag.NewFlagSet("list create", flag.ContinueOnError)
		description := fs.String("description", "", "list description")
		if err := fs.Parse(subArgs); err != nil {
			return errors.Config("list create: %v", err)
		}
		if fs.NArg() != 1 {
			return errors.Config("list create: expected a list name")
		}
		list, err := svc.CreateList(ctx, fs.Arg(0), *description)
		if err != nil {
			return err
		}
		fmt.Printf("created list %q\n", list.Name)
		return nil
	case "delete":
		if len(subArgs) != 1 {
			return errors.Config("list delete: expected a list name")
		}
		if err := svc.DeleteList(ctx, subArgs[0]); err != nil {
			return err
		}
		fmt.Printf("deleted list %q\n", subArgs[0])
		return nil
	case "add":
		if len(subArgs) != 2 {
			return errors.Config("list add: expected a list name and a book id")
		}
		if err := svc.AddToList(ctx, subArgs[0], subArgs[1]); err != nil {
			return err
		}
		fmt.Printf("added %s to %q\n", subArgs[1], subArgs[0])
		return nil
	case "remove":
		if len(subArgs) != 2 {
			return errors.Config("list remove: expected a list name and a book id")
		}
		if err := svc.RemoveFromList(ctx, subArgs[0], subArgs[1]); err != nil {
			return err
		}
		fmt.Printf("removed %s from %q\n", subArgs[1], subArgs[0])
		return nil
	case "show":
		if len(subArgs) != 1 {
			return errors.Config("list show: expected a list name")
		}
		list, books, err := svc.ShowList(ctx, subArgs[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s", list.Name)
		if list.Description != "" {
			fmt.Printf(": %s", list.Description)
		}
		fmt.Println()
		for i, b := range books {
			fmt.Printf("%3d. %s  %s\n", i+1, b.ID, b.Title)
		}
		return nil
	default:
		return errors.Config("list: unknown subcommand %q", sub)
	}
}

func (a *app) lists(ctx context.Context) error {
	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	lists, err := svc.Lists(ctx)
	if err != nil {
		return err
	}
	for _, l := range lists {
		if l.Description != "" {
			fmt.Printf("%s: %s\n", l.Name, l.Description)
		} else {
			fmt.Println(l.Name)
		}
	}
	return nil
}

func (a *app) downloads(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("downloads", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "maximum records")
	identity := fs.String("credential", "", "only records for this credential identity")
	if err := fs.Parse(args); err != nil {
		return errors.Config("downloads: %v", err)
	}

	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	var records []domain.Download
	if *identity != "" {
		records, err = svc.DownloadsByIdentity(ctx, *identity)
	} else {
		records, err = svc.Downloads(ctx, *limit)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tBOOK\tSTATUS\tIDENTITY\tFILE")
	for _, d := range records {
		file := d.FilePath
		if d.Status == domain.DownloadFailed {
			file = d.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.DownloadedAt.Format("2006-01-02 15:04"), d.BookID, d.Status, d.CredentialIdentity, file)
	}
	return tw.Flush()
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "maximum entries")
	clear := fs.Bool("clear", false, "wipe the search history")
	if err := fs.Parse(args); err != nil {
		return errors.Config("history: %v", err)
	}

	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	if *clear {
		n, err := svc.ClearHistory(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d entries\n", n)
		return nil
	}

	entries, err := svc.History(ctx, *limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.FoundAt.Format("2006-01-02 15:04"), e.Query)
	}
	return nil
}

func (a *app) stats(ctx context.Context) error {
	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "books\t%d\n", stats.Books)
	fmt.Fprintf(tw, "authors\t%d\n", stats.Authors)
	fmt.Fprintf(tw, "unlinked authors\t%d\n", stats.UnlinkedAuthors)
	fmt.Fprintf(tw, "languages\t%d\n", stats.Languages)
	fmt.Fprintf(tw, "extensions\t%d\n", stats.Extensions)
	fmt.Fprintf(tw, "lists\t%d\n", stats.Lists)
	fmt.Fprintf(tw, "saved\t%d\n", stats.SavedBooks)
	fmt.Fprintf(tw, "downloads\t%d\n", stats.Downloads)
	fmt.Fprintf(tw, "searches\t%d\n", stats.Searches)
	fmt.Fprintf(tw, "db size\t%d bytes\n", stats.DBSizeBytes)
	return tw.Flush()
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "json", "export format: json or csv")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return errors.Config("export: %v", err)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	svc := service.NewTransferService(store, a.log.Logger)

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	var n int
	switch *format {
	case "json":
		n, err = svc.ExportJSON(ctx, w)
	case "csv":
		n, err = svc.ExportCSV(ctx, w)
	default:
		return errors.Config("export: unknown format %q", *format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d books\n", n)
	return nil
}

func (a *app) importCatalog(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Config("import: expected exactly one file, or - for stdin")
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	svc := service.NewTransferService(store, a.log.Logger)

	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	n, err := svc.ImportJSON(ctx, r)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d books\n", n)
	return nil
}

func (a *app) vacuum(ctx context.Context) error {
	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	if err := svc.Vacuum(ctx); err != nil {
		return err
	}
	fmt.Println("catalog compacted")
	return nil
}

func (a *app) backup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Config("backup: expected a destination path")
	}
	svc, err := a.catalogService()
	if err != nil {
		return err
	}
	if err := svc.Backup(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("backed up to %s\n", args[0])
	return nil
}

func (a *app) catalogService() (*service.CatalogService, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return service.NewCatalogService(store, a.log.Logger), nil
}

func (a *app) searchService(ctx context.Context) (*service.SearchService, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	pool, err := a.openPool(ctx)
	if err != nil {
		return nil, err
	}
	ingestor := service.NewIngestor(store, a.log.Logger)
	return service.NewSearchService(pool, ingestor, store, a.log.Logger), nil
}

func printResults(books []zlibrary.BookResult) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tYEAR\tLANG\tEXT")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			string(b.ID), b.Title, b.Author, formatYear(int(b.Year)), b.Language, b.Extension)
	}
	tw.Flush()
}

func printBooks(books []domain.BookWithAuthors) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHORS\tYEAR\tLANG\tEXT")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Book.ID, b.Book.Title, strings.Join(b.AuthorNames(), ", "),
			b.Book.Year, b.Book.Language, b.Book.Extension)
	}
	tw.Flush()
}

func printField(name, value string) {
	if value == "" {
		return
	}
	fmt.Printf("  %-10s  %s\n", name+":", value)
}

func formatQuota(left int) string {
	if left == domain.DownloadsUnknown {
		return "?"
	}
	return fmt.Sprintf("%d", left)
}

func formatYear(year int) string {
	if year <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", year)
}
