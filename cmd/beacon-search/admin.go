package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/ontology"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/storage"
)

// runAdmin dispatches the admin-only subcommands: purge, backup, restore,
// ontology.
// These are the "explicit admin command" operations the data model
// requires for document deletion and the plain file-copy backup path;
// neither ever runs on a schedule from the main server process.
func runAdmin(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: beacon-search <purge|backup|restore|ontology> [flags]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	logger := ops.NewLogger(&cfg.Logging)

	switch args[0] {
	case "purge":
		return runPurge(cfg, logger, args[1:])
	case "backup":
		return runBackup(cfg, logger, args[1:])
	case "restore":
		return runRestore(logger, args[1:])
	case "ontology":
		return runOntology(cfg, args[1:])
	default:
		return fmt.Errorf("unknown admin command %q", args[0])
	}
}

func runPurge(cfg *config.Config, logger *ops.Logger, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	documentType := fs.String("document-type", "", "purge all documents of this type")
	sourceID := fs.String("source", "", "purge all documents ingested from this source")
	olderThan := fs.Duration("older-than", 0, "purge documents created before now minus this duration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	purger := ops.NewPurger(store, logger)
	var deleted int64
	switch {
	case *documentType != "":
		deleted, err = purger.PurgeByDocumentType(ctx, *documentType)
	case *sourceID != "":
		deleted, err = purger.PurgeBySource(ctx, *sourceID)
	case *olderThan > 0:
		deleted, err = purger.PurgeOlderThan(ctx, time.Now().Add(-*olderThan))
	default:
		return fmt.Errorf("purge requires one of --document-type, --source, --older-than")
	}
	if err != nil {
		return err
	}
	fmt.Printf("purged %d documents\n", deleted)
	return nil
}

func runBackup(cfg *config.Config, logger *ops.Logger, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	dest := fs.String("dest", "", "destination path for the backup file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dest == "" {
		return fmt.Errorf("backup requires --dest")
	}

	dbPath := strings.TrimPrefix(cfg.Database.URL, "file:")
	if i := strings.IndexByte(dbPath, '?'); i >= 0 {
		dbPath = dbPath[:i]
	}
	mgr := ops.NewBackupManager(logger, dbPath)
	return mgr.Backup(context.Background(), *dest)
}

func runOntology(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: beacon-search ontology <import|export> --file <path>")
	}
	fs := flag.NewFlagSet("ontology", flag.ExitOnError)
	file := fs.String("file", "", "YAML bundle path; '-' for stdin/stdout")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("ontology %s requires --file", args[0])
	}

	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	switch args[0] {
	case "import":
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open bundle: %w", err)
		}
		defer f.Close()
		concepts, entries, err := ontology.Import(ctx, store, f)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d concepts, %d dictionary entries\n", concepts, entries)
		return nil
	case "export":
		f, err := os.Create(*file)
		if err != nil {
			return fmt.Errorf("failed to create bundle: %w", err)
		}
		defer f.Close()
		return ontology.Export(ctx, store, f)
	default:
		return fmt.Errorf("unknown ontology command %q", args[0])
	}
}

func runRestore(logger *ops.Logger, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	from := fs.String("from", "", "backup file to restore")
	dest := fs.String("dest", "", "path to restore into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || *dest == "" {
		return fmt.Errorf("restore requires --from and --dest")
	}

	mgr := ops.NewBackupManager(logger, "")
	return mgr.Restore(context.Background(), *from, *dest)
}
