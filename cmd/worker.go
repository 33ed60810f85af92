package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the document processing worker",
	Long:  `Poll for uploaded documents and run the analysis pipeline on each one.`,
	Run: func(cmd *cobra.Command, args []string) {
		startDocumentWorker()
	},
}

var pollInterval time.Duration

func init() {
	workerCmd.Flags().DurationVar(&pollInterval, "poll-interval", 10*time.Second, "How often to check for uploaded documents")
}

// startDocumentWorker drains the uploaded queue one document at a time. A
// separate process from the HTTP server so long LLM runs never compete with
// request handling.
func startDocumentWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	if deps.DocumentService == nil {
		fmt.Fprintln(os.Stderr, "storage endpoint not configured, worker cannot run")
		os.Exit(1)
	}

	lg := deps.Logger
	lg.Info("document worker started", "poll_interval", pollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			lg.Info("received signal, shutting down worker", "signal", sig)
			cancel()
			if err := deps.DB.Close(); err != nil {
				lg.Error("database close error", "error", err)
			}
			return
		case <-ticker.C:
			processNext(ctx, deps)
		}
	}
}

func processNext(ctx context.Context, deps *Dependencies) {
	repo := deps.DocumentService
	doc, err := repo.NextUploadedDocument(ctx)
	if err != nil {
		return
	}

	deps.Logger.Info("processing queued document", "document_id", doc.ID, "blob_name", doc.BlobName)
	if _, err := repo.Analyze(ctx, doc.ID); err != nil {
		deps.Logger.Error("document processing failed", "document_id", doc.ID, "error", err)
	}
}
