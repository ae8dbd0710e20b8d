package ragsync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knowsee/knowsee/internal/artifacts"
	"github.com/knowsee/knowsee/internal/convert"
)

// CorpusUserID namespaces corpus documents in the artifact store, away
// from any real user's session uploads.
const CorpusUserID = "corpus"

// FolderImporter imports documents from a local source folder into the
// artifact store, one namespace per corpus. Office documents are
// converted to Markdown on the way in so the corpus is uniform text.
type FolderImporter struct {
	appName string
	store   artifacts.Store
	logger  *slog.Logger
}

// NewFolderImporter creates an importer backed by the artifact store.
func NewFolderImporter(appName string, store artifacts.Store, logger *slog.Logger) *FolderImporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderImporter{
		appName: appName,
		store:   store,
		logger:  logger.With("component", "folder-importer"),
	}
}

// ImportFiles implements Importer. Unsupported and hidden files are
// skipped rather than failing the import.
func (i *FolderImporter) ImportFiles(ctx context.Context, corpusName, folderURL string) (int, error) {
	root := strings.TrimPrefix(folderURL, "file://")
	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("source folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("source %s is not a directory", root)
	}

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		mimeType, ok := mimeForFilename(d.Name())
		if !ok {
			i.logger.Debug("skipping unsupported file", "path", path)
			return nil
		}
		if err := i.importFile(ctx, corpusName, path, mimeType); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	i.logger.Info("folder imported", "corpus", corpusName, "files", count)
	return count, nil
}

func (i *FolderImporter) importFile(ctx context.Context, corpusName, path, mimeType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	filename := filepath.Base(path)
	if convert.NeedsConversion(mimeType) {
		result, err := convert.Convert(mimeType, data, filename)
		if err != nil {
			return err
		}
		data = result.Content
		mimeType = result.MIMEType
		filename = result.Filename
	}

	_, err = i.store.Save(ctx, artifacts.Key{
		AppName:   i.appName,
		UserID:    CorpusUserID,
		SessionID: corpusName,
		Filename:  filename,
	}, artifacts.Artifact{Data: data, MIMEType: mimeType})
	return err
}

// mimeForFilename maps a source file's extension to the MIME type the
// converter and upload limits understand.
func mimeForFilename(name string) (string, bool) {
	byExt := map[string]string{
		".md":   "text/markdown",
		".txt":  "text/plain",
		".csv":  "text/csv",
		".html": "text/html",
		".pdf":  "application/pdf",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		".odt":  "application/vnd.oasis.opendocument.text",
		".ods":  "application/vnd.oasis.opendocument.spreadsheet",
		".odp":  "application/vnd.oasis.opendocument.presentation",
		".rtf":  "application/rtf",
	}
	mimeType, ok := byExt[strings.ToLower(filepath.Ext(name))]
	return mimeType, ok
}
