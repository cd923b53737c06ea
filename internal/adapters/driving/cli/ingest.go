package cli

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxIngestBytes caps documents read from a file, stdin or URL
const maxIngestBytes = 64 << 20

var ingestCmd = &cobra.Command{
	Use:   "ingest [path|url|-]",
	Short: "Ingest a document into a sector",
	Long: `Parses, chunks and embeds a document, storing its fragments for retrieval.
The argument is a file path, an http(s) URL, or "-" to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	ingestSector   string
	ingestTitle    string
	ingestKind     string
	ingestMetadata map[string]string
)

// httpClient fetches URL sources
var httpClient = &http.Client{Timeout: 30 * time.Second}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSector, "sector", "s", "", "Sector the document belongs to (required)")
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "Document title (defaults to the file name or URL)")
	ingestCmd.Flags().StringVarP(&ingestKind, "kind", "k", "", "Source kind: pdf, markdown, text or url (inferred when empty)")
	ingestCmd.Flags().StringToStringVarP(&ingestMetadata, "meta", "m", nil, "Metadata as key=value pairs")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Ingestion == nil {
		return errors.New("ingestion service not configured")
	}
	if ingestSector == "" {
		return errors.New("--sector is required")
	}

	target := args[0]
	data, detected, err := readDocument(cmd, target)
	if err != nil {
		return err
	}

	kind := detected
	if ingestKind != "" {
		if kind, err = domain.ParseSourceKind(ingestKind); err != nil {
			return err
		}
	}
	if kind == "" {
		return fmt.Errorf("cannot infer the kind of %q, pass --kind", target)
	}

	title := ingestTitle
	if title == "" {
		title = defaultTitle(target)
	}
	if title == "" {
		return errors.New("--title is required when reading standard input")
	}

	metadata := make(map[string]string, len(ingestMetadata)+1)
	for k, v := range ingestMetadata {
		metadata[k] = v
	}
	if target != "-" {
		metadata["origin"] = target
	}

	result, err := deps.Ingestion.Ingest(cmd.Context(), domain.IngestRequest{
		Title:    title,
		SectorID: ingestSector,
		Kind:     kind,
		Data:     data,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", target, err)
	}

	if jsonOutput {
		return printJSON(cmd, result)
	}
	cmd.Printf("Ingested %q\n\n", result.Title)
	cmd.Printf("  Source:     %s\n", result.SourceID)
	cmd.Printf("  Status:     %s\n", result.Status)
	cmd.Printf("  Fragments:  %d\n", result.FragmentCount)
	cmd.Printf("  Size:       %d bytes\n", result.ContentSize)
	return nil
}

// readDocument loads the document and guesses its kind
func readDocument(cmd *cobra.Command, target string) ([]byte, domain.SourceKind, error) {
	switch {
	case target == "-":
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxIngestBytes))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, "", nil

	case isURL(target):
		return fetchURL(cmd, target)

	default:
		data, err := readFile(target)
		if err != nil {
			return nil, "", err
		}
		return data, kindFromExtension(target), nil
	}
}

func fetchURL(cmd *cobra.Command, target string) ([]byte, domain.SourceKind, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch %s: status %d", target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIngestBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", target, err)
	}

	kind := kindFromContentType(resp.Header.Get("Content-Type"))
	if kind == "" {
		kind = domain.SourceKindURL
	}
	return data, kind, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxIngestBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func kindFromExtension(path string) domain.SourceKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return domain.SourceKindPDF
	case ".md", ".markdown":
		return domain.SourceKindMarkdown
	case ".txt", ".text":
		return domain.SourceKindText
	case ".html", ".htm":
		return domain.SourceKindURL
	default:
		return ""
	}
}

func kindFromContentType(contentType string) domain.SourceKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "application/pdf":
		return domain.SourceKindPDF
	case "text/markdown", "text/x-markdown":
		return domain.SourceKindMarkdown
	case "text/plain":
		return domain.SourceKindText
	case "text/html", "application/xhtml+xml":
		return domain.SourceKindURL
	default:
		return ""
	}
}

func defaultTitle(target string) string {
	switch {
	case target == "-":
		return ""
	case isURL(target):
		return target
	default:
		return strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	}
}
