package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type askOptions struct {
	files        []string
	confidential []string
	asJSON       bool
}

type askResult struct {
	Question string         `json:"question"`
	Answer   *entity.Answer `json:"answer"`
}

func newAskCmd(root *options) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Index documents and answer questions about them",
		Long: `Indexes every --file into a new session, then answers each question in
order. A file may carry its type after a colon, e.g. status.md:update.`,
		Example: `  doctalk ask -f prd.md:requirements -f status.md:update "Is offline mode in v1?"
  doctalk ask -f memo.txt -c memo.txt "Who is the merger target?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "document to index, optionally PATH:TYPE")
	cmd.Flags().StringArrayVarP(&opts.confidential, "confidential", "c", nil, "path of a document to treat as confidential")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print answers as JSON")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runAsk(cmd *cobra.Command, root *options, opts *askOptions, questions []string) error {
	engine, release, err := root.engine()
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sessionID := "cli-" + uuid.NewString()
	defer func() { _ = engine.EndSession(ctx, sessionID) }()

	docs, err := ingestFiles(ctx, engine, sessionID, opts.files, opts.confidential)
	if err != nil {
		return err
	}

	results := make([]askResult, 0, len(questions))
	for _, q := range questions {
		answer, err := engine.AnswerQuery(ctx, sessionID, q)
		if err != nil {
			return fmt.Errorf("answer %q: %w", q, err)
		}
		results = append(results, askResult{Question: q, Answer: answer})
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answers: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Indexed:")
	for _, d := range docs {
		printDocument(out, d)
	}
	for _, r := range results {
		fmt.Fprintf(out, "\nQ: %s\n", r.Question)
		if r.Answer.Refused {
			fmt.Fprintf(out, "A (refused, %s): %s\n", r.Answer.RefusalReason, r.Answer.Text)
		} else {
			fmt.Fprintf(out, "A: %s\n", r.Answer.Text)
		}
		for _, c := range r.Answer.Sources {
			fmt.Fprintf(out, "   - %s\n", c.Source)
		}
	}

	return nil
}

func ingestFiles(ctx context.Context, engine Engine, sessionID string, specs, confidential []string) ([]*entity.Document, error) {
	secret := make(map[string]bool, len(confidential))
	for _, p := range confidential {
		secret[filepath.Clean(p)] = true
	}

	docs := make([]*entity.Document, 0, len(specs))
	for _, spec := range specs {
		path, docType, err := parseFileSpec(spec)
		if err != nil {
			return nil, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		doc, err := engine.Ingest(ctx, sessionID, &entity.IngestRequest{
			Filename:     filepath.Base(path),
			Content:      content,
			DocumentType: docType,
			Confidential: secret[filepath.Clean(path)],
		})
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", path, err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// parseFileSpec splits PATH[:TYPE]. A suffix that is not a known type is
// part of the path.
func parseFileSpec(spec string) (string, entity.DocumentType, error) {
	i := strings.LastIndex(spec, ":")
	if i <= 0 {
		return spec, "", nil
	}

	docType, ok := entity.ParseDocumentType(spec[i+1:])
	if !ok {
		if strings.ContainsAny(spec[i+1:], `/\.`) {
			return spec, "", nil
		}
		return "", "", fmt.Errorf("%w: unknown document type %q", entity.ErrInvalidParameter, spec[i+1:])
	}
	return spec[:i], docType, nil
}
