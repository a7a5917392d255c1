// Package cli is the command line front end of the document QA engine.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/spf13/cobra"
)

// Engine is the session API the commands drive
type Engine interface {
	Ingest(ctx context.Context, sessionID string, req *entity.IngestRequest) (*entity.Document, error)
	AnswerQuery(ctx context.Context, sessionID, query string) (*entity.Answer, error)
	GetSession(ctx context.Context, sessionID string) (*entity.SessionInfo, error)
	EndSession(ctx context.Context, sessionID string) error
}

// EngineFactory builds an engine for an environment, the returned func
// releases it
type EngineFactory func(environment string) (Engine, func(), error)

type options struct {
	environment string
	factory     EngineFactory
}

// NewRootCmd builds the doctalk command tree
func NewRootCmd(factory EngineFactory) *cobra.Command {
	opts := &options{factory: factory}

	root := &cobra.Command{
		Use:   "doctalk",
		Short: "Ask questions about local documents",
		Long: `doctalk indexes documents into a throwaway session and answers
questions from them. Newer updates override older requirements and
confidential documents are never quoted.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.environment, "env", "e", "dev", "environment: dev, prod or a name selecting .env.<name>")

	root.AddCommand(newAskCmd(opts), newInspectCmd(opts))
	return root
}

// Execute runs the command tree
func Execute(factory EngineFactory) error {
	return NewRootCmd(factory).Execute()
}

func (o *options) engine() (Engine, func(), error) {
	if o.factory == nil {
		return nil, nil, fmt.Errorf("engine not configured")
	}
	return o.factory(o.environment)
}

func printDocument(w io.Writer, doc *entity.Document) {
	flag := ""
	if doc.IsConfidential() {
		flag = " [confidential]"
		if doc.SensitivityMarker != "" {
			flag = fmt.Sprintf(" [confidential: %s]", doc.SensitivityMarker)
		}
	}
	fmt.Fprintf(w, "  %d. %s (%s, %d chunks)%s\n", doc.Seq+1, doc.Filename, doc.Type, doc.ChunkCount, flag)
}
