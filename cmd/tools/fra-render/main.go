// cmd/tools/fra-render/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"fra-engine/internal/common/config"
	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/fra/assets"
	"fra-engine/internal/fra/engine"
	"fra-engine/internal/fra/mapping"
	"fra-engine/internal/fra/store"
	"fra-engine/internal/models"
	"fra-engine/pkg/registry"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

type renderFlags struct {
	config      string
	category    string
	out         string
	photos      string
	namespace   string
	questionMap string
	embed       bool
	pretty      bool
	verbose     bool
}

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	root := &cobra.Command{
		Use:           "fra-render",
		Short:         "Render fire risk assessments from exported audit fixtures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var flags renderFlags
	pf := root.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "Config file whose fra section applies (default: configs/config.yaml when present)")
	pf.StringVar(&flags.category, "template-category", "", "Override fra.template_category from config")
	pf.StringVar(&flags.out, "out", "", "Write output to this file (default: FRA-<id>.docx or stdout for view)")
	pf.StringVar(&flags.photos, "photos", "", "Directory holding <namespace>/<instanceId>/photos/<placeholder>/<file>")
	pf.StringVar(&flags.namespace, "namespace", "fra", "Storage namespace inside --photos")
	pf.StringVar(&flags.questionMap, "question-map", "", "Question map JSON binding question ids to fields")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output to stderr")

	docxCmd := &cobra.Command{
		Use:   "docx <fixture.json>",
		Short: "Render the OOXML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocx(cmd.Context(), args[0], flags)
		},
	}
	docxCmd.Flags().BoolVar(&flags.embed, "embed", true, "Embed photographs found under --photos")

	viewCmd := &cobra.Command{
		Use:   "view <fixture.json>",
		Short: "Print the JSON view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), args[0], flags)
		},
	}
	viewCmd.Flags().BoolVar(&flags.pretty, "pretty", true, "Indent the JSON output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the renderer version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(docxCmd, viewCmd, versionCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitErr
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newEngine(fixturePath string, flags renderFlags) (*engine.Engine, string, error) {
	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	log := logger.NewZapAdapter(logger.New(level, "console"))

	category, err := templateCategory(flags)
	if err != nil {
		return nil, "", err
	}

	fixture, err := store.LoadFixture(fixturePath)
	if err != nil {
		return nil, "", codeError(3, "loading fixture: %s", err)
	}

	var bindings map[string]string
	if flags.questionMap != "" {
		qm, err := registry.LoadQuestionMap(flags.questionMap)
		if err != nil {
			return nil, "", codeError(3, "loading question map: %s", err)
		}
		if errs := qm.Validate(mapping.KnownField); len(errs) > 0 {
			return nil, "", codeError(3, "question map invalid: %v", errors.Join(errs...))
		}
		bindings = qm.Lookup()
	}

	var objects assets.ObjectStore = emptyStore{}
	if flags.photos != "" {
		objects = assets.NewDirStore(flags.photos)
	}
	cfg := assets.DefaultConfig()
	cfg.Namespace = flags.namespace
	resolver := assets.NewResolver(objects, cfg, log)

	e := engine.New(
		store.NewMemoryStore(fixture),
		mapping.NewMapper(bindings, log),
		resolver,
		engine.Options{
			TemplateCategory: category,
			Version:          version,
			EmbedPhotos:      flags.embed,
		},
		log,
	)
	return e, fixture.Instance.ID, nil
}

// templateCategory is the category fixtures must carry, taken from config as
// the server does unless overridden on the command line.
func templateCategory(flags renderFlags) (string, error) {
	if flags.category != "" {
		return flags.category, nil
	}
	cfg, err := config.LoadFRA(flags.config)
	if err != nil {
		return "", codeError(3, "loading config: %s", err)
	}
	return cfg.TemplateCategory, nil
}

func runDocx(ctx context.Context, fixturePath string, flags renderFlags) error {
	e, instanceID, err := newEngine(fixturePath, flags)
	if err != nil {
		return err
	}

	doc, err := e.Document(ctx, instanceID)
	if err != nil {
		return classify(err)
	}

	out := flags.out
	if out == "" {
		out = doc.Filename
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return codeError(4, "creating output directory: %s", err)
		}
	}
	if err := os.WriteFile(out, doc.Bytes, 0o644); err != nil {
		return codeError(4, "writing %s: %s", out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, %d sections, %s)\n", out, len(doc.Bytes), len(doc.Sections), doc.Stamp)
	return nil
}

func runView(ctx context.Context, fixturePath string, flags renderFlags) error {
	e, instanceID, err := newEngine(fixturePath, flags)
	if err != nil {
		return err
	}

	view, err := e.View(ctx, instanceID)
	if err != nil {
		return classify(err)
	}

	var w io.Writer = os.Stdout
	if flags.out != "" {
		f, err := os.Create(flags.out)
		if err != nil {
			return codeError(4, "creating %s: %s", flags.out, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	if flags.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(view); err != nil {
		return codeError(4, "writing view: %s", err)
	}
	return nil
}

// classify maps engine errors onto exit codes: 2 for input problems, 5 for
// render failures.
func classify(err error) error {
	stdErr := apperrors.FromError(err)
	switch apperrors.GetErrorCategory(stdErr.Code) {
	case "VALIDATION", "BUSINESS_RULE":
		return codeError(2, "%s: %s", stdErr.Code, stdErr.Message)
	default:
		return codeError(5, "%s: %s (%s)", stdErr.Code, stdErr.Message, stdErr.Details)
	}
}

// emptyStore stands in when no photo directory is given.
type emptyStore struct{}

func (emptyStore) List(context.Context, string, int) ([]models.ObjectEntry, error) { return nil, nil }

func (emptyStore) SignedURL(_ context.Context, p string, _ time.Duration) (string, error) {
	return "", fmt.Errorf("no photo store: %s", p)
}

func (emptyStore) Remove(context.Context, ...string) error { return nil }

func (emptyStore) Get(_ context.Context, p string) ([]byte, string, error) {
	return nil, "", fmt.Errorf("no photo store: %s", p)
}
