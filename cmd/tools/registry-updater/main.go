// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fra-engine/internal/fra/mapping"
	"fra-engine/pkg/registry"
)

const defaultPath = "configs/question-map.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	removeCmd := flag.NewFlagSet("remove", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	fieldsCmd := flag.NewFlagSet("fields", flag.ExitOnError)

	addPath := addCmd.String("path", defaultPath, "Path to question map file")
	questionID := addCmd.String("question", "", "Audit question id (e.g., q04)")
	field := addCmd.String("field", "", "Canonical FRA field (e.g., floorArea)")
	templateID := addCmd.String("template", "", "Template the question belongs to (optional)")
	note := addCmd.String("note", "", "Free-text note")

	removePath := removeCmd.String("path", defaultPath, "Path to question map file")
	removeID := removeCmd.String("question", "", "Audit question id to unbind")

	validatePath := validateCmd.String("path", defaultPath, "Path to question map file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *questionID == "" || *field == "" {
			fmt.Println("Error: question and field are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if !mapping.KnownField(*field) {
			fmt.Printf("Error: unknown field %q. Run 'registry-updater fields' for the list.\n", *field)
			os.Exit(1)
		}
		b := registry.Binding{QuestionID: *questionID, Field: *field, TemplateID: *templateID, Note: *note}
		if err := addBinding(*addPath, b); err != nil {
			fmt.Printf("Error adding binding: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Bound %s -> %s\n", *questionID, *field)

	case "remove":
		removeCmd.Parse(os.Args[2:])
		if *removeID == "" {
			fmt.Println("Error: question is required for remove.")
			removeCmd.Usage()
			os.Exit(1)
		}
		if err := removeBinding(*removePath, *removeID); err != nil {
			fmt.Printf("Error removing binding: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Unbound %s\n", *removeID)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateMap(*validatePath); err != nil {
			fmt.Printf("Question map validation failed: %v\n", err)
			os.Exit(1)
		}

	case "fields":
		fieldsCmd.Parse(os.Args[2:])
		fields := mapping.Fields()
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Println(f)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func load(path string) (*registry.QuestionMap, error) {
	qm, err := registry.LoadQuestionMap(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &registry.QuestionMap{Version: "1.0.0", Category: "fire_risk_assessment"}, nil
		}
		return nil, fmt.Errorf("failed to load question map: %w", err)
	}
	return qm, nil
}

func save(path string, qm *registry.QuestionMap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	qm.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return registry.SaveQuestionMap(path, qm)
}

func addBinding(path string, b registry.Binding) error {
	qm, err := load(path)
	if err != nil {
		return err
	}
	qm.Upsert(b)
	return save(path, qm)
}

func removeBinding(path, questionID string) error {
	qm, err := load(path)
	if err != nil {
		return err
	}
	kept := qm.Bindings[:0]
	found := false
	for _, b := range qm.Bindings {
		if b.QuestionID == questionID {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		return fmt.Errorf("question %s is not bound", questionID)
	}
	qm.Bindings = kept
	return save(path, qm)
}

func validateMap(path string) error {
	qm, err := registry.LoadQuestionMap(path)
	if err != nil {
		return fmt.Errorf("failed to load question map: %w", err)
	}
	if errs := qm.Validate(mapping.KnownField); len(errs) > 0 {
		for _, e := range errs {
			fmt.Println("  -", e)
		}
		return fmt.Errorf("%d problem(s) found", len(errs))
	}
	fmt.Printf("Question map validation passed. Found %d bindings.\n", len(qm.Bindings))
	return nil
}

func help() {
	fmt.Println("Usage: registry-updater <command> [arguments]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  add       Bind an audit question to an FRA field")
	fmt.Println("  remove    Remove a question binding")
	fmt.Println("  validate  Check the question map for duplicates and unknown fields")
	fmt.Println("  fields    List the FRA fields questions can bind to")
	fmt.Println("  help      Show this help message")
	fmt.Println("")
	fmt.Println("Example:")
	fmt.Println("  registry-updater add -question=q04 -field=floorArea -template=tpl-fra")
}
