// Package main provides the agentbuilder CLI: offline validation and
// rendering of agent definition files.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/pkg/validation"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `usage: agentbuilder <command> [flags]

commands:
  version                         print build information
  validate [-catalog file] <def>  check an agent definition
  render -catalog file <def>      print the canonical form of a definition
  catalog [-filter category] <file>
                                  list node types in a catalog file
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "agentbuilder %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		return 0
	case "validate":
		err = validateCmd(args[1:], stdout)
	case "render":
		err = renderCmd(args[1:], stdout)
	case "catalog":
		err = catalogCmd(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				fmt.Fprintf(stderr, "  %s: %s\n", ve.Field, ve.Message)
			}
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func validateCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	catalogPath := fs.String("catalog", "", "catalog file used to check node types")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("validate takes exactly one definition file")
	}

	def, err := readDefinition(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := validation.Definition(def); err != nil {
		return err
	}
	if *catalogPath != "" {
		cat, err := loadCatalog(*catalogPath)
		if err != nil {
			return err
		}
		if _, err := agent.Build(def, cat); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "%s: ok (%d nodes, %d edges)\n", fs.Arg(0), len(def.Nodes), len(def.Edges))
	return nil
}

func renderCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	catalogPath := fs.String("catalog", "", "catalog file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *catalogPath == "" {
		return errors.New("render needs -catalog and one definition file")
	}

	def, err := readDefinition(fs.Arg(0))
	if err != nil {
		return err
	}
	cat, err := loadCatalog(*catalogPath)
	if err != nil {
		return err
	}
	g, err := agent.Build(def, cat)
	if err != nil {
		return err
	}
	text, err := agent.Render(g, def.Meta())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, text)
	return nil
}

func catalogCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	filter := fs.String("filter", "", "only list this category (input, worker, destination, ...)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("catalog takes exactly one catalog file")
	}

	cat, err := loadCatalog(fs.Arg(0))
	if err != nil {
		return err
	}
	for _, e := range cat.Filter(*filter) {
		fmt.Fprintf(stdout, "%-32s %-32s %d params\n", e.ID, e.Type, len(e.Parameters))
	}
	return nil
}

func readDefinition(path string) (agent.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agent.Definition{}, err
	}
	return agent.ParseDefinition(string(data))
}

// loadCatalog reads a list of node definitions from a JSON or YAML file.
func loadCatalog(path string) (*catalog.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []catalog.Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &entries)
	default:
		err = yaml.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return catalog.New(entries)
}
