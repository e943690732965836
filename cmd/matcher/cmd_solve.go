package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"social-rideshare/internal/format"
	"social-rideshare/internal/matcher"
)

type solveFlags struct {
	number    string
	algorithm string
	output    string
}

func newSolveCmd(a *app) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve [file]",
		Short: "Partition the riders of a graph file",
		Long: `Reads a graph from file, or standard input when file is "-" or omitted,
and prints the partition.

The file holds either a bare graph or a full request object with "graph",
"number", "algorithm" and "options" keys. Flags override the request.

Example:
  echo '[[1,2],[2,3],[3,4]]' | matcher solve --number 2 --format partition`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return a.runSolve(cmd, path, f)
		},
	}

	cmd.Flags().StringVarP(&f.number, "number", "n", "", "largest group size")
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", "", "auto, exact, greedy or match_and_merge (default from config)")
	cmd.Flags().StringVarP(&f.output, "format", "f", "", "json, partition or text (default from config)")
	return cmd
}

func (a *app) runSolve(cmd *cobra.Command, path string, f *solveFlags) error {
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	req, err := parseRequest(data)
	if err != nil {
		return err
	}
	if f.number != "" {
		req.Number = numberJSON(f.number)
	}
	if f.algorithm != "" {
		req.Algorithm = f.algorithm
	}
	if len(req.Number) == 0 {
		return fmt.Errorf("no group size: pass --number or include \"number\" in the request")
	}

	outputName := a.cfg.Output
	if f.output != "" {
		outputName = f.output
	}
	output, err := format.ParseOutput(outputName)
	if err != nil {
		return err
	}

	p, err := buildPipeline(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closePipeline(p, a.logger)

	resp, err := p.service.Solve(cmd.Context(), req)
	if err != nil {
		return err
	}
	return format.Write(cmd.OutOrStdout(), output, resp)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	return data, nil
}

// parseRequest accepts a full request object or a bare graph. A bare graph
// that is not JSON (whitespace separated text) is passed on as a string.
func parseRequest(data []byte) (*matcher.Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if _, ok := probe["graph"]; ok {
				var req matcher.Request
				if err := json.Unmarshal(trimmed, &req); err != nil {
					return nil, fmt.Errorf("failed to parse request: %w", err)
				}
				return &req, nil
			}
		}
	}

	if json.Valid(trimmed) {
		return &matcher.Request{Graph: json.RawMessage(trimmed)}, nil
	}
	text, err := json.Marshal(string(trimmed))
	if err != nil {
		return nil, err
	}
	return &matcher.Request{Graph: text}, nil
}

// numberJSON passes integers through as JSON numbers and anything else as a
// string, so the ingestor reports what was wrong with it
func numberJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if _, err := strconv.Atoi(s); err == nil {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}
