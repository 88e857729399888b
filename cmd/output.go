package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccheney/problem-lifecycle/internal/application"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatHuman = "human"
)

type outputOptions struct {
	format string
	pretty bool
}

// outputResult writes an RPC result and fails the command on error status.
func outputResult(w io.Writer, opts outputOptions, result application.RPCResult) error {
	if err := render(w, opts, result, func(w io.Writer) { outputHuman(w, result) }); err != nil {
		return err
	}
	if result.Status == "error" {
		return errCommandFailed
	}
	return nil
}

func render(w io.Writer, opts outputOptions, v interface{}, human func(io.Writer)) error {
	switch strings.ToLower(opts.format) {
	case formatHuman:
		human(w)
		return nil
	case formatYAML:
		return outputYAML(w, v)
	case formatJSON, "":
		return outputJSON(w, opts.pretty, v)
	default:
		return fmt.Errorf("unknown output format %q", opts.format)
	}
}

func outputJSON(w io.Writer, pretty bool, v interface{}) error {
	var data []byte
	var err error

	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fmt.Fprintln(w, string(data))
	return nil
}

func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return enc.Close()
}

func outputHuman(w io.Writer, result application.RPCResult) {
	if result.Status == "error" {
		fmt.Fprintf(w, "Error: [%s] %s\n", result.Error.Code, result.Error.Message)
		return
	}

	if result.Problem == nil {
		switch {
		case result.Member != nil:
			fmt.Fprintf(w, "%s %s: member=%t\n", result.Method, result.ProblemID, *result.Member)
		default:
			fmt.Fprintf(w, "%s %s: ok\n", result.Method, result.ProblemID)
		}
		return
	}

	p := result.Problem
	fmt.Fprintf(w, "Problem %s: %s\n", p.ID, p.Summary)
	fmt.Fprintf(w, "  Status: %s\n", p.Status)
	fmt.Fprintf(w, "  Created by: %s\n", p.CreatedBy)
	if p.Claimed {
		fmt.Fprintf(w, "  Claimed by: %s (%s)\n", p.ClaimedBy, p.ClaimedFullname)
		fmt.Fprintf(w, "  Estimate: %d\n", p.Estimate)
	}
	if p.ResolveSteps != "" {
		fmt.Fprintf(w, "  Resolution: %s\n", p.ResolveSteps)
	}
	if len(p.PreviousSolutions) > 0 {
		fmt.Fprintf(w, "  Previous solutions: %d\n", len(p.PreviousSolutions))
	}
	if len(p.Approvals) > 0 {
		fmt.Fprintf(w, "  Approvals: %v\n", p.Approvals)
	}
	if len(p.Subscribers) > 0 {
		fmt.Fprintf(w, "  Subscribers: %v\n", p.Subscribers)
	}
}
