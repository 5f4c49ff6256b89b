package main

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/picker"
	"github.com/taskctl/taskctl/internal/taskerr"
)

type validateReport struct {
	Valid             bool     `json:"valid"`
	Problems          []string `json:"problems,omitempty"`
	CyclesFound       int      `json:"cycles_found"`
	MissingReferences int      `json:"missing_references"`
}

func newValidateCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate the task graph: duplicate ids, cycles, missing references",
		GroupID: "graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(refresh)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			ok, problems := g.Validate()
			report := validateReport{
				Valid:             ok,
				Problems:          problems,
				CyclesFound:       len(g.DetectCycles()),
				MissingReferences: len(g.MissingDependencies()),
			}

			if err := a.emit(report, func() {
				if ok {
					a.io.Println(a.io.StyleOK("graph is valid"))
					return
				}
				a.io.Println(a.io.StyleError("graph is invalid:"))
				for _, p := range problems {
					a.io.Println(" -", p)
				}
			}); err != nil {
				return err
			}
			if !ok {
				return taskerr.New(taskerr.KindValidation, "task graph failed validation")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a cache refresh before validating")
	return cmd
}

func newCheckHaltCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "check-halt",
		Short:   "Check whether any unblocker task is itself blocked",
		GroupID: "graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(refresh)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			type result struct {
				Halted            bool     `json:"halted"`
				BlockedUnblockers []string `json:"blocked_unblockers,omitempty"`
			}
			var res result
			var halt *taskerr.Error
			if he := picker.CheckHaltConditions(g.Tasks()); he != nil {
				res = result{Halted: true, BlockedUnblockers: he.BlockedUnblockers}
				halt = he.ToTaskErr()
			}

			if err := a.emit(res, func() {
				if res.Halted {
					a.io.Println(a.io.StyleError("halted: unblocker task(s) blocked:"), res.BlockedUnblockers)
				} else {
					a.io.Println(a.io.StyleOK("no halt condition"))
				}
			}); err != nil {
				return err
			}
			if halt != nil {
				return halt
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a cache refresh before checking")
	return cmd
}
