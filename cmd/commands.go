package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccheney/problem-lifecycle/internal/application"
	"github.com/ccheney/problem-lifecycle/internal/domain"
	"github.com/ccheney/problem-lifecycle/internal/infrastructure"
)

type initResult struct {
	Status    string `json:"status" yaml:"status"`
	Workspace string `json:"workspace" yaml:"workspace"`
	DbPath    string `json:"db_path" yaml:"db_path"`
}

type userResult struct {
	Status   string `json:"status" yaml:"status"`
	ID       string `json:"id" yaml:"id"`
	FullName string `json:"fullname" yaml:"fullname"`
}

type notificationsResult struct {
	Status        string                        `json:"status" yaml:"status"`
	User          string                        `json:"user" yaml:"user"`
	Notifications []infrastructure.Notification `json:"notifications" yaml:"notifications"`
}

// options resolves the output format, preferring the loaded config.
func (p *AppProvider) options(cmd *cobra.Command) outputOptions {
	if p.app != nil {
		return outputOptions{format: p.app.Output, pretty: p.app.Pretty}
	}
	format, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")
	return outputOptions{format: format, pretty: pretty}
}

// fail writes err as an error result under the given method name.
func (p *AppProvider) fail(cmd *cobra.Command, method string, err error) error {
	actor, _ := cmd.Flags().GetString("actor")
	if p.app != nil {
		actor = p.app.Actor
	}
	return outputResult(p.Out, p.options(cmd), application.ErrorResult(method, domain.ActorId(actor), err))
}

// call routes one RPC through the router and writes the result.
func (p *AppProvider) call(cmd *cobra.Command, method string, payload []byte) error {
	app, err := p.Get()
	if err != nil {
		return p.fail(cmd, method, err)
	}
	result := app.Router.Call(cmd.Context(), method, domain.ActorId(app.Actor), payload)
	return outputResult(app.Out, p.options(cmd), result)
}

func newInitCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a problems workspace",
		Long:  "Create the .problems directory and an empty database under dir (default: --workspace or the current directory).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("workspace")
			if len(args) == 1 {
				root = args[0]
			}
			if root == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return provider.fail(cmd, "init", domain.NewStorageError(domain.ErrCodeUnexpected, err.Error()))
				}
				root = cwd
			}

			dbPath, err := infrastructure.NewWorkspaceDiscoveryAdapter().InitWorkspace(root)
			if err != nil {
				return provider.fail(cmd, "init", err)
			}

			timeoutMs, _ := cmd.Flags().GetInt("timeout-ms")
			conn, err := infrastructure.OpenSQLite(dbPath, timeoutMs)
			if err != nil {
				return provider.fail(cmd, "init", err)
			}
			defer conn.Close()
			if err := conn.EnsureSchema(cmd.Context()); err != nil {
				return provider.fail(cmd, "init", err)
			}

			result := initResult{Status: "success", Workspace: root, DbPath: dbPath}
			return render(provider.Out, provider.options(cmd), result, func(w io.Writer) {
				fmt.Fprintf(w, "Initialized workspace in %s\n", root)
			})
		},
	}
}

func newUserCmd(provider *AppProvider) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}

	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return provider.fail(cmd, "userAdd", err)
			}

			id, err := domain.NewActorId(args[0])
			if err != nil {
				return provider.fail(cmd, "userAdd", domain.NewInvalidArgument(err.Error()))
			}
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = id.String()
			}

			if err := app.Users.AddUser(cmd.Context(), id, name); err != nil {
				return provider.fail(cmd, "userAdd", err)
			}

			result := userResult{Status: "success", ID: id.String(), FullName: name}
			return render(app.Out, provider.options(cmd), result, func(w io.Writer) {
				fmt.Fprintf(w, "Added user %s (%s)\n", id, name)
			})
		},
	}
	addCmd.Flags().String("name", "", "Display name (defaults to the id)")

	userCmd.AddCommand(addCmd)
	return userCmd
}

func newAddCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a problem",
		Long:  "Create a problem owned by --actor. FYI problems are broadcast to every registered user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := application.AddProblemRequest{}
			req.Summary, _ = cmd.Flags().GetString("summary")
			req.FYIProblem, _ = cmd.Flags().GetBool("fyi")
			req.Dependencies, _ = cmd.Flags().GetStringSlice("depends-on")
			req.InvDependencies, _ = cmd.Flags().GetStringSlice("blocks")
			if cmd.Flags().Changed("description") {
				description, _ := cmd.Flags().GetString("description")
				req.Description = &description
			}
			if cmd.Flags().Changed("solution") {
				solution, _ := cmd.Flags().GetString("solution")
				req.Solution = &solution
			}

			payload, err := json.Marshal(req)
			if err != nil {
				return err
			}
			return provider.call(cmd, "addProblem", payload)
		},
	}

	cmd.Flags().String("summary", "", "Problem summary (required)")
	cmd.Flags().String("description", "", "Problem description")
	cmd.Flags().String("solution", "", "Known solution")
	cmd.Flags().Bool("fyi", false, "Broadcast the new problem to every user")
	cmd.Flags().StringSlice("depends-on", nil, "Problem ids this one depends on")
	cmd.Flags().StringSlice("blocks", nil, "Problem ids that depend on this one")
	return cmd
}

func newClaimCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim an unclaimed problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			estimate, _ := cmd.Flags().GetInt("estimate")
			payload, err := json.Marshal(application.ClaimProblemRequest{ID: args[0], Estimate: estimate})
			if err != nil {
				return err
			}
			return provider.call(cmd, "claimProblem", payload)
		},
	}
	cmd.Flags().Int("estimate", 0, "Estimated effort")
	return cmd
}

func newShowCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(application.GetProblemRequest{ID: args[0]})
			if err != nil {
				return err
			}
			return provider.call(cmd, "getProblem", payload)
		},
	}
}

func newCallCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [payload|-]",
		Short: "Invoke an RPC method with a JSON payload",
		Long: `Invoke one of the lifecycle RPC methods by name. The payload is a JSON
object; pass - to read it from stdin. Methods: claimProblem, unclaimProblem,
markAsResolved, markAsUnSolved, removeClaimer, updateStatus, reopenProblem,
editProblem, deleteProblem, addProblem, acceptSolution, getProblem,
watchProblem, unwatchProblem, problemApproval.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if len(args) == 2 {
				payload = []byte(args[1])
				if args[1] == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return err
					}
					payload = data
				}
			}
			return provider.call(cmd, args[0], payload)
		},
	}
}

func newNotificationsCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications <user>",
		Short: "List notifications delivered to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return provider.fail(cmd, "notifications", err)
			}

			user, err := domain.NewActorId(args[0])
			if err != nil {
				return provider.fail(cmd, "notifications", domain.NewInvalidArgument(err.Error()))
			}
			limit, _ := cmd.Flags().GetInt("limit")

			items, err := app.Inbox.ListForUser(cmd.Context(), user, limit)
			if err != nil {
				return provider.fail(cmd, "notifications", err)
			}
			if items == nil {
				items = []infrastructure.Notification{}
			}

			result := notificationsResult{Status: "success", User: user.String(), Notifications: items}
			return render(app.Out, provider.options(cmd), result, func(w io.Writer) {
				if len(items) == 0 {
					fmt.Fprintf(w, "No notifications for '%s'\n", user)
					return
				}
				for _, n := range items {
					fmt.Fprintf(w, "%s  %s\n", n.CreatedAt.Format("2006-01-02 15:04:05"), n.Href)
				}
			})
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum number of notifications")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "problemctl version %s\n", Version)
		},
	}
}
