package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// withWorkspace opens the configured workspace, runs fn and closes it.
func (c *CLI) withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, ws *workspace) error) (err error) {
	ws, err := c.openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, ws.Close(context.WithoutCancel(cmd.Context())))
	}()
	return fn(cmd.Context(), ws)
}

// =============================================================================
// create
// =============================================================================

type createOptions struct {
	name   string
	owner  string
	parent string
	key    string
	state  []string
	quiet  bool
}

func (c *CLI) createCommand() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create TYPE",
		Short: "Create and save a component",
		Long: `Create a component of the given type and save it.

View state is given as view.key=value, for example --state text.body=hello.`,
		Example: `  compgraph create folder --name Projects
  compgraph create note --name todo --parent 6f1c... --state text.body="buy milk"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				return c.runCreate(ctx, ws, args[0], opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "display name")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "owning user (default: import.owner from config)")
	cmd.Flags().StringVarP(&opts.parent, "parent", "p", "", "append the new component to this parent")
	cmd.Flags().StringVar(&opts.key, "key", "", "external key")
	cmd.Flags().StringArrayVar(&opts.state, "state", nil, "view state entry view.key=value (repeatable)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "print only the new id")

	return cmd
}

func (c *CLI) runCreate(ctx context.Context, ws *workspace, typeID string, opts createOptions) error {
	state, err := parseStateFlags(opts.state)
	if err != nil {
		return err
	}
	owner := opts.owner
	if owner == "" {
		owner = c.cfg.Import.Owner
	}

	var parent *component.Node
	if opts.parent != "" {
		if parent, err = ws.graph.Lookup(ctx, opts.parent); err != nil {
			return err
		}
	}

	n, err := ws.graph.Create(ctx, typeID, owner)
	if err != nil {
		return err
	}
	n.SetDisplayName(opts.name)
	n.SetExternalKey(opts.key)
	for vt, bag := range state {
		if err := n.SetViewState(ctx, vt, bag); err != nil {
			return err
		}
	}
	if parent != nil {
		if err := parent.AddChildren(ctx, -1, n); err != nil {
			return err
		}
	}

	if err := n.Save(ctx); err != nil {
		return err
	}
	if parent != nil {
		if err := parent.Save(ctx); err != nil {
			return err
		}
	}

	if opts.quiet {
		printPlain(n.ID())
		return nil
	}
	printSuccess("Created %s %s", typeID, StyleHighlight.Render(n.Name()))
	printKeyValue("id", n.ID())
	if parent != nil {
		printKeyValue("parent", parent.ID())
	}
	return nil
}

// parseStateFlags turns view.key=value entries into per-view bags.
func parseStateFlags(entries []string) (map[string]component.PropertyBag, error) {
	out := make(map[string]component.PropertyBag)
	for _, entry := range entries {
		path, value, ok := strings.Cut(entry, "=")
		vt, key, okPath := strings.Cut(path, ".")
		if !ok || !okPath || vt == "" || key == "" {
			return nil, cerrors.New(cerrors.ErrCodeInvalidInput, "invalid state %q (want view.key=value)", entry)
		}
		if out[vt] == nil {
			out[vt] = component.PropertyBag{}
		}
		out[vt][key] = value
	}
	return out, nil
}

// =============================================================================
// link / unlink
// =============================================================================

func (c *CLI) linkCommand() *cobra.Command {
	var at int

	cmd := &cobra.Command{
		Use:   "link PARENT CHILD...",
		Short: "Add children to a component",
		Long: `Insert children into PARENT's child list. Children already present are
moved to the insertion point. Links may form cycles.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				nodes, err := ws.lookup(ctx, args)
				if err != nil {
					return err
				}
				parent, children := nodes[0], nodes[1:]
				if err := parent.AddChildren(ctx, at, children...); err != nil {
					return err
				}
				if err := parent.Save(ctx); err != nil {
					return err
				}
				printSuccess("Linked %d children under %s", len(children), StyleHighlight.Render(parent.Name()))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&at, "at", -1, "insertion index (-1 appends)")

	return cmd
}

func (c *CLI) unlinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink PARENT CHILD...",
		Short: "Remove children from a component",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				nodes, err := ws.lookup(ctx, args)
				if err != nil {
					return err
				}
				parent, children := nodes[0], nodes[1:]
				if err := parent.RemoveChildren(ctx, children...); err != nil {
					return err
				}
				if err := parent.Save(ctx); err != nil {
					return err
				}
				printSuccess("Unlinked %d children from %s", len(children), StyleHighlight.Render(parent.Name()))
				return nil
			})
		},
	}
}

// =============================================================================
// ls
// =============================================================================

func (c *CLI) lsCommand() *cobra.Command {
	var idsOnly bool
	var typeFilter string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored components",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				all, err := ws.graph.List(ctx)
				if err != nil {
					return err
				}
				var rows []component.Summary
				for _, s := range all {
					if typeFilter == "" || s.TypeID == typeFilter {
						rows = append(rows, s)
					}
				}
				if idsOnly {
					for _, s := range rows {
						printPlain(s.ID)
					}
					return nil
				}
				if len(rows) == 0 {
					printInfo("No components stored")
					return nil
				}
				printPlain(summaryTable(rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&idsOnly, "ids", false, "print ids only")
	cmd.Flags().StringVarP(&typeFilter, "type", "t", "", "only list this type")

	return cmd
}

func summaryTable(rows []component.Summary) string {
	data := make([][]string, len(rows))
	for i, s := range rows {
		data[i] = []string{s.ID, s.TypeID, s.DisplayName, fmt.Sprint(s.Version), fmt.Sprint(s.ChildCount)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Type", "Name", "Version", "Children").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 0 {
				return StyleDim
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// =============================================================================
// tree
// =============================================================================

func (c *CLI) treeCommand() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "tree ID...",
		Short: "Print the component hierarchy under each root",
		Long: `Print the hierarchy under each root. A child that closes a cycle is marked
with ↺; a shared child already printed is marked with →.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				roots, err := ws.lookup(ctx, args)
				if err != nil {
					return err
				}
				p := &treePrinter{maxDepth: depth, printed: map[string]bool{}, path: map[string]bool{}}
				for _, r := range roots {
					if err := p.print(ctx, r, 0); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum depth (0 for unlimited)")

	return cmd
}

type treePrinter struct {
	maxDepth int
	printed  map[string]bool
	path     map[string]bool
}

func (p *treePrinter) print(ctx context.Context, n *component.Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	label := n.Name() + " " + StyleDim.Render("["+n.TypeID()+"] "+shortID(n.ID()))

	switch {
	case p.path[n.ID()]:
		printPlain(indent + StyleWarning.Render(iconCycle) + " " + label)
		return nil
	case p.printed[n.ID()]:
		printPlain(indent + StyleDim.Render(iconArrow) + " " + label)
		return nil
	}
	printPlain(indent + label)
	p.printed[n.ID()] = true

	if p.maxDepth > 0 && depth+1 >= p.maxDepth {
		return nil
	}
	children, err := n.Children(ctx)
	if err != nil {
		return err
	}
	p.path[n.ID()] = true
	defer delete(p.path, n.ID())
	for _, child := range children {
		if err := p.print(ctx, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// types
// =============================================================================

func (c *CLI) typesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List known component types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				var rows [][]string
				for _, t := range ws.types.List() {
					creatable := ""
					if t.Creatable {
						creatable = iconSuccess
					}
					rows = append(rows, []string{t.ID, t.Label, creatable, strings.Join(t.ViewTypes, ", ")})
				}
				printPlain(table.New().
					Border(lipgloss.RoundedBorder()).
					BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
					Headers("Type", "Label", "Creatable", "Views").
					Rows(rows...).
					StyleFunc(func(row, col int) lipgloss.Style {
						if row == -1 {
							return styleHeader
						}
						return lipgloss.NewStyle()
					}).
					Render())
				return nil
			})
		},
	}
}
