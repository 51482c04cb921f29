package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

var treeCommand = &cli.Command{
	Name:  "tree",
	Usage: "Print the provider's accessibility tree",
	Description: `Prints an indented outline of the current tree, or with --snapshot
the showing, labelled nodes grouped by role (what a failed locate reports).`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "snapshot",
			Usage: "Group showing nodes by role instead of printing the outline",
		},
		&cli.IntFlag{
			Name:  "max-nodes",
			Usage: "Stop after this many nodes",
			Value: tree.DefaultMaxNodes,
		},
	},
	Action: printTree,
}

func printTree(c *cli.Context) error {
	p, cleanup, err := openProvider(c.Context, providerConfigFrom(c))
	defer cleanup()
	if err != nil {
		return err
	}

	if !c.Bool("snapshot") {
		return tree.Dump(c.Context, p, c.App.Writer, c.Int("max-nodes"))
	}

	snap, err := tree.TakeSnapshot(c.Context, p, c.Int("max-nodes"))
	if err != nil {
		return err
	}
	for _, role := range snap.Roles() {
		fmt.Fprintf(c.App.Writer, "%s (%d)\n", bold.Sprint(role), len(snap[role]))
		for _, label := range snap[role] {
			fmt.Fprintf(c.App.Writer, "  %s\n", label)
		}
	}
	fmt.Fprintf(c.App.Writer, "\n%d labelled nodes showing\n", snap.Count())
	return nil
}
