// Command a11y-runner runs scenario flows against an accessibility tree.
package main

import "github.com/devicelab-dev/a11y-runner/pkg/cli"

func main() {
	cli.Execute()
}
