// Command admin runs maintenance tasks against the recordapi database:
// migrations, account bootstrap and token cleanup.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd(openApp).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
