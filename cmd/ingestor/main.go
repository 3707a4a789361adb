// Command ingestor imports features and water beta into the feature database.
//
//	ingestor features tanks.geojson huts.geojson
//	ingestor beta observations.json
//	ingestor sync --feed https://example.org/water-beta.json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	closeAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
