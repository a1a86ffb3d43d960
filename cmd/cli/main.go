// cmd/cli is an operator tool for registering a new check directly against
// the configured store, without going through the (out of scope) external
// CRUD HTTP API.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/config"
	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/facade"
	"github.com/hamed0406/uptimechecker/internal/metrics"
	"github.com/hamed0406/uptimechecker/internal/repo"
	"github.com/hamed0406/uptimechecker/internal/repo/memory"
	"github.com/hamed0406/uptimechecker/internal/repo/postgres"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()
	log := zap.NewNop()

	var store repo.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			fmt.Println("could not connect to the configured store:", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		fmt.Println("DATABASE_NODE_URLS not set; registering against a throwaway in-memory store")
		store = memory.New()
	}

	f := facade.New(store, metrics.New(store))

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		fmt.Println("Invalid URL.")
		return
	}

	check := domain.Check{
		CheckID:            uuid.New(),
		Name:               raw,
		URL:                raw,
		HTTPMethod:         domain.MethodGET,
		ExpectedStatusCode: 200,
		TimeoutSeconds:     10,
		CheckFrequencySecs: 60,
		Regions:            []domain.Region{cfg.Region},
		IsEnabled:          true,
		CreatedAtMicros:    uint64(time.Now().UnixMicro()),
	}

	if err := f.CreateCheck(ctx, check); err != nil {
		fmt.Println("could not register check:", err)
		return
	}

	fmt.Printf("Added check %s for %s in region %s.\n", check.CheckID, check.URL, check.Regions[0])
}
