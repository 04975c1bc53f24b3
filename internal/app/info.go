package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/amorokk/bee/internal/fetcher"
	"github.com/amorokk/bee/internal/token"
)

// Info looks up a single asset by ticker and prints its current status line.
func (a *App) Info(ctx context.Context, coin string) error {
	coin = strings.ToLower(strings.TrimSpace(coin))
	if coin == "" {
		return errors.New("coin must not be empty")
	}

	client := a.newMarketClient()

	rec, err := client.FetchTokenInfo(ctx, coin)
	if err != nil {
		if errors.Is(err, fetcher.ErrEmptyResult) {
			fmt.Fprintf(os.Stdout, "%s: not found on the lending market\n", strings.ToUpper(coin))
			return nil
		}
		return err
	}

	fmt.Fprintln(os.Stdout, token.FromRecord(rec).Format())
	return nil
}
