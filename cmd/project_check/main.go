// Command project_check reads campaigns straight from the escrow contract
// and prints their derived state, bypassing the API and cache. Useful for
// checking what the chain actually holds when a projection looks wrong.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/config"
	"github.com/fairfund-scanner/internal/projection"
	"github.com/fairfund-scanner/internal/token"
)

func main() {
	idFlag := flag.Int64("id", -1, "Specific project id to check (optional)")
	allFlag := flag.Bool("all", false, "Check all projects")
	backerFlag := flag.String("backer", "", "Also print this backer's contribution")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Could not load .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		fmt.Printf("Error connecting to RPC endpoint: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	escrow, err := chain.NewEscrowGateway(client, cfg.Chain.EscrowAddress)
	if err != nil {
		fmt.Printf("Error binding escrow contract: %v\n", err)
		os.Exit(1)
	}

	resolver := token.NewResolver(chain.NewTokenGateway(client), token.NewMetadataStore())
	builder := projection.NewBuilder(resolver, token.NewFormatter(cfg.LocaleTag()), nil)

	count, err := escrow.ProjectCount(ctx)
	if err != nil {
		fmt.Printf("Error reading project count: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Escrow %s holds %s project(s)\n\n", cfg.Chain.EscrowAddress, count)

	var ids []uint64
	switch {
	case *idFlag >= 0:
		ids = []uint64{uint64(*idFlag)}
	case *allFlag:
		for id := uint64(0); id < count.Uint64(); id++ {
			ids = append(ids, id)
		}
	default:
		fmt.Println("Usage: project_check -id <n> | -all [-backer 0x...]")
		os.Exit(2)
	}

	for _, id := range ids {
		record, err := escrow.GetProject(ctx, new(big.Int).SetUint64(id))
		if err != nil {
			fmt.Printf("project %d: read failed: %v\n", id, err)
			continue
		}

		detail := builder.BuildDetail(ctx, id, record)
		fmt.Printf("project %d: %q\n", id, detail.Title)
		fmt.Printf("  status:    %s (withdrawn=%v cancelled=%v)\n", detail.Status, detail.Withdrawn, detail.Cancelled)
		fmt.Printf("  token:     %s (%s)\n", detail.TokenAddress, detail.TokenSymbol)
		fmt.Printf("  goal:      %s\n", detail.Goal.Formatted)
		fmt.Printf("  raised:    %s (%.0f%%)\n", detail.Raised.Formatted, detail.Progress*100)
		fmt.Printf("  refunded:  %s\n", detail.Refunded.Formatted)
		fmt.Printf("  deadline:  %s (%s)\n", detail.DeadlineLabel, time.Unix(detail.Deadline, 0).UTC().Format(time.RFC3339))

		if *backerFlag != "" && chain.ValidateAddress(*backerFlag) {
			printContribution(ctx, escrow, resolver, id, record, *backerFlag)
		}
		fmt.Println()
	}
}

func printContribution(ctx context.Context, escrow *chain.EscrowGateway, resolver *token.Resolver, id uint64, record chain.RawProject, backer string) {
	contribution, err := escrow.GetContribution(ctx, new(big.Int).SetUint64(id), common.HexToAddress(backer))
	if err != nil {
		fmt.Printf("  backer:    read failed: %v\n", err)
		return
	}
	md := resolver.Resolve(ctx, record.TokenAddress.Hex())
	fmt.Printf("  backer:    %s contributed %s %s (refunded %s)\n",
		chain.NormalizeAddress(backer),
		token.FormatUnits(contribution.Amount, md.Decimals), md.Symbol,
		token.FormatUnits(contribution.Refunded, md.Decimals))
}
