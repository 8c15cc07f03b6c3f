// Command vaultctl is the operator CLI: it applies migrations, issues vaults
// and registers assets.
//
// Usage:
//
//	vaultctl migrate
//	vaultctl issue-vault -owner "Lumen Studio" -visibility private -phone "+1 555 010 0199" -price 100
//	vaultctl add-asset -vault <id> -title "Dawn" -category Media -license Commercial -file dawn.jpg
//
// Connection settings come from the server configuration (-c/-config, -d,
// -r and the S3 flags).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/vaultgate/internal/admin"
	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/flagx"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/cache"
	"github.com/dmitrijs2005/vaultgate/internal/server/config"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultgate/internal/server/storage"
	"github.com/redis/go-redis/v9"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vaultctl <migrate|issue-vault|add-asset> [flags]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stderr, cfg.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()

	var inv admin.Invalidator
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		inv = cache.NewCachedRegistry(client, rm.Vaults(db), cfg.RegistryCacheTTL, logger)
	}

	tool := admin.NewTool(db, rm, inv, storage.NewPresigner(cfg), logger)
	args := os.Args[2:]

	switch os.Args[1] {
	case "migrate":
		err = tool.Migrate(ctx)
	case "issue-vault":
		err = issueVault(ctx, tool, args)
	case "add-asset":
		err = addAsset(ctx, tool, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%v", err)
	}
}

func issueVault(ctx context.Context, tool *admin.Tool, args []string) error {
	var spec admin.VaultSpec
	var visibility string

	own := []string{"-owner-id", "-owner", "-visibility", "-client", "-phone", "-price"}
	fs := flag.NewFlagSet("issue-vault", flag.ContinueOnError)
	fs.StringVar(&spec.OwnerID, "owner-id", "", "owner account id")
	fs.StringVar(&spec.OwnerName, "owner", "", "studio display name")
	fs.StringVar(&visibility, "visibility", string(models.VisibilityPrivate), "private or public")
	fs.StringVar(&spec.ClientName, "client", "", "client name")
	fs.StringVar(&spec.ClientPhone, "phone", "", "client phone")
	fs.Int64Var(&spec.PricePerAsset, "price", 0, "price per asset")
	if err := fs.Parse(flagx.FilterArgs(args, own)); err != nil {
		return err
	}
	spec.Visibility = models.Visibility(strings.ToLower(visibility))

	if spec.OwnerName == "" {
		name, err := admin.GetSimpleText(bufio.NewReader(os.Stdin), "Studio name", os.Stdout)
		if err != nil {
			return err
		}
		spec.OwnerName = name
	}

	var passkey []byte
	if spec.Visibility == models.VisibilityPrivate {
		p, err := admin.GetPasskey(os.Stdout)
		if err != nil {
			return err
		}
		passkey = p
		defer common.WipeByteArray(passkey)
	}

	v, err := tool.IssueVault(ctx, spec, passkey)
	if err != nil {
		return err
	}
	fmt.Printf("vault %s issued (%s)\n", v.ID, v.Visibility)
	return nil
}

func addAsset(ctx context.Context, tool *admin.Tool, args []string) error {
	var spec admin.AssetSpec
	var file string

	own := []string{"-vault", "-title", "-base-price", "-category", "-license", "-file"}
	fs := flag.NewFlagSet("add-asset", flag.ContinueOnError)
	fs.StringVar(&spec.VaultID, "vault", "", "vault id")
	fs.StringVar(&spec.Title, "title", "", "asset title")
	fs.Int64Var(&spec.BasePrice, "base-price", 0, "price override (0 = vault price)")
	fs.StringVar(&spec.Category, "category", "", "category, e.g. Media/News")
	fs.StringVar(&spec.License, "license", "", "license, e.g. Personal")
	fs.StringVar(&file, "file", "", "original to upload right away")
	if err := fs.Parse(flagx.FilterArgs(args, own)); err != nil {
		return err
	}
	if spec.VaultID == "" {
		return fmt.Errorf("-vault is required")
	}

	a, url, err := tool.AddAsset(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Printf("asset %s added at position %d\n", a.ID, a.Position)

	if file == "" {
		fmt.Printf("upload the original with:\n  curl -X PUT --upload-file <file> '%s'\n", url)
		return nil
	}
	return tool.UploadOriginal(ctx, nil, url, file)
}
