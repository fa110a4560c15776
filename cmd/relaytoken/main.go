// Command relaytoken prints a bearer token for the relay admin API.
//
// It reads the same config file and environment as the relay, so the token
// is signed with the secret the running relay verifies against.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/megarelay/internal/auth"
	"github.com/dmitrijs2005/megarelay/internal/config"
	"github.com/dmitrijs2005/megarelay/internal/flagx"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	fs := flag.NewFlagSet("relaytoken", flag.ExitOnError)
	id := fs.Int64("id", 0, "admin user id embedded in the token")
	ttl := fs.Duration("ttl", cfg.AdminTokenTTL, "token lifetime")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-id", "-ttl"}))

	if cfg.AdminSecret == "" {
		log.Fatalf("admin secret is not configured (set %s)", config.EnvAdminSecret)
	}
	if *id == 0 {
		log.Fatal("-id is required")
	}
	if len(cfg.AdminUserIDs) > 0 && !cfg.IsAdmin(*id) {
		log.Printf("warning: %d is not listed in the relay admin ids", *id)
	}

	token, err := auth.GenerateToken(*id, []byte(cfg.AdminSecret), *ttl)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(token)
}
