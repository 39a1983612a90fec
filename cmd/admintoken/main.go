// Command admintoken mints a bearer token for the broker's admin
// endpoints. The secret comes from ADMIN_JWT_SECRET so the output
// verifies against a running server sharing the same environment.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/fanoutlabs/graph-broker/internal/utils"
)

func main() {
	sub := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is not set")
		os.Exit(1)
	}

	tok, err := utils.NewAdminToken(secret, *sub, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "signing failed:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
