// Command devtoken mints a bearer token accepted by a locally running API.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/config"
)

func main() {
	subject := flag.String("sub", "", "user id (required)")
	name := flag.String("name", "", "display name")
	email := flag.String("email", "", "email address")
	scopes := flag.String("scopes", strings.Join(auth.AllScopes, ","), "comma separated scopes")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	token, err := auth.Issue(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		*subject, *name, *email, strings.Split(*scopes, ","), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
