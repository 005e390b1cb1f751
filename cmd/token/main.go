package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"billrecon/internal/auth"
	"billrecon/internal/config"
)

func main() {
	subject := flag.String("subject", "", "caller the token is issued to, e.g. an email address")
	ttl := flag.Duration("ttl", 0, "token lifetime (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tok, err := auth.NewTokenService(cfg.JWT).Issue(*subject, *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(tok.AccessToken)
	log.Printf("token for %s expires %s", *subject, tok.ExpiresAt.Format(time.RFC3339))
}
