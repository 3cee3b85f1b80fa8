// Command issue_token firma un access token para la API de chat con el JWT_SECRET
// configurado y lo imprime en stdout.
//
//	issue_token -sub operator -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"tagrag/internal/service"
)

type tokenConfig struct {
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
}

func main() {
	subject := flag.String("sub", "operator", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	var cfg tokenConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	token, err := service.NewJWTService(cfg.JWTSecret, *ttl).Issue(*subject)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
