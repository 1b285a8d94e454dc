package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Mints an admin session token for local API poking without going
// through the login endpoint.
func main() {
	email := flag.String("email", "admin@cleanmadurai.local", "admin email claim")
	secret := flag.String("secret", os.Getenv("APP_SIGNING_SECRET"), "signing secret")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "signing secret required (-secret or APP_SIGNING_SECRET)")
		os.Exit(1)
	}

	claims := jwt.MapClaims{
		"email": *email,
		"role":  "admin",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(*ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(*secret))
	if err != nil {
		panic(err)
	}
	fmt.Println(signedToken)
}
