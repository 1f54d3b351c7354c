package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kapu/mines-leaderboard-go/internal/authtoken"
)

// mintoken prints a fresh single-use administrative bearer token signed with
// ADMIN_SECRET. Intended for ops scripts hitting the /api/admin endpoints.
func main() {
	secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	auth := authtoken.New(nil, secret)
	token, err := auth.Issue()
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Println(token)
}
