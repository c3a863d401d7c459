// Package main выпускает токены доступа для участников.
//
// Пример: stafftoken -s secret admin1 user1
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mmeshcher/staffledger/internal/config"
	"github.com/mmeshcher/staffledger/internal/middleware"
	"github.com/mmeshcher/staffledger/internal/model"
	"github.com/mmeshcher/staffledger/internal/validation"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	secret := flag.String("s", os.Getenv("AUTH_SECRET"), "token signing secret")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: stafftoken [-s secret] principal...")
		os.Exit(2)
	}

	key, err := (&config.Config{AuthSecret: *secret}).Secret()
	if err != nil {
		logger.Fatal("token signing secret is required", zap.Error(err))
	}

	auth := middleware.NewAuthMiddleware(key)
	for _, arg := range flag.Args() {
		if !validation.IsValidPrincipal(arg) {
			logger.Fatal("invalid principal", zap.String("principal", arg))
		}
		fmt.Printf("%s\t%s\n", arg, auth.Sign(model.Principal(arg)))
	}
}
