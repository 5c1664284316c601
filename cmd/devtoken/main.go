// Command devtoken mints an access token for local testing of the booking
// API.  It signs with JWT_SECRET from the same environment the server reads.
//
//	devtoken -holder u1 -email u1@example.com
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/utils"
)

func main() {
	holder := flag.String("holder", "", "holder id placed in the sub claim")
	email := flag.String("email", "", "holder contact placed in the email claim")
	flag.Parse()

	if *holder == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -holder <id> [-email <address>]")
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	tok, err := utils.NewAccessToken(cfg.JWT.Secret, *holder, *email, cfg.JWT.TTL)
	if err != nil {
		logrus.WithError(err).Fatal("sign token")
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", tok.Exp.Format("2006-01-02 15:04:05 MST"))
}
