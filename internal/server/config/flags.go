package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/vaultgate/internal/flagx"
)

var ownFlags = []string{
	"-a", "-g", "-d", "-s", "-l", "-t", "-w", "-p", "-r", "-m",
	"-u", "-k", "-b", "-region", "-e",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-g string     gRPC health bind address (e.g. ":50051")
//	-d string     PostgreSQL DSN
//	-s string     session token HMAC secret
//	-l string     log level (debug, info, warn, error)
//	-t duration   session duration (e.g. "300s")
//	-w duration   payment confirmation timeout (e.g. "5s")
//	-p string     payment provider base URL (empty = simulated)
//	-r string     Redis address (empty = no cache, no throttle)
//	-m int        max passkey attempts per window (0 = unlimited)
//	-u string     S3 root user
//	-k string     S3 root password
//	-b string     S3 bucket
//	-region       S3 region
//	-e string     S3 base endpoint
//
// Args are pre-filtered with flagx.FilterArgs so -c/-config never collides.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], ownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session token secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.SessionDuration, "t", config.SessionDuration, "session duration")
	fs.DurationVar(&config.PaymentTimeout, "w", config.PaymentTimeout, "payment confirmation timeout")
	fs.StringVar(&config.PaymentProviderURL, "p", config.PaymentProviderURL, "payment provider base URL")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")
	fs.IntVar(&config.MaxPasskeyAttempts, "m", config.MaxPasskeyAttempts, "max passkey attempts per window")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "k", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
