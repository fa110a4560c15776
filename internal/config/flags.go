package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/megarelay/internal/flagx"
)

var knownFlags = []string{
	"-t", "-s", "-f", "-u", "-d", "-w", "-b", "-r", "-a", "-e", "-g", "-k", "-l",
	"-cooldown", "-retry-delay", "-progress", "-admins",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-t string          Telegram bot token
//	-s string          storage backend: json or postgres
//	-f string          accounts document (json backend)
//	-u string          seen-users document (json backend)
//	-d string          PostgreSQL DSN (postgres backend)
//	-w string          working directory for downloads
//	-b int             jobs per batch
//	-r int             upload attempts per job
//	-a string          admin HTTP API address, empty disables it
//	-e string          S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-g string          S3 region
//	-k string          S3 bucket
//	-l string          log level
//	-cooldown dur      pause between batches
//	-retry-delay dur   pause between upload attempts
//	-progress dur      minimum interval between progress edits
//	-admins list       comma separated admin user ids
//
// Only the flags above are read from os.Args; anything else (including
// -c/-config, handled by parseFile) is ignored here.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)

	fs.StringVar(&config.BotToken, "t", config.BotToken, "telegram bot token")
	fs.StringVar(&config.StorageBackend, "s", config.StorageBackend, "storage backend (json|postgres)")
	fs.StringVar(&config.AccountsFile, "f", config.AccountsFile, "accounts file")
	fs.StringVar(&config.UsersFile, "u", config.UsersFile, "users file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.WorkDir, "w", config.WorkDir, "download directory")
	fs.IntVar(&config.BatchSize, "b", config.BatchSize, "jobs per batch")
	fs.IntVar(&config.MaxRetries, "r", config.MaxRetries, "upload attempts")
	fs.StringVar(&config.AdminAddr, "a", config.AdminAddr, "admin API address")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3Bucket, "k", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.BatchCooldown, "cooldown", config.BatchCooldown, "pause between batches")
	fs.DurationVar(&config.RetryDelay, "retry-delay", config.RetryDelay, "pause between upload attempts")
	fs.DurationVar(&config.ProgressInterval, "progress", config.ProgressInterval, "progress edit interval")
	admins := fs.String("admins", "", "comma separated admin user ids")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if *admins != "" {
		ids, err := parseIDList(*admins)
		if err != nil {
			return err
		}
		config.AdminUserIDs = ids
	}
	return nil
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
