// Command tally decrypts and counts a closed election directly from the
// authority's storage.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"rsa-voting-backend/models"
	"rsa-voting-backend/service"
	"rsa-voting-backend/storage"
)

type Config struct {
	StorageDir string
	Backend    string
	DBPath     string
	Candidates string
	Workers    int
	Ballots    bool
	JSON       bool
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.StorageDir, "storage", "data", "Directory of the JSON storage")
	flag.StringVar(&config.Backend, "backend", storage.BackendJSON, "Storage backend: json or sqlite")
	flag.StringVar(&config.DBPath, "db", "", "SQLite database path (default <storage>/voting.db)")
	flag.StringVar(&config.Candidates, "candidates", "", `Ballot as "A=Name,B=Name" (default A, B, C)`)
	flag.IntVar(&config.Workers, "workers", runtime.NumCPU(), "Decryption workers")
	flag.BoolVar(&config.Ballots, "ballots", false, "Also print every decrypted ballot in shuffled order")
	flag.BoolVar(&config.JSON, "json", false, "Print the result as JSON")

	flag.Parse()
	return config
}

func Error(msg string) {
	color.Printf("<error>ERROR</>\t%s\n", msg)
	os.Exit(1)
}

func main() {
	config := parseFlags()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(config); err != nil {
		Error(err.Error())
	}
}

// run reports failures to main, which is the only place that exits.
func run(config *Config) error {
	location := config.StorageDir
	if config.Backend == storage.BackendSQLite {
		location = config.DBPath
		if location == "" {
			location = filepath.Join(config.StorageDir, "voting.db")
		}
	}
	if _, err := os.Stat(location); err != nil {
		return fmt.Errorf("storage %s: %w", location, err)
	}

	store, err := storage.Open(config.Backend, location)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	kp, err := store.LoadKeyPair(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("no authority key in storage; nothing was ever registered")
	}
	if err != nil {
		return err
	}
	keyring, err := service.NewKeyring(kp)
	if err != nil {
		return err
	}

	cfg := service.DefaultConfig()
	cfg.TallyWorkers = config.Workers
	if config.Candidates != "" {
		set, err := models.ParseCandidates(config.Candidates)
		if err != nil {
			return err
		}
		cfg.Candidates = set
	}
	vs := service.NewVotingService(store, keyring, cfg)

	stats, err := vs.Stats(ctx)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !config.JSON {
		color.Printf("Voters : <suc>%d</> registered, <suc>%d</> voted\n", stats.Registered, stats.Voted)
		bar = progressbar.Default(int64(stats.Votes), "decrypting")
	}
	result, err := vs.TallyWithProgress(ctx, func(done, total int) {
		if bar != nil {
			bar.Add(1)
		}
	})
	if err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}

	var ballots []string
	if config.Ballots {
		ballots, err = vs.Ballots(ctx)
		if err != nil {
			return err
		}
	}

	if config.JSON {
		return printJSON(result, vs.Candidates(), ballots)
	}
	printResults(result, vs.Candidates(), ballots)
	return nil
}

func printJSON(result *models.TallyResult, set *models.CandidateSet, ballots []string) error {
	out := struct {
		*models.TallyResult
		Lines   []models.ResultLine `json:"lines"`
		Ballots []string            `json:"ballots,omitempty"`
	}{result, result.Lines(set), ballots}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printResults(result *models.TallyResult, set *models.CandidateSet, ballots []string) {
	fmt.Printf("\nResults:\n\n")
	for _, line := range result.Lines(set) {
		name := line.DisplayName
		if !line.Known {
			name = color.Sprintf("<warn>%q (not on ballot)</>", line.DisplayName)
		}
		color.Printf("  %-4s %-32s <suc>%6d</>  %6.2f%%\n", line.Code, name, line.Votes, line.Percent)
	}

	fmt.Printf("\nTotal  : %d\n", result.Total)
	if result.Undecryptable > 0 {
		color.Printf("Failed : <error>%d</> ballots could not be decrypted\n", result.Undecryptable)
	}
	if result.ChainValid {
		color.Printf("Ledger : <suc>OK</>\n")
	} else {
		color.Printf("Ledger : <error>hash chain broken</>\n")
	}

	if len(ballots) > 0 {
		fmt.Printf("\nBallots (shuffled):\n\n")
		for _, b := range ballots {
			fmt.Printf("  %q\n", b)
		}
	}
	fmt.Println()
}
