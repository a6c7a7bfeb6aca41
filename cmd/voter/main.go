// Command voter talks to a running authority: it fetches the public key,
// registers a citizen and casts an encrypted ballot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gookit/color"

	"rsa-voting-backend/client"
	"rsa-voting-backend/models"
)

const usage = `usage: voter [-server URL] <command> [flags]

commands:
  pubkey                                  show the authority public key
  register -cnp C -first F -last L [-encrypt]
  vote -cnp C -pin P -candidate A
  results                                 show the current tally
`

func Error(msg string) {
	color.Printf("<error>ERROR</>\t%s\n", msg)
	os.Exit(1)
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Authority base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*server, nil)
	args := flag.Args()[1:]

	var err error
	switch flag.Arg(0) {
	case "pubkey":
		err = showPublicKey(ctx, c)
	case "register":
		err = register(ctx, c, args)
	case "vote":
		err = vote(ctx, c, args)
	case "results":
		err = results(ctx, c)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			Error(fmt.Sprintf("%s (%s)", remote.Message, remote.Code))
		}
		Error(err.Error())
	}
}

func showPublicKey(ctx context.Context, c *client.Client) error {
	pub, err := c.PublicKey(ctx)
	if err != nil {
		return err
	}
	color.Printf("Bits : <suc>%d</>\n", pub.N.BitLen())
	fmt.Printf("E    : %s\n", pub.E.String())
	fmt.Printf("N    : %s\n", pub.N.Text(16))
	return nil
}

func register(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	cnp := fs.String("cnp", "", "13-digit CNP")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	encrypt := fs.Bool("encrypt", false, "Encrypt each field under the authority key")
	fs.Parse(args)

	citizen := models.Citizen{CNP: *cnp, FirstName: *first, LastName: *last}
	if err := citizen.Validate(); err != nil {
		return err
	}

	pin, err := c.Register(ctx, citizen, *encrypt)
	if err != nil {
		return err
	}
	color.Printf("Registered. PIN: <suc>%s</>\n", pin)
	fmt.Println("Keep this PIN; it cannot be recovered.")
	return nil
}

func vote(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("vote", flag.ExitOnError)
	cnp := fs.String("cnp", "", "13-digit CNP")
	pin := fs.String("pin", "", "PIN issued at registration")
	candidate := fs.String("candidate", "", "Candidate code")
	fs.Parse(args)

	if *candidate == "" {
		return errors.New("-candidate is required")
	}
	if err := c.CastVote(ctx, *cnp, *pin, *candidate); err != nil {
		return err
	}
	color.Printf("<suc>OK</> vote recorded\n")
	return nil
}

func results(ctx context.Context, c *client.Client) error {
	res, err := c.Results(ctx)
	if err != nil {
		return err
	}
	for _, line := range res.Lines {
		color.Printf("  %-4s %-32s <suc>%6d</>  %6.2f%%\n", line.Code, line.DisplayName, line.Votes, line.Percent)
	}
	fmt.Printf("\nTotal : %d\n", res.Total)
	if !res.ChainValid {
		color.Printf("Ledger: <error>hash chain broken</>\n")
	}
	return nil
}
