// Command votectl is a CLI client for the WC MVP voting backend. It derives
// the device identity, resolves the backend endpoint from the environment,
// and submits votes or ticket lookups as the kiosk/web client would.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/albyma98/wcmvpvs-client/internal/baseurl"
	"github.com/albyma98/wcmvpvs-client/internal/hostenv"
	"github.com/albyma98/wcmvpvs-client/internal/model"
	"github.com/albyma98/wcmvpvs-client/internal/voteapi"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `votectl
Usage:
  votectl [-timeout d] [-v] <cmd> [args]

Commands:
  version
  resolve                                      (print the resolved API base URL)
  device-id                                    (print the device identifier)
  device-token                                 (print the device token)
  fingerprint                                  (print the collected fingerprint)
  vote            -event <id> -player <id>
  ticket          -event <id>                  (legacy ticket issuance)
  ticket-validate [-event <id>] [-code c] [-signature s]
  status          -event <id>                  (vote status for this device)
  live            -event <id>                  (live tally)
  reaction        -event <id> [-ms n]          (status, or submit when -ms set)

Configuration (environment, .env supported):
  VOTE_API_BASE_URL, VOTE_API_PORT, VOTE_DEV_MODE, VOTE_PAGE_ORIGIN,
  VOTE_STORAGE_DIR, VOTE_SCREEN, VOTE_GPU, VOTE_TOUCH_POINTS, VOTE_PIXEL_RATIO
`)
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// pageFromEnv maps the host origin onto the resolver's page context.
func pageFromEnv(env hostenv.Environment) baseurl.Page {
	origin, ok := env.Origin()
	if !ok {
		return baseurl.Page{}
	}
	return baseurl.Page{Scheme: origin.Scheme, Hostname: origin.Hostname, Port: origin.Port}
}

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	_ = godotenv.Load()

	hostenv.Version = version
	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	env := hostenv.NewHost(logger)
	base := baseurl.Resolve(baseurl.ConfigFromEnv(), pageFromEnv(env))
	client := voteapi.New(env, base, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("votectl %s (%s)\n", version, buildDate)

	case "resolve":
		fmt.Println(base)

	case "device-id":
		id, _, _ := client.Identity(ctx)
		fmt.Println(id)

	case "device-token":
		_, tok, _ := client.Identity(ctx)
		fmt.Println(tok)

	case "fingerprint":
		_, _, fp := client.Identity(ctx)
		printJSON(fp)

	case "vote":
		fs := flag.NewFlagSet("vote", flag.ExitOnError)
		event := fs.Int("event", 0, "event id")
		player := fs.Int("player", 0, "player id")
		_ = fs.Parse(flag.Args()[1:])
		res := client.Vote(ctx, *event, *player)
		printJSON(res)
		if !res.OK {
			os.Exit(1)
		}

	case "ticket":
		fs := flag.NewFlagSet("ticket", flag.ExitOnError)
		event := fs.Int("event", 0, "event id")
		_ = fs.Parse(flag.Args()[1:])
		res := client.CreateTicket(ctx, *event)
		printJSON(res)
		if !res.OK {
			os.Exit(1)
		}

	case "ticket-validate":
		fs := flag.NewFlagSet("ticket-validate", flag.ExitOnError)
		event := fs.Int("event", 0, "event id")
		code := fs.String("code", "", "ticket code")
		sig := fs.String("signature", "", "ticket signature")
		_ = fs.Parse(flag.Args()[1:])
		printJSON(client.ValidateTicketStatus(ctx, model.TicketQuery{
			EventID:   *event,
			Code:      *code,
			Signature: *sig,
		}))

	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		event := fs.Int("event", 0, "event id")
		_ = fs.Parse(flag.Args()[1:])
		out, err := client.VoteStatus(ctx, *event)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "live":
		fs := flag.NewFlagSet("live", flag.ExitOnError)
		event := fs.Int("event", 0, "event id")
		_ = fs.Parse(flag.Args()[1:])
		out, err := client.LiveVotes(ctx, *event)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "reaction":
		fs := flag.NewFlagSet("reaction", flag.ExitOnError)
		event := fs.Int("event", 0, "event id")
		ms := fs.Int("ms", 0, "reaction time to submit (ms)")
		_ = fs.Parse(flag.Args()[1:])
		if *ms > 0 {
			out, err := client.SubmitReactionTime(ctx, *event, *ms)
			if err != nil {
				fail(err)
			}
			printJSON(out)
		} else {
			out, err := client.ReactionTestStatus(ctx, *event)
			if err != nil {
				fail(err)
			}
			printJSON(out)
		}

	default:
		usage()
	}
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		l, _ := zap.NewDevelopment()
		return l
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	l, _ := cfg.Build()
	return l
}
