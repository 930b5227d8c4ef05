// qadmin is the operator CLI for the k-answers queue: inspect depth,
// recover stuck jobs, flush, and inject synthetic jobs end to end.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hansenliang/k-answers-slack-bot-sub001/clients/go/kanswers"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: qadmin [flags] <command>

commands:
  health     show service health
  inspect    show queue depths and head samples
  validate   check timestamp fields on the head waiting job
  recover    move stuck processing jobs back to waiting
  flush      clear waiting and processing (asks for confirmation)
  inject     enqueue a synthetic job and dispatch it

flags:`)
	flag.PrintDefaults()
}

func main() {
	url := flag.String("url", envOr("KANSWERS_URL", "http://localhost:8080"), "service base URL")
	secret := flag.String("secret", os.Getenv("KANSWERS_ADMIN_SECRET"), "admin shared secret")
	question := flag.String("question", "ping from qadmin", "question text for inject")
	channel := flag.String("channel", "", "channel id for inject")
	responseURL := flag.String("response-url", "", "response_url for inject")
	yes := flag.Bool("yes", false, "skip confirmation prompts")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	client := kanswers.NewClient(*url, *secret)

	var err error
	switch flag.Arg(0) {
	case "health":
		err = printJSON(client.Health())
	case "inspect":
		err = printJSON(client.Inspect())
	case "validate":
		err = printJSON(client.Validate())
	case "recover":
		var recovered int
		recovered, err = client.Recover()
		if err == nil {
			fmt.Printf("recovered %d stuck job(s)\n", recovered)
		}
	case "flush":
		if !*yes && !confirm("flush waiting and processing queues?") {
			fmt.Println("aborted")
			return
		}
		err = client.Flush()
		if err == nil {
			fmt.Println("queues flushed")
		}
	case "inject":
		err = printJSON(client.Inject(kanswers.InjectRequest{
			QuestionText: *question,
			ChannelID:    *channel,
			ResponseURL:  *responseURL,
		}))
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}, err error) error {
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
