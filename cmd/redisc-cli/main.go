package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/mna/mainer"
	"github.com/slotroute/redisc"
)

const binName = "redisc-cli"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<arg>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<arg>...]
       %[1]s -h|--help

Execute a command on a Redis cluster via the redisc package.

Valid flag options are:
       -h --help                 Show this help and exit immediately.
       -a --addrs ADDRS          Comma-separated list of addresses to connect
                                 to the cluster.
       --hash KEY                Compute and print the hash slot of KEY and
                                 exit immediately.
       --retry INT               Maximum number of retries on MOVED, ASK and
                                 TRYAGAIN replies, -1 for unbounded
                                 (default).
       --retry-delay DUR         Duration to wait before retrying a TRYAGAIN
                                 error. Defaults to an exponential backoff.
       -t --timeout DUR          Timeout of the command, including retries.
       --refresh-on-moved        Refresh the whole slot mapping after a MOVED
                                 reply.
       -v --verbose              Print the cluster's events on stderr.

The <command> is the redis command to execute, with the provided <arg>s.
`, binName)
)

type cmd struct {
	Help bool `flag:"h,help"`

	Addrs          string        `flag:"a,addrs"`
	Hash           string        `flag:"hash"`
	Retry          int           `flag:"retry"`
	RetryDelay     time.Duration `flag:"retry-delay"`
	Timeout        time.Duration `flag:"t,timeout"`
	RefreshOnMoved bool          `flag:"refresh-on-moved"`
	Verbose        bool          `flag:"v,verbose"`

	args []string
}

func (c *cmd) SetArgs(args []string) {
	c.args = args
}

func (c *cmd) Validate() error {
	if c.Help || c.Hash != "" {
		return nil
	}

	if c.Addrs == "" {
		return errors.New("--addrs is required")
	}
	if c.Retry < -1 {
		return errors.New("--retry must be >= -1")
	}
	if c.RetryDelay < 0 {
		return errors.New("--retry-delay must be >= 0")
	}
	if len(c.args) == 0 {
		return errors.New("no redis command provided")
	}
	return nil
}

func (c *cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	var p mainer.Parser
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Hash != "":
		slot := redisc.Slot(c.Hash)
		fmt.Fprintf(stdio.Stdout, "slot for %q: %d\n", c.Hash, slot)
		return mainer.Success
	}

	cluster := c.cluster()
	defer cluster.Close()

	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmdArgs := make([]interface{}, 0, len(c.args)-1)
	for _, arg := range c.args[1:] {
		cmdArgs = append(cmdArgs, arg)
	}
	v, err := cluster.Do(ctx, c.args[0], cmdArgs...)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "(error) %v\n", err)
		return mainer.Failure
	}
	printReply(stdio.Stdout, v, "")
	return mainer.Success
}

func (c *cmd) cluster() *redisc.Cluster {
	cluster := &redisc.Cluster{
		StartupNodes:   strings.Split(c.Addrs, ","),
		RefreshOnMoved: c.RefreshOnMoved,
		Name:           binName,
		Logger:         redisc.NoopLogger{},
	}
	if c.Verbose {
		cluster.Logger = redisc.DefaultLogger{}
	}
	if c.Retry >= 0 {
		cluster.SetRetries(redisc.MaxRetries(c.Retry))
	}
	if c.RetryDelay > 0 {
		cluster.Backoff = redisc.ConstantBackoff(c.RetryDelay)
	}
	return cluster
}

// printReply prints v in the format of redis-cli.
func printReply(w io.Writer, v interface{}, indent string) {
	switch v := v.(type) {
	case nil:
		fmt.Fprintln(w, "(nil)")
	case []byte:
		fmt.Fprintf(w, "%q\n", v)
	case string:
		fmt.Fprintln(w, v)
	case int64:
		fmt.Fprintf(w, "(integer) %d\n", v)
	case redis.Error:
		fmt.Fprintf(w, "(error) %s\n", v)
	case []interface{}:
		if len(v) == 0 {
			fmt.Fprintln(w, "(empty array)")
			return
		}
		for i, el := range v {
			prefix := fmt.Sprintf("%d) ", i+1)
			if i > 0 {
				fmt.Fprint(w, indent)
			}
			fmt.Fprint(w, prefix)
			printReply(w, el, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		fmt.Fprintf(w, "%v\n", v)
	}
}

func main() {
	c := cmd{Retry: -1}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
