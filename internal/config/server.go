package config

import (
	"flag"
	"fmt"
	"os"
)

// Server holds the parsed server CLI surface.
type Server struct {
	ArticleFile     string
	TagsFile        string
	UsersFile       string
	VotesFile       string
	Address         string
	MinVotes        int
	UsersToConsider int
}

// ParseServer parses args into a Server. On an unknown option it prints
// the error and exits 1.
func ParseServer(args []string) Server {
	fs := flag.NewFlagSet("lotus-server", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var cfg Server
	var help bool

	register := func(value *string, long, short, def, usage string) {
		fs.StringVar(value, long, def, usage)
		fs.StringVar(value, short, def, usage)
	}
	registerInt := func(value *int, long, short string, def int, usage string) {
		fs.IntVar(value, long, def, usage)
		fs.IntVar(value, short, def, usage)
	}

	register(&cfg.ArticleFile, "article-file", "a", "articles.lotus", "articles input path")
	register(&cfg.TagsFile, "tags-file", "t", "tags.lotus", "tags input path")
	register(&cfg.UsersFile, "users-file", "u", "users.lotus", "users input path")
	register(&cfg.VotesFile, "votes-file", "v", "votes.lotus", "votes input path")
	register(&cfg.Address, "address", "i", ":8080", "listen address")
	registerInt(&cfg.MinVotes, "min-votes", "m", 10, "minimum votes for a user to be retained")
	registerInt(&cfg.UsersToConsider, "users-to-consider", "c", 30, "neighbors considered per query")
	fs.BoolVar(&help, "help", false, "print usage")
	fs.BoolVar(&help, "h", false, "print usage")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if help {
		fs.Usage()
		os.Exit(1)
	}
	return cfg
}
